package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/daybook/internal/journalservice"
	"github.com/starford/daybook/internal/markup"
)

// EntryDetail is the full entry response type (aliased from the domain layer).
type EntryDetail = journalservice.EntryDetail

// EntryListItem is a lightweight item in a list response.
type EntryListItem = journalservice.EntryListItem

// EntryListResponse wraps entry listings, newest first.
type EntryListResponse struct {
	Entries []EntryListItem `json:"entries"`
	Total   int             `json:"total"`
}

// CreateEntryRequest is the request body for creating an entry. An empty
// date means today.
type CreateEntryRequest struct {
	Date    string `json:"date"`
	Content string `json:"content"`
}

// Validate checks the request. Content may not be blank: the original
// journal refuses to save empty entries.
func (r CreateEntryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
	)
}

// UpdateEntryRequest is the request body for updating an entry.
type UpdateEntryRequest struct {
	Content string `json:"content"`
}

// Validate checks the request.
func (r UpdateEntryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
	)
}

// RunDTO is one element of a rendered entry. Type is "text" or "image".
// A text run with empty text is a consumed marker whose asset could not be
// resolved; clients render nothing for it but the span still maps back to
// the underlying markup.
type RunDTO struct {
	Type   string      `json:"type"`
	Text   string      `json:"text,omitempty"`
	Asset  string      `json:"asset,omitempty"`
	Width  int         `json:"width,omitempty"`
	Height int         `json:"height,omitempty"`
	Span   markup.Span `json:"span"`
}

// RenderResponse is the render plan for one entry.
type RenderResponse struct {
	Date     string   `json:"date"`
	Checksum string   `json:"checksum"`
	Runs     []RunDTO `json:"runs"`
}

// InsertImageRequest places a marker for an already-uploaded asset at a
// byte offset in the entry content.
type InsertImageRequest struct {
	Offset int    `json:"offset"`
	Asset  string `json:"asset"`
}

// Validate checks the request.
func (r InsertImageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Offset, validation.Min(0)),
		validation.Field(&r.Asset, validation.Required),
	)
}

// ResizeImageRequest replaces the marker at [Start, End) with the same
// asset at a new width.
type ResizeImageRequest struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Width int `json:"width"`
}

// Validate checks span sanity; the width bounds themselves are enforced by
// the markup engine so the error carries the canonical message.
func (r ResizeImageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Start, validation.Min(0)),
		validation.Field(&r.End, validation.Required, validation.Min(1)),
	)
}

// RemoveImageRequest deletes the marker at [Start, End).
type RemoveImageRequest struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ImageMutationResponse is returned by the image operations.
type ImageMutationResponse struct {
	Entry *EntryDetail `json:"entry"`
	Span  *markup.Span `json:"span,omitempty"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResultDTO `json:"results"`
}

// SearchResultDTO is a single search hit.
type SearchResultDTO struct {
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// AssetUploadResponse is returned after a successful asset upload. Markup
// is a ready-to-insert marker string at the default width.
type AssetUploadResponse struct {
	Asset  string `json:"asset"`
	Size   int64  `json:"size"`
	URL    string `json:"url"`
	Markup string `json:"markup"`
}

// Auth request/response bodies.

type SetupRequest struct {
	Password         string `json:"password"`
	SecurityQuestion string `json:"security_question"`
	SecurityAnswer   string `json:"security_answer"`
}

func (r SetupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.SecurityQuestion, validation.Required),
		validation.Field(&r.SecurityAnswer, validation.Required),
	)
}

type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type RecoverRequest struct {
	Answer      string `json:"answer"`
	NewPassword string `json:"new_password"`
}

func (r RecoverRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Answer, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewPassword, validation.Required),
	)
}
