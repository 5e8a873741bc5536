// Package markup converts between flat entry text and a render plan of
// typed runs, and applies structural edits to inline image markers.
//
// The marker grammar is the literal run <<IMG:assetName|width>> with an
// optional width. There is no escape mechanism: a literal "<<IMG:" sequence
// in prose is indistinguishable from a marker. This is a known limitation
// of the journal format, kept intentionally.
package markup

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/starford/daybook/internal/apperr"
)

// Width bounds enforced by the mutation API. The scanner deliberately does
// not enforce them: widths already on disk are rendered as written.
const (
	DefaultWidth = 400
	MinWidth     = 50
	MaxWidth     = 1000
)

// markerRe matches one image marker, capturing the asset name and the raw
// width text. The width group is loose on purpose: a malformed width still
// consumes the marker and falls back to DefaultWidth.
var markerRe = regexp.MustCompile(`<<IMG:([^|<>]+)(?:\|([^<>]*))?>>`)

// Span addresses a half-open byte range [Start, End) in markup text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Run is one element of a render plan.
type Run interface {
	// SourceSpan is the exact byte range of the underlying markup text
	// this run was produced from.
	SourceSpan() Span
	// MarkupText is the literal source slice; concatenating it over all
	// runs reconstructs the original content.
	MarkupText() string
}

// TextRun is a stretch of plain text. Text is what gets displayed; Markup
// is the underlying source. They differ only for consumed markers whose
// asset could not be resolved: those carry empty Text so nothing renders,
// while Markup preserves the marker bytes for lossless flattening.
type TextRun struct {
	Text   string `json:"text"`
	Markup string `json:"-"`
	Span   Span   `json:"span"`
}

func (r TextRun) SourceSpan() Span   { return r.Span }
func (r TextRun) MarkupText() string { return r.Markup }

// ImageRun is a resolved image marker rendered at Width, with Height derived
// from the asset's natural aspect ratio.
type ImageRun struct {
	AssetName string `json:"asset"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Markup    string `json:"-"`
	Span      Span   `json:"span"`
}

func (r ImageRun) SourceSpan() Span   { return r.Span }
func (r ImageRun) MarkupText() string { return r.Markup }

// Plan is the ephemeral render plan for one entry's content. It is
// regenerated from markup text on every render and never persisted.
type Plan struct {
	Runs []Run
}

// Visible returns the runs that produce output: image runs and text runs
// with non-empty text.
func (p *Plan) Visible() []Run {
	out := make([]Run, 0, len(p.Runs))
	for _, r := range p.Runs {
		if t, ok := r.(TextRun); ok && t.Text == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Dimensions are the natural pixel dimensions of a stored asset.
type Dimensions struct {
	Width  int
	Height int
}

// Resolver looks up an asset by name. A missing or unprobeable asset must
// be reported as apperr.ErrAssetUnresolved (or any error; the scanner
// treats every resolve failure the same way).
type Resolver interface {
	Resolve(name string) (Dimensions, error)
}

// Scan tokenizes content into a render plan. Markers whose asset resolves
// become ImageRuns; markers that do not resolve are consumed silently (no
// placeholder) but their bytes are preserved for Flatten. Scan is
// idempotent: scanning flattened output yields an equivalent plan.
func Scan(content string, res Resolver) *Plan {
	plan := &Plan{}
	locs := markerRe.FindAllStringSubmatchIndex(content, -1)
	prev := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if start > prev {
			text := content[prev:start]
			plan.Runs = append(plan.Runs, TextRun{
				Text:   text,
				Markup: text,
				Span:   Span{Start: prev, End: start},
			})
		}
		literal := content[start:end]
		name := content[loc[2]:loc[3]]
		width := parseWidth(content, loc)

		dims, err := res.Resolve(name)
		if err != nil || dims.Width <= 0 {
			// Missing asset: consume the marker without a visible run.
			plan.Runs = append(plan.Runs, TextRun{
				Markup: literal,
				Span:   Span{Start: start, End: end},
			})
		} else {
			plan.Runs = append(plan.Runs, ImageRun{
				AssetName: name,
				Width:     width,
				Height:    dims.Height * width / dims.Width,
				Markup:    literal,
				Span:      Span{Start: start, End: end},
			})
		}
		prev = end
	}
	if prev < len(content) {
		text := content[prev:]
		plan.Runs = append(plan.Runs, TextRun{
			Text:   text,
			Markup: text,
			Span:   Span{Start: prev, End: len(content)},
		})
	}
	return plan
}

func parseWidth(content string, loc []int) int {
	if loc[4] < 0 {
		return DefaultWidth
	}
	w, err := strconv.Atoi(content[loc[4]:loc[5]])
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}

// Flatten reconstructs markup text exactly from a render plan.
func Flatten(p *Plan) string {
	var out []byte
	for _, r := range p.Runs {
		out = append(out, r.MarkupText()...)
	}
	return string(out)
}

// InsertMarker inserts a new marker for assetName at cursor offset,
// surrounded by newlines, at the default width. It returns the new content
// and the span of the marker itself (excluding the added newlines), which
// is immediately valid for ResizeMarker and DeleteMarker.
func InsertMarker(content string, offset int, assetName string) (string, Span, error) {
	if offset < 0 || offset > len(content) {
		return "", Span{}, fmt.Errorf("markup: offset %d out of range [0,%d]", offset, len(content))
	}
	marker := fmt.Sprintf("<<IMG:%s|%d>>", assetName, DefaultWidth)
	out := content[:offset] + "\n" + marker + "\n" + content[offset:]
	return out, Span{Start: offset + 1, End: offset + 1 + len(marker)}, nil
}

// ResizeMarker replaces the marker at span with one carrying the same asset
// name and the new width. Width must lie in [MinWidth, MaxWidth]; out of
// range is apperr.ErrInvalidWidth, never a silent clamp. A span that no
// longer addresses a well-formed marker is apperr.ErrMarkerNotFound.
func ResizeMarker(content string, span Span, width int) (string, Span, error) {
	if width < MinWidth || width > MaxWidth {
		return "", Span{}, fmt.Errorf("markup: width %d: %w", width, apperr.ErrInvalidWidth)
	}
	name, ok := markerAt(content, span)
	if !ok {
		return "", Span{}, apperr.ErrMarkerNotFound
	}
	marker := fmt.Sprintf("<<IMG:%s|%d>>", name, width)
	out := content[:span.Start] + marker + content[span.End:]
	return out, Span{Start: span.Start, End: span.Start + len(marker)}, nil
}

// DeleteMarker removes the marker at span entirely, leaving no trace.
func DeleteMarker(content string, span Span) (string, error) {
	if _, ok := markerAt(content, span); !ok {
		return "", apperr.ErrMarkerNotFound
	}
	return content[:span.Start] + content[span.End:], nil
}

// markerAt reports whether span addresses exactly one well-formed marker in
// content, returning its asset name.
func markerAt(content string, span Span) (string, bool) {
	if span.Start < 0 || span.End > len(content) || span.Start >= span.End {
		return "", false
	}
	sub := content[span.Start:span.End]
	m := markerRe.FindStringSubmatchIndex(sub)
	if m == nil || m[0] != 0 || m[1] != len(sub) {
		return "", false
	}
	return sub[m[2]:m[3]], true
}
