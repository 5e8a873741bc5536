// Package auth implements the credential gate: a SHA-256 hash compare
// against a JSON record file, with a security question/answer pair for
// password recovery. The journal core is unaware of any of this; the gate
// only guards the API surface.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/checksum"
)

// Record is the persisted credential record.
type Record struct {
	PasswordHash       string `json:"password_hash"`
	SecurityQuestion   string `json:"security_question,omitempty"`
	SecurityAnswerHash string `json:"security_answer_hash,omitempty"`
}

// Gate manages the credential record file.
type Gate struct {
	path string
}

// NewGate creates a gate backed by the record file at path. The file not
// existing yet means setup mode.
func NewGate(path string) *Gate {
	return &Gate{path: path}
}

// Configured reports whether a valid credential record exists.
func (g *Gate) Configured() bool {
	_, err := g.load()
	return err == nil
}

// SetUp writes the initial credential record. It refuses to overwrite an
// existing one; recovery and password change are separate paths.
func (g *Gate) SetUp(password, question, answer string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("auth: password is required")
	}
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return fmt.Errorf("auth: security question and answer are required")
	}
	if g.Configured() {
		return apperr.ErrAlreadyExists
	}
	return g.save(Record{
		PasswordHash:       checksum.SumString(password),
		SecurityQuestion:   question,
		SecurityAnswerHash: hashAnswer(answer),
	})
}

// Verify checks a password against the stored hash.
func (g *Gate) Verify(password string) error {
	rec, err := g.load()
	if err != nil {
		return err
	}
	if checksum.SumString(password) != rec.PasswordHash {
		return apperr.ErrUnauthorized
	}
	return nil
}

// Question returns the configured security question.
func (g *Gate) Question() (string, error) {
	rec, err := g.load()
	if err != nil {
		return "", err
	}
	if rec.SecurityQuestion == "" {
		return "", apperr.ErrNotFound
	}
	return rec.SecurityQuestion, nil
}

// Recover resets the password when the security answer matches. Answers
// are compared case-insensitively with surrounding whitespace ignored,
// the same normalization applied at setup.
func (g *Gate) Recover(answer, newPassword string) error {
	rec, err := g.load()
	if err != nil {
		return err
	}
	if rec.SecurityAnswerHash == "" || hashAnswer(answer) != rec.SecurityAnswerHash {
		return apperr.ErrUnauthorized
	}
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("auth: new password is required")
	}
	rec.PasswordHash = checksum.SumString(newPassword)
	return g.save(rec)
}

// ChangePassword replaces the password hash, preserving the security
// question and answer. The caller must already be authenticated.
func (g *Gate) ChangePassword(newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("auth: new password is required")
	}
	rec, err := g.load()
	if err != nil {
		return err
	}
	rec.PasswordHash = checksum.SumString(newPassword)
	return g.save(rec)
}

func (g *Gate) load() (Record, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, apperr.ErrNotFound
		}
		return Record{}, fmt.Errorf("auth: read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("auth: corrupt record: %w", err)
	}
	if rec.PasswordHash == "" {
		return Record{}, fmt.Errorf("auth: record has no password hash")
	}
	return rec, nil
}

func (g *Gate) save(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("auth: encode record: %w", err)
	}
	if err := os.WriteFile(g.path, data, 0o600); err != nil {
		return fmt.Errorf("auth: write record: %w", err)
	}
	return nil
}

func hashAnswer(answer string) string {
	return checksum.SumString(strings.ToLower(strings.TrimSpace(answer)))
}
