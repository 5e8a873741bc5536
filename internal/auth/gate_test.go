package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/daybook/internal/apperr"
)

func tempGate(t *testing.T) *Gate {
	t.Helper()
	return NewGate(filepath.Join(t.TempDir(), "credentials.json"))
}

func TestSetUpAndVerify(t *testing.T) {
	g := tempGate(t)
	if g.Configured() {
		t.Fatal("fresh gate should not be configured")
	}
	if err := g.SetUp("secret", "First pet?", "Rex"); err != nil {
		t.Fatalf("SetUp: %v", err)
	}
	if !g.Configured() {
		t.Error("gate should be configured after setup")
	}
	if err := g.Verify("secret"); err != nil {
		t.Errorf("Verify correct password: %v", err)
	}
	if err := g.Verify("wrong"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Verify wrong password: err = %v, want ErrUnauthorized", err)
	}
}

func TestSetUp_RefusesOverwrite(t *testing.T) {
	g := tempGate(t)
	_ = g.SetUp("one", "q", "a")
	if err := g.SetUp("two", "q", "a"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestSetUp_RequiresAllFields(t *testing.T) {
	g := tempGate(t)
	if err := g.SetUp("  ", "q", "a"); err == nil {
		t.Error("blank password accepted")
	}
	if err := g.SetUp("p", "", "a"); err == nil {
		t.Error("blank question accepted")
	}
	if err := g.SetUp("p", "q", " "); err == nil {
		t.Error("blank answer accepted")
	}
}

func TestRecover(t *testing.T) {
	g := tempGate(t)
	_ = g.SetUp("old", "First pet?", "Rex")

	// Answer matching is normalized: case and whitespace are ignored.
	if err := g.Recover("  rex ", "newpass"); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if err := g.Verify("newpass"); err != nil {
		t.Errorf("Verify after recover: %v", err)
	}
	if err := g.Verify("old"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Error("old password still valid after recover")
	}

	if err := g.Recover("wrong answer", "x"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("wrong answer: err = %v, want ErrUnauthorized", err)
	}
}

func TestRecover_PreservesQuestion(t *testing.T) {
	g := tempGate(t)
	_ = g.SetUp("old", "First pet?", "Rex")
	_ = g.Recover("rex", "newpass")

	q, err := g.Question()
	if err != nil || q != "First pet?" {
		t.Errorf("question = %q, err = %v", q, err)
	}
	// The answer still works for a second recovery.
	if err := g.Recover("REX", "другой"); err != nil {
		t.Errorf("second recover: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	g := tempGate(t)
	_ = g.SetUp("old", "q", "a")
	if err := g.ChangePassword("fresh"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if err := g.Verify("fresh"); err != nil {
		t.Errorf("Verify after change: %v", err)
	}
}

func TestVerify_Unconfigured(t *testing.T) {
	g := tempGate(t)
	if err := g.Verify("anything"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	g := NewGate(path)
	if g.Configured() {
		t.Error("corrupt record reported as configured")
	}
	if err := g.Verify("x"); err == nil {
		t.Error("expected error for corrupt record")
	}
}

func TestSessions(t *testing.T) {
	s := NewSessions(time.Hour)
	token := s.Issue()
	if !s.Valid(token) {
		t.Error("fresh token invalid")
	}
	if s.Valid("made-up") {
		t.Error("unknown token valid")
	}
	s.Revoke(token)
	if s.Valid(token) {
		t.Error("revoked token valid")
	}
}

func TestSessions_Expiry(t *testing.T) {
	s := NewSessions(time.Minute)
	current := time.Now()
	s.now = func() time.Time { return current }

	token := s.Issue()
	current = current.Add(2 * time.Minute)
	if s.Valid(token) {
		t.Error("expired token valid")
	}
}
