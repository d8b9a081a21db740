package guard_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Tiliavir/kv-time-tracker/internal/guard"
)

type answer struct {
	text     string
	err      error
	prompted string
}

func (a *answer) Prompt(message string) (string, error) {
	a.prompted = message
	return a.text, a.err
}

func TestRequestConfirmation(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"DELETE ALL", true},
		{"DELETE ALL\n", true},
		{"  DELETE ALL \r\n", true},
		{"delete all", false},
		{"yes", false},
		{"", false},
		{"DELETE  ALL", false},
		{"DELETE ALL!", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			g := guard.New(&answer{text: tt.input})
			if got := g.RequestConfirmation("Delete everything?"); got != tt.want {
				t.Errorf("RequestConfirmation(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRequestConfirmationShowsPhrase(t *testing.T) {
	a := &answer{text: "DELETE ALL"}
	guard.New(a).RequestConfirmation("Delete all entries for demo?")
	if !strings.Contains(a.prompted, "Delete all entries for demo?") || !strings.Contains(a.prompted, "'DELETE ALL'") {
		t.Errorf("prompt = %q", a.prompted)
	}
}

func TestRequestConfirmationPromptError(t *testing.T) {
	g := guard.New(&answer{text: "DELETE ALL", err: errors.New("closed")})
	if g.RequestConfirmation("x") {
		t.Error("prompt error must deny")
	}
	if (&guard.Guard{}).RequestConfirmation("x") {
		t.Error("guard without prompter must deny")
	}
}

func TestAuthorize(t *testing.T) {
	g := guard.New(&answer{text: "DELETE ALL"})

	if _, err := g.Authorize(false, "x"); !errors.Is(err, guard.ErrIntentRequired) {
		t.Errorf("Authorize without intent = %v, want ErrIntentRequired", err)
	}
	approval, err := g.Authorize(true, "x")
	if err != nil || !approval.Valid() {
		t.Errorf("Authorize = (%v, %v), want valid approval", approval.Valid(), err)
	}

	denied := guard.New(&answer{text: "yes"})
	approval, err = denied.Authorize(true, "x")
	if !errors.Is(err, guard.ErrConfirmationDenied) || approval.Valid() {
		t.Errorf("Authorize with wrong phrase = (%v, %v)", approval.Valid(), err)
	}

	if (guard.Approval{}).Valid() {
		t.Error("zero Approval must not be valid")
	}
}

func TestCustomPhrase(t *testing.T) {
	g := &guard.Guard{Prompter: &answer{text: "WIPE"}, Phrase: "WIPE"}
	if !g.RequestConfirmation("x") {
		t.Error("custom phrase not accepted")
	}
}

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	p := &guard.LinePrompter{In: strings.NewReader("DELETE ALL\nnext\n"), Out: &out}

	line, err := p.Prompt("confirm: ")
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if line != "DELETE ALL\n" {
		t.Errorf("line = %q", line)
	}
	if out.String() != "confirm: " {
		t.Errorf("output = %q", out.String())
	}

	line, _ = p.Prompt("again: ")
	if line != "next\n" {
		t.Errorf("second line = %q", line)
	}

	if _, err := p.Prompt("eof: "); err == nil {
		t.Error("Prompt at EOF: want error")
	}
}

func TestLinePrompterWithoutTrailingNewline(t *testing.T) {
	p := &guard.LinePrompter{In: strings.NewReader("DELETE ALL"), Out: &bytes.Buffer{}}
	if !guard.New(p).RequestConfirmation("x") {
		t.Error("final line without newline should still confirm")
	}
}
