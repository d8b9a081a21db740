// Package guard gates destructive operations behind an explicit intent flag
// and a typed confirmation phrase.
package guard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultPhrase is the text a user must type to confirm a bulk deletion.
const DefaultPhrase = "DELETE ALL"

var (
	// ErrConfirmationDenied is returned when the typed phrase does not match.
	ErrConfirmationDenied = errors.New("confirmation denied")

	// ErrIntentRequired is returned when the caller did not pass the explicit
	// intent flag (e.g. --all or --force).
	ErrIntentRequired = errors.New("explicit intent flag required")
)

// Prompter shows a message and returns the line the user typed.
type Prompter interface {
	Prompt(message string) (string, error)
}

// LinePrompter prompts on Out and reads one line from In.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

func (p *LinePrompter) Prompt(message string) (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	fmt.Fprint(p.Out, message)
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return line, nil
}

// Approval proves that a Guard authorized a destructive operation. The zero
// value is not an approval.
type Approval struct {
	granted bool
}

// Valid reports whether the approval was issued by a Guard.
func (a Approval) Valid() bool { return a.granted }

// Guard asks for confirmation before destructive operations.
type Guard struct {
	Prompter Prompter
	// Phrase is the required confirmation text. Empty means DefaultPhrase.
	Phrase string
}

// New returns a Guard requiring DefaultPhrase.
func New(p Prompter) *Guard {
	return &Guard{Prompter: p, Phrase: DefaultPhrase}
}

func (g *Guard) phrase() string {
	if g.Phrase == "" {
		return DefaultPhrase
	}
	return g.Phrase
}

// RequestConfirmation shows prompt and reports whether the user typed the
// phrase exactly. Surrounding whitespace is ignored; case is not.
func (g *Guard) RequestConfirmation(prompt string) bool {
	if g.Prompter == nil {
		return false
	}
	message := fmt.Sprintf("%s\nType '%s' to confirm: ", prompt, g.phrase())
	answer, err := g.Prompter.Prompt(message)
	if err != nil {
		return false
	}
	return strings.TrimSpace(answer) == g.phrase()
}

// Authorize requires both the intent flag and a confirmed prompt.
func (g *Guard) Authorize(intent bool, prompt string) (Approval, error) {
	if !intent {
		return Approval{}, ErrIntentRequired
	}
	if !g.RequestConfirmation(prompt) {
		return Approval{}, ErrConfirmationDenied
	}
	return Approval{granted: true}, nil
}
