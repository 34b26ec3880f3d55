package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyInput is returned when a required prompt is left blank.
var ErrEmptyInput = errors.New("input is required")

// Prompter asks questions on out and reads answers line by line from in.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewPrompter returns a Prompter reading from in and writing prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// Ask prints label and returns the trimmed answer. io.EOF is returned when
// the input is exhausted.
func (p *Prompter) Ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// Require is Ask that rejects blank answers.
func (p *Prompter) Require(label string) (string, error) {
	v, err := p.Ask(label)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%s %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), ErrEmptyInput)
	}
	return v, nil
}

// Credentials asks for a username and password.
func (p *Prompter) Credentials() (username, password string, err error) {
	if username, err = p.Require("Username (email or phone): "); err != nil {
		return "", "", err
	}
	if password, err = p.Require("Password: "); err != nil {
		return "", "", err
	}
	return username, password, nil
}
