package pipeline

import (
	"bufio"
	"io"
	"strings"
)

// Token is a payload that was already read, such as a "shc:/" string pasted
// by hand or extracted from a document.
type Token string

// Decode returns the token bytes.
func (t Token) Decode() ([]byte, error) { return []byte(t), nil }

// StaticSource yields a fixed list of tokens.
type StaticSource struct {
	tokens []string
	pos    int
}

func NewStaticSource(tokens ...string) *StaticSource {
	return &StaticSource{tokens: tokens}
}

func (s *StaticSource) Next() (Symbol, error) {
	if s.pos >= len(s.tokens) {
		return nil, io.EOF
	}
	t := s.tokens[s.pos]
	s.pos++
	return Token(t), nil
}

// LineSource yields one token per non-blank line of r, reading lazily. A
// read error is returned once and the source is exhausted after it.
type LineSource struct {
	sc   *bufio.Scanner
	done bool
}

func NewLineSource(r io.Reader) *LineSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &LineSource{sc: sc}
}

func (s *LineSource) Next() (Symbol, error) {
	if s.done {
		return nil, io.EOF
	}
	for s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		if line != "" {
			return Token(line), nil
		}
	}
	s.done = true
	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
