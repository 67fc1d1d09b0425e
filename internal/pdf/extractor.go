package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	pdf "github.com/ledongthuc/pdf"

	"github.com/dharsanguruparan/CardScan/internal/pipeline"
)

// ErrNoTokens is returned when a document carries no "shc:/" token.
var ErrNoTokens = errors.New("no health card token in document")

// Long tokens are often wrapped across lines by the text layer, so digits
// separated by whitespace still belong to the same token.
var tokenPattern = regexp.MustCompile(`shc:/[0-9][0-9\s]*`)

// ExtractText reads PDF bytes and returns plain text using ledongthuc/pdf.
func ExtractText(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// Tokens returns every "shc:/" token in text, in order of appearance.
func Tokens(text string) []string {
	matches := tokenPattern.FindAllString(text, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, m))
	}
	return tokens
}

// Source extracts the tokens of a PDF document as a symbol source.
func Source(data []byte) (pipeline.SymbolSource, error) {
	text, err := ExtractText(data)
	if err != nil {
		return nil, err
	}
	tokens := Tokens(text)
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}
	return pipeline.NewStaticSource(tokens...), nil
}

// SourceFromReader drains the reader before passing along to Source.
func SourceFromReader(r io.Reader) (pipeline.SymbolSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return Source(data)
}
