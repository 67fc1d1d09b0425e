package qr

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/makiuchi-d/gozxing"
	multiqrcode "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/dharsanguruparan/CardScan/internal/pipeline"
)

var (
	ErrLocalization = errors.New("no qr code located")
	ErrDecode       = errors.New("qr code could not be decoded")
)

var hints = map[gozxing.DecodeHintType]interface{}{
	gozxing.DecodeHintType_TRY_HARDER: true,
}

// Code is one located QR symbol.
type Code struct {
	result *gozxing.Result
}

// Decode returns the error-corrected payload of the symbol.
func (c *Code) Decode() ([]byte, error) {
	text := c.result.GetText()
	if text == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	return []byte(text), nil
}

// Symbols is a one-pass sequence of detection results. Next yields either a
// located code or the detection error, then io.EOF.
type Symbols struct {
	codes []*Code
	err   error
	pos   int
}

// Next implements pipeline.SymbolSource.
func (s *Symbols) Next() (pipeline.Symbol, error) {
	if s.err != nil {
		err := s.err
		s.err = io.EOF
		return nil, err
	}
	if s.pos >= len(s.codes) {
		return nil, io.EOF
	}
	c := s.codes[s.pos]
	s.pos++
	return c, nil
}

// Detect locates every QR symbol in the luma buffer.
func Detect(gray *image.Gray) *Symbols {
	bmp, err := gozxing.NewBinaryBitmapFromImage(gray)
	if err != nil {
		return &Symbols{err: fmt.Errorf("%w: %w", ErrLocalization, err)}
	}

	results, err := multiqrcode.NewQRCodeMultiReader().DecodeMultiple(bmp, hints)
	if err == nil && len(results) > 0 {
		codes := make([]*Code, 0, len(results))
		for _, r := range results {
			codes = append(codes, &Code{result: r})
		}
		return &Symbols{codes: codes}
	}

	// The multi reader drops symbols it cannot correct, so retry with the
	// single reader to tell "nothing there" apart from "found but unreadable".
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err == nil {
		return &Symbols{codes: []*Code{{result: result}}}
	}
	if _, ok := err.(gozxing.NotFoundException); ok {
		return &Symbols{err: fmt.Errorf("%w: %w", ErrLocalization, err)}
	}
	return &Symbols{err: fmt.Errorf("%w: %w", ErrDecode, err)}
}

// Scan loads the image at path and detects its symbols.
func Scan(path string) (*Symbols, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Detect(Luma(img)), nil
}

// ScanReader is Scan for an already opened image.
func ScanReader(r io.Reader) (*Symbols, error) {
	img, err := Read(r)
	if err != nil {
		return nil, err
	}
	return Detect(Luma(img)), nil
}
