// Package numeric reverses the SMART Health Card numeric QR encoding, where
// every JWT character is stored as its code point minus 45, written as two
// decimal digits.
package numeric

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// offset is added to each digit pair to recover the original code point.
	offset = 45
	// Prefix is the URI scheme SMART Health Cards carry in front of the digits.
	Prefix = "shc:"
)

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidDigitPair = errors.New("invalid digit pair")
	ErrInvalidCharCode  = errors.New("invalid character code")
)

// Decode turns "<prefix>/<digit-pairs>" back into the JWT text. Only the part
// after the first slash is decoded; the prefix itself is not interpreted.
func Decode(token string) (string, error) {
	_, digits, ok := strings.Cut(token, "/")
	if !ok {
		return "", fmt.Errorf("%w: no %q separator", ErrMalformedToken, "/")
	}
	if len(digits)%2 != 0 {
		return "", fmt.Errorf("%w: odd digit count %d", ErrMalformedToken, len(digits))
	}

	var b strings.Builder
	b.Grow(len(digits) / 2)
	for i := 0; i < len(digits); i += 2 {
		chunk := digits[i : i+2]
		v, err := strconv.ParseUint(chunk, 10, 32)
		if err != nil {
			return "", fmt.Errorf("%w: %q at offset %d", ErrInvalidDigitPair, chunk, i)
		}
		r := rune(v + offset)
		if !utf8.ValidRune(r) {
			return "", fmt.Errorf("%w: %d at offset %d", ErrInvalidCharCode, v+offset, i)
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// Encode is the inverse of Decode. It returns "shc:/<digit-pairs>" and fails
// for characters whose code point minus 45 does not fit in two digits.
func Encode(jwt string) (string, error) {
	var b strings.Builder
	b.Grow(len(Prefix) + 1 + 2*len(jwt))
	b.WriteString(Prefix)
	b.WriteByte('/')
	for i, r := range jwt {
		v := int(r) - offset
		if v < 0 || v > 99 {
			return "", fmt.Errorf("%w: %q at offset %d", ErrInvalidCharCode, r, i)
		}
		fmt.Fprintf(&b, "%02d", v)
	}
	return b.String(), nil
}
