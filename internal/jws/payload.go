// Package jws pulls the compressed claims out of a SMART Health Card JWS.
// Signatures are never checked here; only the payload is read.
package jws

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/klauspost/compress/flate"
)

// maxInflated bounds the inflated claims; real cards inflate to a few KiB.
const maxInflated = 4 << 20

var (
	ErrMalformedJWT    = errors.New("malformed jwt")
	ErrBase64Decode    = errors.New("base64url decode failed")
	ErrInflate         = errors.New("inflate failed")
	ErrUTF8Decode      = errors.New("payload is not valid utf-8")
	ErrMalformedHeader = errors.New("malformed jws header")
)

// Header holds the protected header fields a health card carries.
type Header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Zip string `json:"zip"`
}

// Payload returns the inflated JSON text carried in the second segment of token.
func Payload(token string) (string, error) {
	segments := strings.Split(token, ".")
	if len(segments) < 2 {
		return "", fmt.Errorf("%w: expected header.payload.signature, got %d segment(s)", ErrMalformedJWT, len(segments))
	}
	compressed, err := decodeSegment(segments[1])
	if err != nil {
		return "", err
	}
	raw, err := inflate(compressed)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", ErrUTF8Decode
	}
	return string(raw), nil
}

// ParseHeader decodes the protected header. It is informational only.
func ParseHeader(token string) (Header, error) {
	first, _, _ := strings.Cut(token, ".")
	var h Header
	data, err := decodeSegment(first)
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}
	return h, nil
}

func decodeSegment(seg string) ([]byte, error) {
	data, err := jwt.DecodeSegment(seg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBase64Decode, err)
	}
	return data, nil
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, maxInflated+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInflate, err)
	}
	if len(out) > maxInflated {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrInflate, maxInflated)
	}
	return out, nil
}
