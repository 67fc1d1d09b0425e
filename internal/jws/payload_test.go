package jws

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/CardScan/internal/cardtest"
)

func TestPayload(t *testing.T) {
	got, err := Payload(cardtest.JWS(t, cardtest.PatientJSON))
	require.NoError(t, err)
	assert.Equal(t, cardtest.PatientJSON, got)
}

func TestPayloadWithoutSignature(t *testing.T) {
	token := jwt.EncodeSegment([]byte("{}")) + "." + jwt.EncodeSegment(cardtest.Deflate(t, []byte(`{"a":1}`)))
	got, err := Payload(token)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)
}

func TestPayloadErrors(t *testing.T) {
	header := jwt.EncodeSegment([]byte(cardtest.Header))
	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"single segment", "abc", ErrMalformedJWT},
		{"empty token", "", ErrMalformedJWT},
		{"bad alphabet", header + ".ab$c.sig", ErrBase64Decode},
		{"padding rejected", header + "." + jwt.EncodeSegment(cardtest.Deflate(t, []byte("{}"))) + "==.sig", ErrBase64Decode},
		{"reserved block type", header + "." + jwt.EncodeSegment([]byte{0xff, 0xff}) + ".sig", ErrInflate},
		{"empty stream", header + "..sig", ErrInflate},
		{"invalid utf-8", header + "." + jwt.EncodeSegment(cardtest.Deflate(t, []byte{0xff, 0xfe, 0xfd})) + ".sig", ErrUTF8Decode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Payload(tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPayloadTruncatedStream(t *testing.T) {
	compressed := cardtest.Deflate(t, []byte(cardtest.ImmunizationJSON))
	token := "h." + jwt.EncodeSegment(compressed[:len(compressed)/2]) + ".s"
	_, err := Payload(token)
	assert.ErrorIs(t, err, ErrInflate)
}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(cardtest.JWS(t, cardtest.PatientJSON))
	require.NoError(t, err)
	assert.Equal(t, Header{Alg: "ES256", Kid: "test-key", Zip: "DEF"}, h)

	_, err = ParseHeader(jwt.EncodeSegment([]byte("not json")) + ".x.y")
	assert.ErrorIs(t, err, ErrMalformedHeader)
}
