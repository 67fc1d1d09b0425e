package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/CardScan/internal/cardtest"
	"github.com/dharsanguruparan/CardScan/internal/fhir"
	"github.com/dharsanguruparan/CardScan/internal/qr"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeCard(t *testing.T, body string) string {
	t.Helper()
	img, err := qrcode.NewQRCodeWriter().Encode(cardtest.Token(t, body), gozxing.BarcodeFormat_QR_CODE, 800, 800, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "card.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestDecodeImage(t *testing.T) {
	out, err := execute(t, "", writeCard(t, cardtest.PatientJSON))
	require.NoError(t, err)
	assert.Equal(t, "Patient: Jane Doe\n", out)
}

func TestDecodeImageUnknownResource(t *testing.T) {
	out, err := execute(t, "", writeCard(t, cardtest.ObservationJSON))
	assert.ErrorIs(t, err, fhir.ErrUnknownResourceType)
	assert.Empty(t, out)
}

func TestMissingArgument(t *testing.T) {
	_, err := execute(t, "")
	var ue *usageError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, err.Error(), "usage: cardscan <image>")
}

func TestTooManyArguments(t *testing.T) {
	_, err := execute(t, "", "a.png", "b.png")
	var ue *usageError
	assert.ErrorAs(t, err, &ue)
}

func TestMissingImage(t *testing.T) {
	_, err := execute(t, "", filepath.Join(t.TempDir(), "nope.png"))
	assert.ErrorIs(t, err, qr.ErrImageLoad)
}

func TestTokenArgs(t *testing.T) {
	out, err := execute(t, "", "token", cardtest.Token(t, cardtest.ImmunizationJSON))
	require.NoError(t, err)
	assert.Equal(t, "Immunization: ABC123, completed by Pharmacy X on 2021-03-01\n", out)
}

func TestTokenStdinContinueOnError(t *testing.T) {
	stdin := strings.Join([]string{
		cardtest.Token(t, cardtest.ObservationJSON),
		cardtest.Token(t, cardtest.PatientJSON),
	}, "\n")

	out, err := execute(t, stdin, "token")
	assert.ErrorIs(t, err, fhir.ErrUnknownResourceType)
	assert.Empty(t, out)

	out, err = execute(t, stdin, "token", "--continue-on-error")
	assert.ErrorIs(t, err, fhir.ErrUnknownResourceType)
	assert.Equal(t, "Patient: Jane Doe\n", out)
}

func TestPDFRequiresDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))
	_, err := execute(t, "", "pdf", path)
	assert.Error(t, err)

	_, err = execute(t, "", "pdf")
	var ue *usageError
	assert.ErrorAs(t, err, &ue)
}
