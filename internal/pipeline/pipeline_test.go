package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CardScan/internal/cardtest"
	"github.com/dharsanguruparan/CardScan/internal/fhir"
	"github.com/dharsanguruparan/CardScan/internal/jws"
	"github.com/dharsanguruparan/CardScan/internal/numeric"
	"github.com/dharsanguruparan/CardScan/internal/report"
)

type failingSymbol struct{ err error }

func (f failingSymbol) Decode() ([]byte, error) { return nil, f.err }

type listSource struct {
	items []any
}

func (l *listSource) Next() (Symbol, error) {
	if len(l.items) == 0 {
		return nil, io.EOF
	}
	item := l.items[0]
	l.items = l.items[1:]
	switch v := item.(type) {
	case error:
		return nil, v
	case Symbol:
		return v, nil
	default:
		panic("unexpected item")
	}
}

func run(t *testing.T, opts Options, src SymbolSource) (string, int, error) {
	t.Helper()
	var out bytes.Buffer
	n, err := NewRunner(zap.NewNop(), opts).Run(context.Background(), src, &out)
	return out.String(), n, err
}

func TestScenarioPatient(t *testing.T) {
	out, n, err := run(t, Options{}, NewStaticSource(cardtest.Token(t, cardtest.PatientJSON)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Patient: Jane Doe\n", out)
}

func TestScenarioImmunization(t *testing.T) {
	out, _, err := run(t, Options{}, NewStaticSource(cardtest.Token(t, cardtest.ImmunizationJSON)))
	require.NoError(t, err)
	assert.Equal(t, "Immunization: ABC123, completed by Pharmacy X on 2021-03-01\n", out)
}

func TestScenarioUnknownResourceType(t *testing.T) {
	out, n, err := run(t, Options{}, NewStaticSource(cardtest.Token(t, cardtest.ObservationJSON)))
	assert.ErrorIs(t, err, fhir.ErrUnknownResourceType)
	assert.Zero(t, n)
	assert.Empty(t, out)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageFHIR, se.Stage)
}

func TestScenarioBadDigits(t *testing.T) {
	token := cardtest.Token(t, cardtest.PatientJSON)

	_, err := DecodeToken(token[:len(token)-1])
	assert.ErrorIs(t, err, numeric.ErrMalformedToken)

	_, err = DecodeToken(token[:10] + "x9" + token[12:])
	assert.ErrorIs(t, err, numeric.ErrInvalidDigitPair)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageNumeric, se.Stage)
}

func TestDecodeTokenStages(t *testing.T) {
	_, err := DecodeToken("shc:/" + strings.Repeat("56", 10))
	assert.ErrorIs(t, err, jws.ErrMalformedJWT)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StagePayload, se.Stage)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	src := NewStaticSource(
		cardtest.Token(t, cardtest.PatientJSON),
		cardtest.Token(t, cardtest.ObservationJSON),
		cardtest.Token(t, cardtest.ImmunizationJSON),
	)
	out, n, err := run(t, Options{}, src)
	assert.ErrorIs(t, err, fhir.ErrUnknownResourceType)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Patient: Jane Doe\n", out)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Symbol)
}

func TestRunContinueOnError(t *testing.T) {
	notFound := errors.New("not found")
	src := &listSource{items: []any{
		Token(cardtest.Token(t, cardtest.PatientJSON)),
		notFound,
		failingSymbol{err: errors.New("checksum")},
		Token(cardtest.Token(t, cardtest.ObservationJSON)),
		Token(cardtest.Token(t, cardtest.ImmunizationJSON)),
	}}
	out, n, err := run(t, Options{ContinueOnError: true}, src)
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Patient: Jane Doe\nImmunization: ABC123, completed by Pharmacy X on 2021-03-01\n", out)
	assert.ErrorIs(t, err, notFound)
	assert.ErrorIs(t, err, fhir.ErrUnknownResourceType)
}

func TestRunReportFailure(t *testing.T) {
	text := strings.Replace(cardtest.PatientJSON, `[{"family":"Doe","given":["Jane"]}]`, `[]`, 1)
	out, _, err := run(t, Options{}, NewStaticSource(cardtest.Token(t, text)))
	assert.ErrorIs(t, err, report.ErrMissingName)
	assert.Empty(t, out)
}

func TestRunRejectsNonUTF8Payload(t *testing.T) {
	src := &listSource{items: []any{Token(string([]byte{0xff, '/', '1', '2'}))}}
	_, _, err := run(t, Options{}, src)
	assert.ErrorIs(t, err, numeric.ErrMalformedToken)
}

func TestRunEmptySource(t *testing.T) {
	out, n, err := run(t, Options{}, NewStaticSource())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, out)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, err := NewRunner(nil, Options{}).Run(ctx, NewStaticSource(cardtest.Token(t, cardtest.PatientJSON)), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestLineSource(t *testing.T) {
	input := "\n" + cardtest.Token(t, cardtest.PatientJSON) + "\n  \n" + cardtest.Token(t, cardtest.ImmunizationJSON) + "\n"
	out, n, err := run(t, Options{}, NewLineSource(strings.NewReader(input)))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Patient: Jane Doe\nImmunization: ABC123, completed by Pharmacy X on 2021-03-01\n", out)
}

func TestLineSourceReadErrorEndsRun(t *testing.T) {
	input := cardtest.Token(t, cardtest.PatientJSON) + "\n" + strings.Repeat("1", 2<<20) + "\n" + cardtest.Token(t, cardtest.ImmunizationJSON) + "\n"
	src := NewLineSource(strings.NewReader(input))

	out, n, err := run(t, Options{ContinueOnError: true}, src)
	assert.ErrorIs(t, err, bufio.ErrTooLong)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Patient: Jane Doe\n", out)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}
