// Package pipeline turns scanned QR payloads into printed card summaries:
// numeric pairs to JWT, JWT payload to JSON, JSON to FHIR records, records to
// report lines.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CardScan/internal/fhir"
	"github.com/dharsanguruparan/CardScan/internal/jws"
	"github.com/dharsanguruparan/CardScan/internal/numeric"
	"github.com/dharsanguruparan/CardScan/internal/report"
)

// Symbol is one detected QR code.
type Symbol interface {
	Decode() ([]byte, error)
}

// SymbolSource yields symbols one at a time and io.EOF when exhausted. A
// non-EOF error stands for a symbol that could not be located.
type SymbolSource interface {
	Next() (Symbol, error)
}

// Stage names the step that failed.
type Stage string

const (
	StageScan    Stage = "scan"
	StageSymbol  Stage = "symbol"
	StageNumeric Stage = "numeric"
	StagePayload Stage = "payload"
	StageFHIR    Stage = "fhir"
	StageReport  Stage = "report"
)

// StageError records which step of a symbol's decode failed.
type StageError struct {
	Symbol int
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("symbol %d: %s: %v", e.Symbol, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// DecodeToken runs the numeric, payload and FHIR stages on one token.
func DecodeToken(token string) (*fhir.Body, error) {
	text, err := numeric.Decode(token)
	if err != nil {
		return nil, &StageError{Stage: StageNumeric, Err: err}
	}
	return decodeJWS(text)
}

func decodeJWS(text string) (*fhir.Body, error) {
	claims, err := jws.Payload(text)
	if err != nil {
		return nil, &StageError{Stage: StagePayload, Err: err}
	}
	body, err := fhir.Decode(claims)
	if err != nil {
		return nil, &StageError{Stage: StageFHIR, Err: err}
	}
	return body, nil
}

// Options tune a Runner.
type Options struct {
	// ContinueOnError keeps going after a symbol fails; every failure is
	// still returned from Run.
	ContinueOnError bool
}

// Runner drives symbols through the pipeline one after another.
type Runner struct {
	log  *zap.Logger
	opts Options
}

// NewRunner builds a Runner. A nil logger discards log output.
func NewRunner(log *zap.Logger, opts Options) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{log: log, opts: opts}
}

// Run reports every symbol from src to w and returns the number of cards
// written. By default the first failure stops the run.
func (r *Runner) Run(ctx context.Context, src SymbolSource, w io.Writer) (int, error) {
	var (
		errs    error
		written int
	)
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return written, multierr.Append(errs, err)
		}
		sym, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil {
			err = r.handle(sym, w)
		} else {
			err = &StageError{Stage: StageScan, Err: err}
		}
		if err == nil {
			written++
			continue
		}

		var se *StageError
		if errors.As(err, &se) {
			se.Symbol = i
		}
		if !r.opts.ContinueOnError {
			return written, err
		}
		r.log.Warn("skipping symbol", zap.Int("symbol", i), zap.Error(err))
		errs = multierr.Append(errs, err)
	}
	return written, errs
}

func (r *Runner) handle(sym Symbol, w io.Writer) error {
	payload, err := sym.Decode()
	if err != nil {
		return &StageError{Stage: StageSymbol, Err: err}
	}
	if !utf8.Valid(payload) {
		return &StageError{Stage: StageNumeric, Err: fmt.Errorf("%w: payload is not utf-8", numeric.ErrMalformedToken)}
	}
	text, err := numeric.Decode(string(payload))
	if err != nil {
		return &StageError{Stage: StageNumeric, Err: err}
	}
	if h, err := jws.ParseHeader(text); err == nil {
		r.log.Debug("card header", zap.String("alg", h.Alg), zap.String("kid", h.Kid), zap.String("zip", h.Zip))
	}

	body, err := decodeJWS(text)
	if err != nil {
		return err
	}
	r.log.Info("decoded card",
		zap.String("issuer", body.Issuer),
		zap.Int64("nbf", body.NotBefore),
		zap.Int("entries", len(body.VC.CredentialSubject.FHIRBundle.Entry)))

	if err := report.Write(w, body); err != nil {
		return &StageError{Stage: StageReport, Err: err}
	}
	return nil
}
