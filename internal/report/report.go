// Package report renders the one-line-per-resource summary of a decoded card.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dharsanguruparan/CardScan/internal/fhir"
)

var (
	ErrMissingName      = errors.New("patient has no name")
	ErrMissingPerformer = errors.New("immunization has no performer")
)

// Lines formats every bundle entry in order.
func Lines(body *fhir.Body) ([]string, error) {
	entries := body.VC.CredentialSubject.FHIRBundle.Entry
	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		line, err := format(e.Resource)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, e.FullURL, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Write prints the summary of body to w. Nothing is written unless every
// entry formats.
func Write(w io.Writer, body *fhir.Body) error {
	lines, err := Lines(body)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func format(res fhir.Resource) (string, error) {
	switch r := res.(type) {
	case fhir.Patient:
		if len(r.Name) == 0 {
			return "", ErrMissingName
		}
		name := r.Name[0]
		parts := append(append([]string{}, name.Given...), name.Family)
		return "Patient: " + strings.Join(parts, " "), nil
	case fhir.Immunization:
		if len(r.Performer) == 0 {
			return "", ErrMissingPerformer
		}
		return fmt.Sprintf("Immunization: %s, %s by %s on %s",
			strings.TrimSpace(r.LotNumber), r.Status, r.Performer[0].Actor.Display, r.OccurrenceDateTime), nil
	default:
		panic(fmt.Sprintf("report: unhandled resource %T", res))
	}
}
