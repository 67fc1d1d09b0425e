package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/CardScan/internal/fhir"
)

func bodyOf(resources ...fhir.Resource) *fhir.Body {
	b := &fhir.Body{}
	for _, r := range resources {
		b.VC.CredentialSubject.FHIRBundle.Entry = append(b.VC.CredentialSubject.FHIRBundle.Entry, fhir.Entry{FullURL: "resource:x", Resource: r})
	}
	return b
}

var (
	jane = fhir.Patient{
		Name: []fhir.HumanName{
			{Family: "Doe", Given: []string{"Jane", "Q."}},
			{Family: "Ignored", Given: []string{"Not"}},
		},
		BirthDate: "1970-01-01",
	}
	shot = fhir.Immunization{
		LotNumber:          " ABC123 ",
		Status:             "completed",
		OccurrenceDateTime: "2021-03-01",
		Performer: []fhir.Performer{
			{Actor: fhir.Actor{Display: "Pharmacy X"}},
			{Actor: fhir.Actor{Display: "Second"}},
		},
	}
)

func TestWrite(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Write(&out, bodyOf(jane, shot)))
	assert.Equal(t, "Patient: Jane Q. Doe\nImmunization: ABC123, completed by Pharmacy X on 2021-03-01\n", out.String())
}

func TestWriteNoGivenNames(t *testing.T) {
	var out bytes.Buffer
	p := fhir.Patient{Name: []fhir.HumanName{{Family: "Doe", Given: []string{}}}}
	require.NoError(t, Write(&out, bodyOf(p)))
	assert.Equal(t, "Patient: Doe\n", out.String())
}

func TestWriteMissingName(t *testing.T) {
	var out bytes.Buffer
	err := Write(&out, bodyOf(shot, fhir.Patient{}))
	assert.ErrorIs(t, err, ErrMissingName)
	assert.Empty(t, out.String())
}

func TestWriteMissingPerformer(t *testing.T) {
	var out bytes.Buffer
	err := Write(&out, bodyOf(fhir.Immunization{LotNumber: "x"}))
	assert.ErrorIs(t, err, ErrMissingPerformer)
	assert.Empty(t, out.String())
}

func TestLinesDoesNotAliasGivenNames(t *testing.T) {
	given := make([]string, 1, 4)
	given[0] = "Jane"
	p := fhir.Patient{Name: []fhir.HumanName{{Family: "Doe", Given: given}}}

	lines, err := Lines(bodyOf(p))
	require.NoError(t, err)
	assert.Equal(t, []string{"Patient: Jane Doe"}, lines)
	assert.Equal(t, "", given[:2][1])
}
