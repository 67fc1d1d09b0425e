package fhir

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var (
	ErrSchemaViolation     = errors.New("schema violation")
	ErrUnknownResourceType = errors.New("unknown resource type")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// The wire types mirror the model with pointer scalars, so "required" means
// present and a present zero value ("nbf":0, "lotNumber":"") is accepted.
// Resources stay raw until their resourceType has been read.
type wireBody struct {
	Issuer    *string   `json:"iss" validate:"required"`
	NotBefore *int64    `json:"nbf" validate:"required"`
	VC        *wireCred `json:"vc" validate:"required"`
}

type wireCred struct {
	Type              []string     `json:"type" validate:"required"`
	CredentialSubject *wireSubject `json:"credentialSubject" validate:"required"`
}

type wireSubject struct {
	FHIRVersion *string     `json:"fhirVersion" validate:"required"`
	FHIRBundle  *wireBundle `json:"fhirBundle" validate:"required"`
}

type wireBundle struct {
	ResourceType *string     `json:"resourceType" validate:"required"`
	Type         *string     `json:"type" validate:"required"`
	Entry        []wireEntry `json:"entry" validate:"required,dive"`
}

type wireEntry struct {
	FullURL  *string         `json:"fullUrl" validate:"required"`
	Resource json.RawMessage `json:"resource" validate:"required"`
}

type wirePatient struct {
	Name      []wireHumanName `json:"name" validate:"required,dive"`
	BirthDate *string         `json:"birthDate" validate:"required"`
}

type wireHumanName struct {
	Family *string  `json:"family" validate:"required"`
	Given  []string `json:"given" validate:"required"`
}

type wireImmunization struct {
	LotNumber          *string              `json:"lotNumber" validate:"required"`
	Status             *string              `json:"status" validate:"required"`
	VaccineCode        *wireCodeableConcept `json:"vaccineCode" validate:"required"`
	Patient            *wireReference       `json:"patient" validate:"required"`
	OccurrenceDateTime *string              `json:"occurrenceDateTime" validate:"required"`
	Performer          []wirePerformer      `json:"performer" validate:"required,dive"`
}

type wireCodeableConcept struct {
	Coding []wireCoding `json:"coding" validate:"required,dive"`
}

type wireCoding struct {
	System *string `json:"system" validate:"required"`
	Code   *string `json:"code" validate:"required"`
}

type wireReference struct {
	Reference *string `json:"reference" validate:"required"`
}

type wirePerformer struct {
	Actor *wireActor `json:"actor" validate:"required"`
}

type wireActor struct {
	Display *string `json:"display" validate:"required"`
}

// Decode parses the inflated claims of a health card. Keys must match the
// claim and FHIR field names exactly, including case.
func Decode(text string) (*Body, error) {
	var wire wireBody
	if err := decodeWire([]byte(text), &wire); err != nil {
		return nil, err
	}

	bundle := wire.VC.CredentialSubject.FHIRBundle
	entries := make([]Entry, 0, len(bundle.Entry))
	for i, e := range bundle.Entry {
		res, err := decodeResource(e.Resource)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, *e.FullURL, err)
		}
		entries = append(entries, Entry{FullURL: *e.FullURL, Resource: res})
	}

	return &Body{
		Issuer:    *wire.Issuer,
		NotBefore: *wire.NotBefore,
		VC: VerifiableCredential{
			Type: wire.VC.Type,
			CredentialSubject: CredentialSubject{
				FHIRVersion: *wire.VC.CredentialSubject.FHIRVersion,
				FHIRBundle: Bundle{
					ResourceType: *bundle.ResourceType,
					Type:         *bundle.Type,
					Entry:        entries,
				},
			},
		},
	}, nil
}

func decodeResource(raw json.RawMessage) (Resource, error) {
	var tag struct {
		ResourceType *string `json:"resourceType"`
	}
	if err := unmarshalExact(raw, &tag); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	if tag.ResourceType == nil {
		return nil, fmt.Errorf("%w: resource has no resourceType", ErrSchemaViolation)
	}

	switch *tag.ResourceType {
	case TypePatient:
		var w wirePatient
		if err := decodeWire(raw, &w); err != nil {
			return nil, err
		}
		return w.patient(), nil
	case TypeImmunization:
		var w wireImmunization
		if err := decodeWire(raw, &w); err != nil {
			return nil, err
		}
		return w.immunization(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, *tag.ResourceType)
	}
}

func decodeWire(raw []byte, v any) error {
	if err := unmarshalExact(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	return nil
}

func (w wirePatient) patient() Patient {
	names := make([]HumanName, 0, len(w.Name))
	for _, n := range w.Name {
		names = append(names, HumanName{Family: *n.Family, Given: n.Given})
	}
	return Patient{Name: names, BirthDate: *w.BirthDate}
}

func (w wireImmunization) immunization() Immunization {
	coding := make([]Coding, 0, len(w.VaccineCode.Coding))
	for _, c := range w.VaccineCode.Coding {
		coding = append(coding, Coding{System: *c.System, Code: *c.Code})
	}
	performers := make([]Performer, 0, len(w.Performer))
	for _, p := range w.Performer {
		performers = append(performers, Performer{Actor: Actor{Display: *p.Actor.Display}})
	}
	return Immunization{
		LotNumber:          *w.LotNumber,
		Status:             *w.Status,
		VaccineCode:        CodeableConcept{Coding: coding},
		Patient:            Reference{Reference: *w.Patient.Reference},
		OccurrenceDateTime: *w.OccurrenceDateTime,
		Performer:          performers,
	}
}
