// Package fhir holds the subset of the SMART Health Card claims this tool
// reads: the JWT claims, the verifiable credential wrapper and the FHIR
// bundle with Patient and Immunization entries.
package fhir

// Body is the decoded claim set of a health card.
type Body struct {
	Issuer    string               `json:"iss"`
	NotBefore int64                `json:"nbf"`
	VC        VerifiableCredential `json:"vc"`
}

type VerifiableCredential struct {
	Type              []string          `json:"type"`
	CredentialSubject CredentialSubject `json:"credentialSubject"`
}

type CredentialSubject struct {
	FHIRVersion string `json:"fhirVersion"`
	FHIRBundle  Bundle `json:"fhirBundle"`
}

type Bundle struct {
	ResourceType string  `json:"resourceType"`
	Type         string  `json:"type"`
	Entry        []Entry `json:"entry"`
}

type Entry struct {
	FullURL  string   `json:"fullUrl"`
	Resource Resource `json:"resource"`
}

// Resource is implemented only by Patient and Immunization. Adding a variant
// means adding a type here and a case wherever resources are switched on.
type Resource interface {
	ResourceType() string
	sealed()
}

const (
	TypePatient      = "Patient"
	TypeImmunization = "Immunization"
)

type Patient struct {
	Name      []HumanName `json:"name"`
	BirthDate string      `json:"birthDate"`
}

func (Patient) ResourceType() string { return TypePatient }
func (Patient) sealed()              {}

type HumanName struct {
	Family string   `json:"family"`
	Given  []string `json:"given"`
}

type Immunization struct {
	LotNumber          string          `json:"lotNumber"`
	Status             string          `json:"status"`
	VaccineCode        CodeableConcept `json:"vaccineCode"`
	Patient            Reference       `json:"patient"`
	OccurrenceDateTime string          `json:"occurrenceDateTime"`
	Performer          []Performer     `json:"performer"`
}

func (Immunization) ResourceType() string { return TypeImmunization }
func (Immunization) sealed()              {}

type CodeableConcept struct {
	Coding []Coding `json:"coding"`
}

type Coding struct {
	System string `json:"system"`
	Code   string `json:"code"`
}

type Reference struct {
	Reference string `json:"reference"`
}

type Performer struct {
	Actor Actor `json:"actor"`
}

type Actor struct {
	Display string `json:"display"`
}
