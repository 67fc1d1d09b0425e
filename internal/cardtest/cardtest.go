// Package cardtest builds SMART Health Card fixtures for tests.
package cardtest

import (
	"bytes"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/klauspost/compress/flate"

	"github.com/dharsanguruparan/CardScan/internal/numeric"
)

// Header is the protected header used by every fixture.
const Header = `{"zip":"DEF","alg":"ES256","kid":"test-key"}`

// PatientJSON is a single-patient card body.
const PatientJSON = `{"iss":"https://example.org","nbf":1600000000,"vc":{"type":["VerifiableCredential"],"credentialSubject":{"fhirVersion":"4.0.1","fhirBundle":{"resourceType":"Bundle","type":"collection","entry":[{"fullUrl":"resource:0","resource":{"resourceType":"Patient","name":[{"family":"Doe","given":["Jane"]}],"birthDate":"1970-01-01"}}]}}}}`

// ImmunizationJSON is a single-immunization card body.
const ImmunizationJSON = `{"iss":"https://example.org","nbf":1600000000,"vc":{"type":["VerifiableCredential"],"credentialSubject":{"fhirVersion":"4.0.1","fhirBundle":{"resourceType":"Bundle","type":"collection","entry":[{"fullUrl":"resource:1","resource":{"resourceType":"Immunization","lotNumber":" ABC123 ","status":"completed","vaccineCode":{"coding":[{"system":"http://hl7.org/cvx","code":"208"}]},"patient":{"reference":"resource:0"},"occurrenceDateTime":"2021-03-01","performer":[{"actor":{"display":"Pharmacy X"}}]}}]}}}}`

// ObservationJSON carries a resource type the decoder does not know.
const ObservationJSON = `{"iss":"https://example.org","nbf":1600000000,"vc":{"type":["VerifiableCredential"],"credentialSubject":{"fhirVersion":"4.0.1","fhirBundle":{"resourceType":"Bundle","type":"collection","entry":[{"fullUrl":"resource:0","resource":{"resourceType":"Observation","status":"final"}}]}}}}`

// Deflate raw-deflates data without a zlib or gzip wrapper.
func Deflate(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		t.Fatalf("new flate writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close flate writer: %v", err)
	}
	return buf.Bytes()
}

// JWS assembles header.payload.signature with a deflated payload and a dummy
// signature.
func JWS(t testing.TB, body string) string {
	t.Helper()
	return jwt.EncodeSegment([]byte(Header)) + "." +
		jwt.EncodeSegment(Deflate(t, []byte(body))) + "." +
		jwt.EncodeSegment([]byte("not-a-signature"))
}

// Token returns the numeric "shc:/..." form of a card with the given body.
func Token(t testing.TB, body string) string {
	t.Helper()
	token, err := numeric.Encode(JWS(t, body))
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	return token
}
