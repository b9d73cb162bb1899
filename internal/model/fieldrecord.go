package model

import "time"

// FieldKey identifies one field in the fixed clinical extraction schema.
type FieldKey string

// The fixed clinical field schema. Order matters: prompts are numbered by
// position and parse indices map back through FieldKeys().
const (
	FieldPatientName        FieldKey = "patient_name"
	FieldDateOfBirth        FieldKey = "date_of_birth"
	FieldInsurance          FieldKey = "insurance"
	FieldLocation           FieldKey = "location"
	FieldDiagnosis          FieldKey = "diagnosis"
	FieldPrimaryCare        FieldKey = "primary_care_provider"
	FieldDischargeInfo      FieldKey = "discharge_info"
	FieldWounds             FieldKey = "wounds"
	FieldMedications        FieldKey = "medications"
	FieldCardiacMedications FieldKey = "cardiac_medications"
	FieldLabs               FieldKey = "labs"
	FieldFaceToFace         FieldKey = "face_to_face"
	FieldHistory            FieldKey = "history"
	FieldMentalHealth       FieldKey = "mental_health"
	FieldAdditionalComments FieldKey = "additional_comments"
)

var fieldKeys = []FieldKey{
	FieldPatientName,
	FieldDateOfBirth,
	FieldInsurance,
	FieldLocation,
	FieldDiagnosis,
	FieldPrimaryCare,
	FieldDischargeInfo,
	FieldWounds,
	FieldMedications,
	FieldCardiacMedications,
	FieldLabs,
	FieldFaceToFace,
	FieldHistory,
	FieldMentalHealth,
	FieldAdditionalComments,
}

var fieldLabels = map[FieldKey]string{
	FieldPatientName:        "Patient Name",
	FieldDateOfBirth:        "Date of Birth",
	FieldInsurance:          "Insurance",
	FieldLocation:           "Location",
	FieldDiagnosis:          "Diagnosis",
	FieldPrimaryCare:        "Primary Care Provider",
	FieldDischargeInfo:      "Hospital Discharge Information",
	FieldWounds:             "Wounds",
	FieldMedications:        "Medications",
	FieldCardiacMedications: "Cardiac Medications",
	FieldLabs:               "Labs",
	FieldFaceToFace:         "Face-to-Face Evaluation",
	FieldHistory:            "Medical History",
	FieldMentalHealth:       "Mental Health State",
	FieldAdditionalComments: "Additional Comments",
}

// multiValueFields can legitimately hold several values collected across
// chunks; everything else is single-valued.
var multiValueFields = map[FieldKey]bool{
	FieldWounds:             true,
	FieldMedications:        true,
	FieldCardiacMedications: true,
	FieldLabs:               true,
	FieldHistory:            true,
	FieldAdditionalComments: true,
}

// FieldKeys returns the schema keys in canonical order. Callers must not
// mutate the returned slice.
func FieldKeys() []FieldKey {
	return fieldKeys
}

// FieldLabel returns the human-readable label for a key, or the key itself
// if unknown.
func FieldLabel(key FieldKey) string {
	if l, ok := fieldLabels[key]; ok {
		return l
	}
	return string(key)
}

// IsMultiValue reports whether a field may accumulate multiple values.
func IsMultiValue(key FieldKey) bool {
	return multiValueFields[key]
}

// IsValidFieldKey reports whether key belongs to the schema.
func IsValidFieldKey(key FieldKey) bool {
	_, ok := fieldLabels[key]
	return ok
}

// ExtractionMethod describes how a FieldRecord was produced.
type ExtractionMethod string

const (
	MethodStructured  ExtractionMethod = "structured"
	MethodPartial     ExtractionMethod = "partial"
	MethodFormatError ExtractionMethod = "format_error"
	MethodFailed      ExtractionMethod = "failed"
)

// FieldRecord holds the structured clinical fields extracted from one
// document. Every schema key is always present, even when empty, so callers
// never need to existence-check a field.
type FieldRecord struct {
	Values      map[FieldKey]string `json:"values"`
	Method      ExtractionMethod    `json:"extraction_method"`
	ExtractedAt time.Time           `json:"extracted_at"`
	Err         string              `json:"error,omitempty"`
}

// NewFieldRecord returns a record with every schema key seeded empty.
func NewFieldRecord() *FieldRecord {
	values := make(map[FieldKey]string, len(fieldKeys))
	for _, k := range fieldKeys {
		values[k] = ""
	}
	return &FieldRecord{
		Values:      values,
		ExtractedAt: time.Now().UTC(),
	}
}

// Get returns the value for key ("" for unknown keys).
func (r *FieldRecord) Get(key FieldKey) string {
	return r.Values[key]
}

// Set stores a value, ignoring keys outside the schema.
func (r *FieldRecord) Set(key FieldKey, value string) {
	if !IsValidFieldKey(key) {
		return
	}
	r.Values[key] = value
}

// Populated counts non-empty fields.
func (r *FieldRecord) Populated() int {
	n := 0
	for _, k := range fieldKeys {
		if r.Values[k] != "" {
			n++
		}
	}
	return n
}
