package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFieldRecord_AllKeysPresent(t *testing.T) {
	r := NewFieldRecord()

	require.Len(t, r.Values, 15)
	for _, key := range FieldKeys() {
		v, ok := r.Values[key]
		assert.True(t, ok, "key %s missing", key)
		assert.Equal(t, "", v)
	}
}

func TestFieldRecord_JSONKeysNeverNull(t *testing.T) {
	r := NewFieldRecord()
	r.Set(FieldPatientName, "Jane Doe")

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded struct {
		Values map[string]*string `json:"values"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Values, 15)
	for k, v := range decoded.Values {
		require.NotNil(t, v, "field %s is null", k)
	}
}

func TestFieldRecord_SetIgnoresUnknownKey(t *testing.T) {
	r := NewFieldRecord()
	r.Set(FieldKey("made_up"), "value")

	assert.Len(t, r.Values, 15)
	assert.Equal(t, "", r.Get(FieldKey("made_up")))
}

func TestFieldRecord_Populated(t *testing.T) {
	r := NewFieldRecord()
	assert.Equal(t, 0, r.Populated())

	r.Set(FieldPatientName, "Jane Doe")
	r.Set(FieldMedications, "Lisinopril 10mg")
	assert.Equal(t, 2, r.Populated())
}

func TestFieldKeys_CanonicalOrder(t *testing.T) {
	keys := FieldKeys()
	require.Len(t, keys, 15)
	assert.Equal(t, FieldPatientName, keys[0])
	assert.Equal(t, FieldMedications, keys[8]) // prompt line 9
	assert.Equal(t, FieldAdditionalComments, keys[14])
}

func TestFieldLabel(t *testing.T) {
	assert.Equal(t, "Date of Birth", FieldLabel(FieldDateOfBirth))
	assert.Equal(t, "bogus", FieldLabel(FieldKey("bogus")))
}

func TestIsMultiValue(t *testing.T) {
	assert.True(t, IsMultiValue(FieldMedications))
	assert.True(t, IsMultiValue(FieldLabs))
	assert.False(t, IsMultiValue(FieldPatientName))
	assert.False(t, IsMultiValue(FieldDateOfBirth))
}
