package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
)

func TestValidateField(t *testing.T) {
	tests := []struct {
		name    string
		in      models.FieldInput
		admin   bool
		wantErr string
	}{
		{"valid date", models.FieldInput{Label: "Due", Type: models.FieldDate, Value: "2024-01-15T10:00:00Z"}, false, ""},
		{"date only", models.FieldInput{Label: "Due", Type: models.FieldDate, Value: "2024-01-15"}, false, ""},
		{"invalid date", models.FieldInput{Label: "Due", Type: models.FieldDate, Value: "not-a-date"}, false, "Due must be a valid date"},
		{"valid phone", models.FieldInput{Label: "Phone", Type: models.FieldNumber, Value: "+14155550123"}, false, ""},
		{"phone without plus", models.FieldInput{Label: "Phone", Type: models.FieldNumber, Value: "4155550123"}, false, "Phone must be a valid phone number"},
		{"phone too long", models.FieldInput{Label: "Phone", Type: models.FieldNumber, Value: "+1234567890123456"}, false, "Phone must be a valid phone number"},
		{"required missing for user", models.FieldInput{Label: "Signature", Type: models.FieldFile, Required: true}, false, "Signature is required"},
		{"required missing for admin", models.FieldInput{Label: "Signature", Type: models.FieldFile, Required: true}, true, ""},
		{"file reference", models.FieldInput{Label: "Signature", Type: models.FieldFile, Value: "/uploads/123-sig.png", Required: true}, false, ""},
		{"missing label", models.FieldInput{Type: models.FieldString, Value: "x"}, false, "field label is required"},
		{"unsupported type", models.FieldInput{Label: "Blob", Type: "binary"}, false, "Blob has an unsupported type"},
		{"empty optional", models.FieldInput{Label: "Note", Type: models.FieldString}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateField(tt.in, tt.admin)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.KindValidation))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidateField_TypedValues(t *testing.T) {
	f, err := ValidateField(models.FieldInput{Label: "Due", Type: models.FieldDate, Value: "2024-01-15T10:00:00Z"}, false)
	require.NoError(t, err)
	dv, ok := f.Value.(models.DateValue)
	require.True(t, ok)
	assert.True(t, dv.Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)))

	f, err = ValidateField(models.FieldInput{Label: "Signature", Type: models.FieldFile, Value: "/uploads/123-sig.png"}, false)
	require.NoError(t, err)
	ref, ok := f.Value.(models.FileRef)
	require.True(t, ok)
	assert.Equal(t, "123-sig.png", ref.Name())
}

func TestMergeSubmission(t *testing.T) {
	defs := []models.Field{
		{Label: "Signature", Type: models.FieldFile, Required: true},
		{Label: "Phone", Type: models.FieldNumber},
	}

	t.Run("fills values by label", func(t *testing.T) {
		merged, err := MergeSubmission(defs, []models.FieldInput{
			{Label: "Signature", Value: "/uploads/123-sig.png"},
			{Label: "Phone", Value: "+77011234567"},
		})
		require.NoError(t, err)
		require.Len(t, merged, 2)
		assert.Equal(t, "/uploads/123-sig.png", merged[0].Value.String())
		assert.Equal(t, models.FieldFile, merged[0].Type)
		assert.Equal(t, "+77011234567", merged[1].Value.String())
		assert.Nil(t, defs[0].Value, "definitions must not be mutated")
	})

	t.Run("required field left empty", func(t *testing.T) {
		_, err := MergeSubmission(defs, []models.FieldInput{{Label: "Phone", Value: "+77011234567"}})
		require.Error(t, err)
		assert.Equal(t, "Signature is required", err.Error())
	})

	t.Run("unknown label", func(t *testing.T) {
		_, err := MergeSubmission(defs, []models.FieldInput{{Label: "Colour", Value: "red"}})
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.KindValidation))
	})

	t.Run("type comes from the definition", func(t *testing.T) {
		_, err := MergeSubmission(defs, []models.FieldInput{
			{Label: "Signature", Type: models.FieldString, Value: "/uploads/a.png"},
			{Label: "Phone", Type: models.FieldString, Value: "not a phone"},
		})
		require.Error(t, err)
		assert.Equal(t, "Phone must be a valid phone number", err.Error())
	})
}

func TestMergeDraft(t *testing.T) {
	defs := []models.Field{
		{Label: "Signature", Type: models.FieldFile, Required: true},
		{Label: "Phone", Type: models.FieldNumber},
	}

	merged, err := MergeDraft(defs, []models.FieldInput{{Label: "Phone", Value: "+77011234567"}})
	require.NoError(t, err)
	assert.True(t, merged[0].IsEmpty())
	assert.Equal(t, "+77011234567", merged[1].Value.String())

	_, err = MergeDraft(defs, []models.FieldInput{{Label: "Phone", Value: "123"}})
	assert.True(t, models.IsKind(err, models.KindValidation))
}
