// Package lifecycle holds the task assignment rules: field validation,
// notification scheduling, assignment targets, accept/reject/status
// transitions and the pending-task predicate. Everything here is pure; the
// caller supplies the current time.
package lifecycle

import (
	"regexp"
	"strings"

	"taskflow/internal/models"
)

var phonePattern = regexp.MustCompile(`^\+\d{1,15}$`)

// ValidateField checks one submitted field and returns its typed form.
// Required is only enforced for non-admin submitters.
func ValidateField(in models.FieldInput, submitterIsAdmin bool) (models.Field, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return models.Field{}, models.ValidationError("label", "field label is required")
	}
	if !in.Type.Valid() {
		return models.Field{}, models.ValidationError(label, "%s has an unsupported type", label)
	}

	out := models.Field{Label: label, Type: in.Type, Required: in.Required}
	raw := strings.TrimSpace(in.Value)
	if raw == "" {
		if in.Required && !submitterIsAdmin {
			return models.Field{}, models.ValidationError(label, "%s is required", label)
		}
		return out, nil
	}

	switch in.Type {
	case models.FieldNumber:
		if !phonePattern.MatchString(raw) {
			return models.Field{}, models.ValidationError(label, "%s must be a valid phone number", label)
		}
	case models.FieldDate:
		if _, err := models.ParseDate(raw); err != nil {
			return models.Field{}, models.ValidationError(label, "%s must be a valid date", label)
		}
	}

	v, err := models.ParseFieldValue(in.Type, raw)
	if err != nil {
		return models.Field{}, models.ValidationError(label, "%s has an invalid value", label)
	}
	out.Value = v
	return out, nil
}

// ValidateFields validates in order and stops at the first failure.
func ValidateFields(in []models.FieldInput, submitterIsAdmin bool) ([]models.Field, error) {
	out := make([]models.Field, 0, len(in))
	for _, f := range in {
		field, err := ValidateField(f, submitterIsAdmin)
		if err != nil {
			return nil, err
		}
		out = append(out, field)
	}
	return out, nil
}

// CheckRequired re-validates already typed fields for a non-admin submission.
func CheckRequired(fields []models.Field) error {
	for _, f := range fields {
		if f.Required && f.IsEmpty() {
			return models.ValidationError(f.Label, "%s is required", f.Label)
		}
	}
	return nil
}

// MergeSubmission copies submitted values onto the task's field definitions by
// label. Definitions (type, required) always come from the task.
func MergeSubmission(defs []models.Field, submitted []models.FieldInput) ([]models.Field, error) {
	merged, err := mergeFields(defs, submitted, false)
	if err != nil {
		return nil, err
	}
	if err := CheckRequired(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// MergeDraft is MergeSubmission without the required check, for saving
// partial work. Formats are still validated.
func MergeDraft(defs []models.Field, submitted []models.FieldInput) ([]models.Field, error) {
	return mergeFields(defs, submitted, true)
}

func mergeFields(defs []models.Field, submitted []models.FieldInput, draft bool) ([]models.Field, error) {
	byLabel := make(map[string]int, len(defs))
	for i, f := range defs {
		byLabel[f.Label] = i
	}

	merged := append([]models.Field(nil), defs...)
	for _, in := range submitted {
		label := strings.TrimSpace(in.Label)
		idx, ok := byLabel[label]
		if !ok {
			return nil, models.ValidationError(label, "%s is not a field of this task", label)
		}
		def := merged[idx]
		field, err := ValidateField(models.FieldInput{
			Label:    def.Label,
			Type:     def.Type,
			Value:    in.Value,
			Required: def.Required,
		}, draft)
		if err != nil {
			return nil, err
		}
		merged[idx] = field
	}
	return merged, nil
}
