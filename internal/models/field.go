package models

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number" // phone numbers
	FieldDate   FieldType = "date"
	FieldFile   FieldType = "file"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldNumber, FieldDate, FieldFile:
		return true
	}
	return false
}

// FieldValue is the typed payload of a Field. The concrete type always
// matches the field's FieldType.
type FieldValue interface {
	FieldType() FieldType
	String() string
}

type TextValue string

func (TextValue) FieldType() FieldType { return FieldString }
func (v TextValue) String() string     { return string(v) }

type PhoneValue string

func (PhoneValue) FieldType() FieldType { return FieldNumber }
func (v PhoneValue) String() string     { return string(v) }

type DateValue struct{ time.Time }

func (DateValue) FieldType() FieldType { return FieldDate }
func (v DateValue) String() string     { return v.UTC().Format(time.RFC3339) }

// FileRef points at a stored upload; the bytes never live on the task.
type FileRef struct {
	URL string
}

func (FileRef) FieldType() FieldType { return FieldFile }
func (v FileRef) String() string     { return v.URL }

// Name is the stored file name portion of the reference.
func (v FileRef) Name() string { return path.Base(v.URL) }

// Field is one custom data slot on a task. Value is nil while unset.
type Field struct {
	Label    string
	Type     FieldType
	Required bool
	Value    FieldValue
}

func (f Field) IsEmpty() bool {
	return f.Value == nil || strings.TrimSpace(f.Value.String()) == ""
}

type fieldJSON struct {
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Value    *string   `json:"value,omitempty"`
}

func (f Field) MarshalJSON() ([]byte, error) {
	out := fieldJSON{Label: f.Label, Type: f.Type, Required: f.Required}
	if f.Value != nil {
		s := f.Value.String()
		out.Value = &s
	}
	return json.Marshal(out)
}

func (f *Field) UnmarshalJSON(data []byte) error {
	var in fieldJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	f.Label = in.Label
	f.Type = in.Type
	f.Required = in.Required
	f.Value = nil
	if in.Value == nil || strings.TrimSpace(*in.Value) == "" {
		return nil
	}
	v, err := ParseFieldValue(in.Type, *in.Value)
	if err != nil {
		return fmt.Errorf("field %q: %w", in.Label, err)
	}
	f.Value = v
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts RFC3339 and the shorter layouts browsers send for date inputs.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// ParseFieldValue builds the typed value for raw input. It does not apply
// format rules beyond what is needed to represent the value.
func ParseFieldValue(t FieldType, raw string) (FieldValue, error) {
	raw = strings.TrimSpace(raw)
	switch t {
	case FieldString:
		return TextValue(raw), nil
	case FieldNumber:
		return PhoneValue(raw), nil
	case FieldDate:
		ts, err := ParseDate(raw)
		if err != nil {
			return nil, err
		}
		return DateValue{ts}, nil
	case FieldFile:
		return FileRef{URL: raw}, nil
	}
	return nil, fmt.Errorf("unsupported field type %q", t)
}

// FieldInput is a field as submitted by a client, before validation.
type FieldInput struct {
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Value    string    `json:"value"`
	Required bool      `json:"required"`
}
