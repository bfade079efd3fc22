package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CustomField is one {field, value} pair of a document's custom_fields
// collection. Value keeps whatever JSON type the document store returned
// (string, number, null, list).
type CustomField struct {
	Field int `json:"field"`
	Value any `json:"value"`
}

// Document is the subset of a Paperless document this system reads.
type Document struct {
	ID            int           `json:"id"`
	Title         string        `json:"title"`
	DocumentType  *int          `json:"document_type"`
	Correspondent *int          `json:"correspondent"`
	Added         string        `json:"added"`
	CustomFields  []CustomField `json:"custom_fields"`
}

// FieldValue returns the value of the first custom field with the given id.
func (d *Document) FieldValue(fieldID int) (any, bool) {
	if d == nil {
		return nil, false
	}
	for _, cf := range d.CustomFields {
		if cf.Field == fieldID {
			return cf.Value, true
		}
	}
	return nil, false
}

// WithField returns a copy of fields where the entry for fieldID is replaced
// by value, or appended when absent. The input slice is not modified.
func WithField(fields []CustomField, fieldID int, value any) []CustomField {
	out := make([]CustomField, 0, len(fields)+1)
	found := false
	for _, cf := range fields {
		if cf.Field == fieldID {
			cf.Value = value
			found = true
		}
		out = append(out, cf)
	}
	if !found {
		out = append(out, CustomField{Field: fieldID, Value: value})
	}
	return out
}

// CustomFieldDefinition describes a custom field as returned by
// /api/custom_fields/.
type CustomFieldDefinition struct {
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	DataType  string         `json:"data_type"`
	ExtraData map[string]any `json:"extra_data"`
}

// SelectOption is one choice of a select-type custom field.
type SelectOption struct {
	ID    string
	Label string
}

// SelectOptions decodes extra_data.select_options. Newer Paperless versions
// return {id, label} objects; older ones return plain labels, in which case
// the id is the label itself.
func (d CustomFieldDefinition) SelectOptions() []SelectOption {
	raw, ok := d.ExtraData["select_options"].([]any)
	if !ok {
		return nil
	}
	opts := make([]SelectOption, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			opts = append(opts, SelectOption{ID: v, Label: v})
		case map[string]any:
			id := fmt.Sprint(v["id"])
			label, _ := v["label"].(string)
			opts = append(opts, SelectOption{ID: id, Label: label})
		}
	}
	return opts
}

// ParseDocumentID parses a decimal document id. It accepts JSON numbers and
// numeric strings, as sent by Paperless workflow webhooks.
func ParseDocumentID(raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v <= 0 || v != float64(int(v)) {
			return 0, fmt.Errorf("invalid document id %v", v)
		}
		return int(v), nil
	case json.Number:
		return ParseDocumentID(v.String())
	case int:
		if v <= 0 {
			return 0, fmt.Errorf("invalid document id %d", v)
		}
		return v, nil
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("invalid document id %q", v)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("invalid document id %v", raw)
	}
}
