package core

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// FieldCatalog lists the custom field definitions of the document store.
type FieldCatalog interface {
	ListCustomFields(ctx context.Context) ([]models.CustomFieldDefinition, error)
}

// ConfigFinding is one mismatch between the configuration and the document
// store.
type ConfigFinding struct {
	Key     string
	Message string
}

// CheckConfig compares cfg with the custom fields the document store
// actually has: the configured field ids must exist, and every id in
// STATUS_LABEL_TO_ID must be one of the status field's select options.
// An empty result means the configuration matches.
func CheckConfig(ctx context.Context, cfg models.Config, catalog FieldCatalog) ([]ConfigFinding, error) {
	defs, err := catalog.ListCustomFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing custom fields: %w", err)
	}
	byID := make(map[int]models.CustomFieldDefinition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}

	var findings []ConfigFinding
	for _, f := range []struct {
		key string
		id  int
	}{
		{"CUSTOM_FIELD_STATUS", cfg.CustomFieldStatus},
		{"CUSTOM_FIELD_AKTION", cfg.CustomFieldAction},
		{"CUSTOM_FIELD_PROCESSED_DATE", cfg.CustomFieldProcessedDate},
	} {
		if _, ok := byID[f.id]; !ok {
			findings = append(findings, ConfigFinding{Key: f.key, Message: fmt.Sprintf("custom field %d does not exist", f.id)})
		}
	}

	status, ok := byID[cfg.CustomFieldStatus]
	if !ok {
		return findings, nil
	}
	options := make(map[string]string)
	for _, o := range status.SelectOptions() {
		options[o.ID] = o.Label
	}
	if len(options) == 0 {
		findings = append(findings, ConfigFinding{
			Key:     "CUSTOM_FIELD_STATUS",
			Message: fmt.Sprintf("field %d (%s) has no select options", status.ID, status.Name),
		})
		return findings, nil
	}
	for _, label := range cfg.StatusLabelToID.Labels() {
		id, _ := cfg.StatusLabelToID.ID(label)
		remote, ok := options[id]
		switch {
		case !ok:
			findings = append(findings, ConfigFinding{
				Key:     "STATUS_LABEL_TO_ID",
				Message: fmt.Sprintf("%q maps to %q, which is not an option of field %d", label, id, status.ID),
			})
		case remote != label:
			findings = append(findings, ConfigFinding{
				Key:     "STATUS_LABEL_TO_ID",
				Message: fmt.Sprintf("%q maps to %q, which Paperless calls %q", label, id, remote),
			})
		}
	}
	return findings, nil
}
