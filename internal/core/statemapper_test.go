package core

import (
	"encoding/json"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

func intPtr(v int) *int { return &v }

func docWithFields(id int, fields ...models.CustomField) *models.Document {
	return &models.Document{ID: id, Title: "Rechnung", CustomFields: fields}
}

func TestStateMapper_LabelForStatus(t *testing.T) {
	cfg := DefaultConfig()
	m := NewStateMapper(cfg, nil)

	tests := []struct {
		name string
		doc  *models.Document
		want string
	}{
		{"field absent", docWithFields(1), "Unbearbeitet"},
		{"null value", docWithFields(1, models.CustomField{Field: 4, Value: nil}), "Unbearbeitet"},
		{"mapped id", docWithFields(1, models.CustomField{Field: 4, Value: "mn1jNm0aR7zWhQgx"}), "Weitergeleitet"},
		{"unmapped id passes through", docWithFields(1, models.CustomField{Field: 4, Value: "zzz"}), "zzz"},
		{"other field ignored", docWithFields(1, models.CustomField{Field: 9, Value: "g6Nl8hQ56BDasAER"}), "Unbearbeitet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.LabelForStatus(tt.doc); got != tt.want {
				t.Errorf("LabelForStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStateMapper_ActionScore(t *testing.T) {
	m := NewStateMapper(DefaultConfig(), nil)

	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"numeric string", "73", 73},
		{"decimal string", " 49.5 ", 49.5},
		{"json number", json.Number("12"), 12},
		{"float", float64(88), 88},
		{"empty string", "", 0},
		{"garbage", "viel", 0},
		{"nan", "NaN", 0},
		{"null", nil, 0},
		{"list", []any{"1"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docWithFields(1, models.CustomField{Field: 5, Value: tt.value})
			if got := m.ActionScore(doc); got != tt.want {
				t.Errorf("ActionScore() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := m.ActionScore(docWithFields(1)); got != 0 {
		t.Errorf("ActionScore(no field) = %v, want 0", got)
	}
}

func TestStateMapper_NeedsTaskUsesStrictThreshold(t *testing.T) {
	m := NewStateMapper(DefaultConfig(), nil)
	if m.NeedsTask(49) {
		t.Error("score equal to threshold must not need a task")
	}
	if !m.NeedsTask(49.01) {
		t.Error("score above threshold must need a task")
	}
}

func TestStateMapper_ComposeNotes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PaperlessURL = "http://paperless:8000/"
	cfg.PublicBaseURL = "https://sync.example"
	m := NewStateMapper(cfg, nil)

	doc := &models.Document{ID: 17, DocumentType: intPtr(2), Added: "2025-03-04T10:00:00+01:00"}
	notes := m.ComposeNotes(doc, "Unbearbeitet", m.Links(17))

	want := strings.Join([]string{
		"Status: Unbearbeitet",
		"Status bearbeiten: https://sync.example/status/17",
		"Typ: 2",
		"Person: -",
		"Hinzugefügt am: 2025-03-04T10:00:00+01:00",
		"Web-Ansicht: http://paperless:8000/documents/17/",
		"PDF-Ansicht: https://sync.example/view_pdf/17",
		"Dokument-ID: 17",
	}, "\n")
	if notes != want {
		t.Errorf("ComposeNotes() =\n%s\nwant\n%s", notes, want)
	}
}

func TestStateMapper_RelativeLinksWithoutPublicBase(t *testing.T) {
	m := NewStateMapper(DefaultConfig(), nil)
	links := m.Links(5)
	if links.StatusEdit != "/status/5" || links.PDF != "/view_pdf/5" {
		t.Errorf("unexpected links: %+v", links)
	}
}

func TestStateMapper_TaskTitle(t *testing.T) {
	m := NewStateMapper(DefaultConfig(), nil)
	tests := []struct {
		title string
		want  string
	}{
		{"Rechnung März", "Rechnung März"},
		{"<b>Mahnung</b> & Frist", "Mahnung & Frist"},
		{"<script>alert(1)</script>", "Paperless-Dokument"},
		{"   ", "Paperless-Dokument"},
	}
	for _, tt := range tests {
		if got := m.TaskTitle(&models.Document{Title: tt.title}); got != tt.want {
			t.Errorf("TaskTitle(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestStateMapper_SameStatus(t *testing.T) {
	m := NewStateMapper(DefaultConfig(), nil)
	tests := []struct {
		note   string
		noteOK bool
		doc    string
		want   bool
	}{
		{"Unbearbeitet", true, "Unbearbeitet", true},
		{"Keine", true, "keine Aktion", true},
		{"Unbearbeitet", true, "Weitergeleitet", false},
		{"", false, "Unbearbeitet", false},
	}
	for _, tt := range tests {
		if got := m.SameStatus(tt.note, tt.noteOK, tt.doc); got != tt.want {
			t.Errorf("SameStatus(%q, %v, %q) = %v, want %v", tt.note, tt.noteOK, tt.doc, got, tt.want)
		}
	}
}

// LabelForStatus never fails and returns a configured label or the raw
// unmapped value.
func TestProperty_LabelForStatusTotal(t *testing.T) {
	cfg := DefaultConfig()
	m := NewStateMapper(cfg, nil)
	labels := cfg.StatusLabelToID.Labels()
	var ids []string
	for _, l := range labels {
		id, _ := cfg.StatusLabelToID.ID(l)
		ids = append(ids, id)
	}

	rapid.Check(t, func(t *rapid.T) {
		var fields []models.CustomField
		raw := ""
		if rapid.Bool().Draw(t, "hasStatus") {
			raw = rapid.OneOf(rapid.SampledFrom(ids), rapid.StringMatching(`[A-Za-z0-9]{1,16}`)).Draw(t, "raw")
			fields = append(fields, models.CustomField{Field: cfg.CustomFieldStatus, Value: raw})
		}
		got := m.LabelForStatus(&models.Document{ID: 1, CustomFields: fields})

		if _, ok := cfg.StatusLabelToID.ID(got); ok {
			return
		}
		if got != raw {
			t.Fatalf("LabelForStatus = %q, neither a label nor the raw value %q", got, raw)
		}
	})
}
