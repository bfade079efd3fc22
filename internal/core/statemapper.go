package core

import (
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// defaultTaskTitle is used when a document has no usable title.
const defaultTaskTitle = "Paperless-Dokument"

// NoteLinks are the links written into a new task's notes.
type NoteLinks struct {
	StatusEdit string
	Web        string
	PDF        string
}

// StateMapper translates between document custom fields, human status
// labels and task notes. It is bound to one configuration snapshot.
type StateMapper struct {
	cfg      models.Config
	logger   *slog.Logger
	sanitize *bluemonday.Policy
}

// NewStateMapper creates a StateMapper for cfg.
func NewStateMapper(cfg models.Config, logger *slog.Logger) *StateMapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateMapper{cfg: cfg, logger: logger, sanitize: bluemonday.StrictPolicy()}
}

// NewLabel is the label given to documents that get a new task.
func (m *StateMapper) NewLabel() string { return m.cfg.StatusNewLabel }

// DoneLabel is the label applied when a task is completed.
func (m *StateMapper) DoneLabel() string { return m.cfg.StatusDoneLabel }

// Labels returns the configured status labels in file order.
func (m *StateMapper) Labels() []string { return m.cfg.StatusLabelToID.Labels() }

// StatusID returns the choice id for label.
func (m *StateMapper) StatusID(label string) (string, bool) {
	return m.cfg.StatusLabelToID.ID(label)
}

// LabelForStatus resolves the document's status field to a label. A missing
// or empty field yields the new label; an id with no mapping is returned
// as-is.
func (m *StateMapper) LabelForStatus(doc *models.Document) string {
	raw, ok := doc.FieldValue(m.cfg.CustomFieldStatus)
	if !ok || raw == nil {
		return m.cfg.StatusNewLabel
	}
	id := scalarString(raw)
	if id == "" {
		return m.cfg.StatusNewLabel
	}
	if label, ok := m.cfg.StatusLabelToID.Label(id); ok {
		return label
	}
	m.logger.Warn("unmapped status id", "document_id", doc.ID, "field", m.cfg.CustomFieldStatus, "value", id)
	return id
}

// ActionScore returns the numeric action score, or 0 when the field is
// missing or not a number.
func (m *StateMapper) ActionScore(doc *models.Document) float64 {
	raw, ok := doc.FieldValue(m.cfg.CustomFieldAction)
	if !ok || raw == nil {
		return 0
	}
	var score float64
	switch v := raw.(type) {
	case float64:
		score = v
	case int:
		score = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		score = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		score = f
	default:
		return 0
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// NeedsTask reports whether score is above the configured threshold.
func (m *StateMapper) NeedsTask(score float64) bool {
	return score > m.cfg.ActionThreshold
}

// Links builds the note links for a document.
func (m *StateMapper) Links(documentID int) NoteLinks {
	base := strings.TrimRight(m.cfg.PublicBaseURL, "/")
	paperless := strings.TrimRight(m.cfg.PaperlessURL, "/")
	return NoteLinks{
		StatusEdit: fmt.Sprintf("%s/status/%d", base, documentID),
		Web:        fmt.Sprintf("%s/documents/%d/", paperless, documentID),
		PDF:        fmt.Sprintf("%s/view_pdf/%d", base, documentID),
	}
}

// ComposeNotes builds the notes of a new task. The document marker is
// always the last line.
func (m *StateMapper) ComposeNotes(doc *models.Document, label string, links NoteLinks) string {
	lines := []string{
		StatusLine(label, ""),
		"Status bearbeiten: " + orDash(links.StatusEdit),
		"Typ: " + optionalID(doc.DocumentType),
		"Person: " + optionalID(doc.Correspondent),
		"Hinzugefügt am: " + orDash(doc.Added),
		"Web-Ansicht: " + orDash(links.Web),
		"PDF-Ansicht: " + orDash(links.PDF),
		DocumentMarker(doc.ID),
	}
	return strings.Join(lines, "\n")
}

// TaskTitle returns the document title stripped of markup.
func (m *StateMapper) TaskTitle(doc *models.Document) string {
	// StrictPolicy escapes entities; tasks are plain text.
	title := html.UnescapeString(m.sanitize.Sanitize(doc.Title))
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return defaultTaskTitle
	}
	return title
}

// SameStatus reports whether the label parsed from task notes matches the
// document label. Notes only keep the first word of a label, capitalised,
// so the comparison uses the first word and ignores case.
func (m *StateMapper) SameStatus(noteLabel string, noteOK bool, docLabel string) bool {
	if !noteOK {
		return false
	}
	first := docLabel
	if fields := strings.Fields(docLabel); len(fields) > 0 {
		first = fields[0]
	}
	return strings.EqualFold(noteLabel, first)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func optionalID(id *int) string {
	if id == nil {
		return "-"
	}
	return strconv.Itoa(*id)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
