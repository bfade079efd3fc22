package httpapi

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/valter-silva-au/paperless-tasks/internal/core"
	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

var statusFormTmpl = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html lang="de">
<head><meta charset="utf-8"><title>Status für Dokument {{.DocumentID}}</title></head>
<body>
<h2>Status für Dokument {{.DocumentID}} ändern</h2>
{{if .Title}}<p>{{.Title}}</p>{{end}}
<form method="post">
  <select name="status">
{{- range .Labels}}
    <option value="{{.}}"{{if eq . $.Current}} selected{{end}}>{{.}}</option>
{{- end}}
  </select>
  <button type="submit">Speichern</button>
</form>
<p>Aktueller Status: <b>{{.Current}}</b></p>
{{if .ProcessedDate}}<p>Bearbeitet am: {{.ProcessedDate}}</p>{{end}}
</body>
</html>
`))

var statusDoneTmpl = template.Must(template.New("done").Parse(
	`<p>Status auf <b>{{.Label}}</b> gesetzt (bearbeitet am {{.Date}}).<br><a href="{{.DocumentURL}}">Zurück zum Dokument</a></p>`))

type statusFormData struct {
	DocumentID    int
	Title         string
	Labels        []string
	Current       string
	ProcessedDate string
}

type statusDoneData struct {
	Label       string
	Date        string
	DocumentURL string
}

func (s *Server) handleStatusForm(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}
	log := s.requestLogger(r).With("document_id", documentID)

	state, err := s.engine.DocumentStatus(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Error("loading document status failed", "error", err)
		writeText(w, http.StatusInternalServerError, textError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = statusFormTmpl.Execute(w, statusFormData{
		DocumentID:    documentID,
		Title:         state.Title,
		Labels:        state.Labels,
		Current:       state.Label,
		ProcessedDate: state.ProcessedDate,
	})
	if err != nil {
		log.Error("rendering status form failed", "error", err)
	}
}

func (s *Server) handleStatusSubmit(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}
	log := s.requestLogger(r).With("document_id", documentID)

	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, textError)
		return
	}
	label := strings.TrimSpace(r.PostFormValue("status"))

	date, err := s.engine.SetDocumentStatus(r.Context(), documentID, label)
	switch {
	case errors.Is(err, core.ErrUnknownStatus):
		log.Warn("status form submitted unknown label", "label", label)
		writeText(w, http.StatusBadRequest, fmt.Sprintf("Unbekannter Status %q", label))
		return
	case models.IsCredentialError(err):
		s.reauthorize(w, r, log, err)
		return
	case errors.Is(err, models.ErrDocumentNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		log.Error("setting document status failed", "error", err)
		writeText(w, http.StatusInternalServerError, textError)
		return
	}

	cfg := s.config.Current()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = statusDoneTmpl.Execute(w, statusDoneData{
		Label:       label,
		Date:        date,
		DocumentURL: fmt.Sprintf("%s/documents/%d/", strings.TrimRight(cfg.PaperlessURL, "/"), documentID),
	})
	if err != nil {
		log.Error("rendering status confirmation failed", "error", err)
	}
}

// documentIDParam answers 404 for ids that do not fit an int.
func documentIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "documentID"))
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}
