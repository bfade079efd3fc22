package httpapi

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/valter-silva-au/paperless-tasks/internal/core"
	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

var docURLPattern = regexp.MustCompile(`/documents/(\d+)/`)

// Response bodies of the webhook, as Paperless workflow logs show them.
const (
	textReconciled = "Status abgeglichen"
	textNoTask     = "Keine Aufgabe erzeugt"
	textDone       = "Bereits erledigt"
	textCreated    = "OK"
	textError      = "Fehler"

	textReauthorize = "Google-Tasks-Zugang abgelaufen: bitte neu autorisieren und die Token-Datei ersetzen"
)

// handleWebhook processes a Paperless workflow webhook. The body is parsed
// as JSON whatever its Content-Type.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r)

	var payload map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		log.Warn("webhook payload is not a JSON object", "error", err)
		writeText(w, http.StatusBadRequest, textError)
		return
	}

	documentID, ok := documentIDFromPayload(payload)
	if !ok {
		log.Warn("webhook payload carries no document id", "id", payload["id"], "doc_url", payload["doc_url"])
		writeText(w, http.StatusBadRequest, textError)
		return
	}
	log = log.With("document_id", documentID)
	log.Info("webhook received")

	outcome, err := s.engine.OnDocumentEvent(r.Context(), documentID)
	if err != nil {
		if models.IsCredentialError(err) {
			s.reauthorize(w, r, log, err)
			return
		}
		log.Error("webhook processing failed", "error", err)
		writeText(w, http.StatusInternalServerError, textError)
		return
	}
	log.Info("webhook processed", "outcome", string(outcome))
	writeText(w, http.StatusOK, outcomeText(outcome))
}

func outcomeText(outcome core.SyncOutcome) string {
	switch outcome {
	case core.OutcomeReconciled, core.OutcomeAlreadySynchronized:
		return textReconciled
	case core.OutcomeNoTaskNeeded:
		return textNoTask
	case core.OutcomeAlreadyDone:
		return textDone
	default:
		return textCreated
	}
}

// documentIDFromPayload reads "id", falling back to the number in the
// "/documents/<id>/" segment of "doc_url".
func documentIDFromPayload(payload map[string]any) (int, bool) {
	if raw, ok := payload["id"]; ok && raw != nil {
		if id, err := models.ParseDocumentID(raw); err == nil {
			return id, true
		}
	}
	docURL, _ := payload["doc_url"].(string)
	m := docURLPattern.FindStringSubmatch(docURL)
	if m == nil {
		return 0, false
	}
	id, err := models.ParseDocumentID(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}
