package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// PaperlessClient talks to the Paperless-ngx REST API.
type PaperlessClient struct {
	api    *jsonClient
	logger *slog.Logger
}

// NewPaperlessClient creates a client for the Paperless instance at baseURL
// authenticating with an API token.
func NewPaperlessClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *PaperlessClient {
	if logger == nil {
		logger = slog.Default()
	}
	auth := func(req *http.Request) {
		req.Header.Set("Authorization", "Token "+token)
	}
	return &PaperlessClient{
		api:    newJSONClient(baseURL, httpClient, logger, auth),
		logger: logger,
	}
}

// FetchDocument returns the document with the given id. A 404 is reported
// as models.ErrDocumentNotFound.
func (c *PaperlessClient) FetchDocument(ctx context.Context, documentID int) (*models.Document, error) {
	var doc models.Document
	err := c.api.doJSON(ctx, "fetch_document", http.MethodGet, fmt.Sprintf("/api/documents/%d/", documentID), nil, &doc)
	if err != nil {
		return nil, notFoundAs(err, documentID)
	}
	return &doc, nil
}

// PatchCustomField sets one custom field of a document.
func (c *PaperlessClient) PatchCustomField(ctx context.Context, documentID, fieldID int, value any) error {
	return c.PatchCustomFields(ctx, documentID, []models.CustomField{{Field: fieldID, Value: value}})
}

// PatchCustomFields applies updates to a document's custom fields. Paperless
// replaces the whole collection on PATCH, so the current fields are read
// first and the merged collection is sent back.
func (c *PaperlessClient) PatchCustomFields(ctx context.Context, documentID int, updates []models.CustomField) error {
	doc, err := c.FetchDocument(ctx, documentID)
	if err != nil {
		return err
	}
	fields := doc.CustomFields
	for _, u := range updates {
		fields = models.WithField(fields, u.Field, u.Value)
	}
	if fields == nil {
		fields = []models.CustomField{}
	}

	payload := map[string]any{"custom_fields": fields}
	err = c.api.doJSON(ctx, "patch_document", http.MethodPatch, fmt.Sprintf("/api/documents/%d/", documentID), payload, nil)
	if err != nil {
		return notFoundAs(err, documentID)
	}
	c.logger.Info("document custom fields updated", "document_id", documentID, "fields", len(updates))
	return nil
}

type customFieldPage struct {
	Count   int                            `json:"count"`
	Next    *string                        `json:"next"`
	Results []models.CustomFieldDefinition `json:"results"`
}

// ListCustomFields returns every custom field definition, following
// pagination.
func (c *PaperlessClient) ListCustomFields(ctx context.Context) ([]models.CustomFieldDefinition, error) {
	var all []models.CustomFieldDefinition
	next := "/api/custom_fields/?page_size=100"
	for pages := 0; next != ""; pages++ {
		if pages >= 100 {
			return nil, errors.New("list_custom_fields: too many pages")
		}
		var page customFieldPage
		if err := c.api.doJSON(ctx, "list_custom_fields", http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}
	return all, nil
}

// GetCustomField returns one custom field definition.
func (c *PaperlessClient) GetCustomField(ctx context.Context, fieldID int) (*models.CustomFieldDefinition, error) {
	var def models.CustomFieldDefinition
	if err := c.api.doJSON(ctx, "get_custom_field", http.MethodGet, fmt.Sprintf("/api/custom_fields/%d/", fieldID), nil, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func notFoundAs(err error, documentID int) error {
	var upstream *models.UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound {
		return fmt.Errorf("document %d: %w", documentID, models.ErrDocumentNotFound)
	}
	return err
}
