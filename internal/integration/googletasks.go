package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// DefaultTasksAPIURL is the Google Tasks REST endpoint.
const DefaultTasksAPIURL = "https://tasks.googleapis.com"

// GoogleTasksClient talks to the Google Tasks REST API. The http.Client it
// is given must add OAuth credentials, see TokenFileCredentials.
type GoogleTasksClient struct {
	api       *jsonClient
	logger    *slog.Logger
	tokenFile string
}

// NewGoogleTasksClient creates a client. tokenFile is only used to label
// credential errors.
func NewGoogleTasksClient(baseURL string, httpClient *http.Client, tokenFile string, logger *slog.Logger) *GoogleTasksClient {
	if baseURL == "" {
		baseURL = DefaultTasksAPIURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleTasksClient{
		api:       newJSONClient(baseURL, httpClient, logger, nil),
		logger:    logger,
		tokenFile: tokenFile,
	}
}

type taskListPage struct {
	Items         []models.TaskList `json:"items"`
	NextPageToken string            `json:"nextPageToken"`
}

type taskPage struct {
	Items         []models.Task `json:"items"`
	NextPageToken string        `json:"nextPageToken"`
}

// ListTaskLists returns all task lists of the authorized user.
func (c *GoogleTasksClient) ListTaskLists(ctx context.Context) ([]models.TaskList, error) {
	var all []models.TaskList
	token := ""
	for {
		q := url.Values{"maxResults": {"100"}}
		if token != "" {
			q.Set("pageToken", token)
		}
		var page taskListPage
		if err := c.do(ctx, "list_task_lists", http.MethodGet, "/tasks/v1/users/@me/lists?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.NextPageToken == "" {
			return all, nil
		}
		token = page.NextPageToken
	}
}

// ListTasks returns every task of a list, including completed and hidden
// ones. Each task's ListID is set to listID.
func (c *GoogleTasksClient) ListTasks(ctx context.Context, listID string) ([]models.Task, error) {
	var all []models.Task
	token := ""
	for {
		q := url.Values{
			"showCompleted": {"true"},
			"showHidden":    {"true"},
			"maxResults":    {"100"},
		}
		if token != "" {
			q.Set("pageToken", token)
		}
		var page taskPage
		path := "/tasks/v1/lists/" + url.PathEscape(listID) + "/tasks?" + q.Encode()
		if err := c.do(ctx, "list_tasks", http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		for i := range page.Items {
			page.Items[i].ListID = listID
		}
		all = append(all, page.Items...)
		if page.NextPageToken == "" {
			return all, nil
		}
		token = page.NextPageToken
	}
}

// CreateTask inserts a task into listID.
func (c *GoogleTasksClient) CreateTask(ctx context.Context, listID, title, notes string) (*models.Task, error) {
	body := map[string]string{"title": title, "notes": notes}
	var task models.Task
	path := "/tasks/v1/lists/" + url.PathEscape(listID) + "/tasks"
	if err := c.do(ctx, "create_task", http.MethodPost, path, body, &task); err != nil {
		return nil, err
	}
	task.ListID = listID
	c.logger.Info("task created", "task_id", task.ID, "list_id", listID, "title", task.Title)
	return &task, nil
}

// PatchTaskNotes replaces the notes of a task.
func (c *GoogleTasksClient) PatchTaskNotes(ctx context.Context, listID, taskID, notes string) error {
	body := map[string]string{"notes": notes}
	path := "/tasks/v1/lists/" + url.PathEscape(listID) + "/tasks/" + url.PathEscape(taskID)
	return c.do(ctx, "patch_task", http.MethodPatch, path, body, nil)
}

// do maps authorization failures to *models.CredentialError.
func (c *GoogleTasksClient) do(ctx context.Context, op, method, path string, body, out any) error {
	err := c.api.doJSON(ctx, op, method, path, body, out)
	if err == nil {
		return nil
	}
	if models.IsCredentialError(err) {
		return err
	}
	var upstream *models.UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode == http.StatusUnauthorized {
		return &models.CredentialError{TokenFile: c.tokenFile, Reason: "task backend rejected the access token", Err: err}
	}
	// oauth2.Transport surfaces refresh failures as transport errors.
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return &models.CredentialError{TokenFile: c.tokenFile, Reason: "token refresh failed", Err: err}
	}
	return fmt.Errorf("google tasks: %w", err)
}
