package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valter-silva-au/paperless-tasks/internal/storage"
	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// oauthFixture serves a token endpoint and a task list endpoint that
// echoes the bearer token it was called with.
type oauthFixture struct {
	srv       *httptest.Server
	refreshes int32
	failToken atomic.Bool
	lastAuth  atomic.Value
}

func newOAuthFixture(t *testing.T) *oauthFixture {
	t.Helper()
	f := &oauthFixture{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.refreshes, 1)
		w.Header().Set("Content-Type", "application/json")
		if f.failToken.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"items":[{"id":"L1","title":"Erste"}]}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *oauthFixture) credentials(t *testing.T, rec *storage.TokenRecord) *TokenFileCredentials {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	if rec != nil {
		rec.TokenURI = f.srv.URL + "/token"
		if err := storage.WriteTokenFile(path, rec); err != nil {
			t.Fatalf("writing token file: %v", err)
		}
	}
	return &TokenFileCredentials{
		TokenFile:  path,
		Scopes:     []string{"https://www.googleapis.com/auth/tasks"},
		TasksURL:   f.srv.URL,
		HTTPClient: f.srv.Client(),
	}
}

func TestTokenFileCredentials_ValidTokenIsUsedAsIs(t *testing.T) {
	f := newOAuthFixture(t)
	creds := f.credentials(t, &storage.TokenRecord{
		Token:        "current",
		RefreshToken: "r",
		ClientID:     "id",
		ClientSecret: "secret",
		Expiry:       time.Now().Add(time.Hour),
	})

	client, err := creds.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := client.ListTaskLists(context.Background()); err != nil {
		t.Fatalf("ListTaskLists: %v", err)
	}
	if got := f.lastAuth.Load(); got != "Bearer current" {
		t.Errorf("Authorization = %v", got)
	}
	if n := atomic.LoadInt32(&f.refreshes); n != 0 {
		t.Errorf("refreshes = %d, want 0", n)
	}
}

func TestTokenFileCredentials_ExpiredTokenIsRefreshedAndPersisted(t *testing.T) {
	f := newOAuthFixture(t)
	creds := f.credentials(t, &storage.TokenRecord{
		Token:        "stale",
		RefreshToken: "r",
		ClientID:     "id",
		ClientSecret: "secret",
		Expiry:       time.Now().Add(-time.Hour),
	})

	client, err := creds.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := client.ListTaskLists(context.Background()); err != nil {
		t.Fatalf("ListTaskLists: %v", err)
	}
	if got := f.lastAuth.Load(); got != "Bearer fresh" {
		t.Errorf("Authorization = %v", got)
	}

	rec, err := storage.ReadTokenFile(creds.TokenFile)
	if err != nil {
		t.Fatalf("reading token file: %v", err)
	}
	if rec.Token != "fresh" || rec.RefreshToken != "r" {
		t.Errorf("persisted record = %+v", rec)
	}
	if !rec.Expiry.After(time.Now()) {
		t.Errorf("persisted expiry %v is not in the future", rec.Expiry)
	}
}

func TestTokenFileCredentials_Failures(t *testing.T) {
	f := newOAuthFixture(t)

	t.Run("missing file", func(t *testing.T) {
		creds := f.credentials(t, nil)
		if _, err := creds.Open(context.Background()); !models.IsCredentialError(err) {
			t.Errorf("err = %v, want credential error", err)
		}
	})

	t.Run("expired without refresh token", func(t *testing.T) {
		creds := f.credentials(t, &storage.TokenRecord{
			Token:  "stale",
			Expiry: time.Now().Add(-time.Hour),
		})
		if _, err := creds.Open(context.Background()); !models.IsCredentialError(err) {
			t.Errorf("err = %v, want credential error", err)
		}
	})

	t.Run("refresh rejected", func(t *testing.T) {
		f.failToken.Store(true)
		defer f.failToken.Store(false)
		creds := f.credentials(t, &storage.TokenRecord{
			Token:        "stale",
			RefreshToken: "revoked",
			ClientID:     "id",
			Expiry:       time.Now().Add(-time.Hour),
		})
		if _, err := creds.Open(context.Background()); !models.IsCredentialError(err) {
			t.Errorf("err = %v, want credential error", err)
		}
	})
}
