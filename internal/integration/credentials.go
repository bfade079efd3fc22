package integration

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/valter-silva-au/paperless-tasks/internal/storage"
	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// TokenFileCredentials opens Google Tasks clients from an authorized-user
// token file. Refreshed tokens are written back to the file.
type TokenFileCredentials struct {
	TokenFile  string
	Scopes     []string
	TasksURL   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Open reads the token file, refreshes the access token when it has
// expired and returns a client bound to it. Every failure is a
// *models.CredentialError.
func (c *TokenFileCredentials) Open(ctx context.Context) (*GoogleTasksClient, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := c.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}

	rec, err := storage.ReadTokenFile(c.TokenFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, c.credErr("token file missing", nil)
		}
		return nil, c.credErr("token file unreadable", err)
	}
	if rec.Token == "" && rec.RefreshToken == "" {
		return nil, c.credErr("token file holds neither access nor refresh token", nil)
	}

	endpoint := google.Endpoint
	if rec.TokenURI != "" {
		endpoint.TokenURL = rec.TokenURI
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = rec.Scopes
	}
	conf := &oauth2.Config{
		ClientID:     rec.ClientID,
		ClientSecret: rec.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
	current := &oauth2.Token{
		AccessToken:  rec.Token,
		TokenType:    "Bearer",
		RefreshToken: rec.RefreshToken,
		Expiry:       rec.Expiry,
	}
	if !current.Valid() && current.RefreshToken == "" {
		return nil, c.credErr("access token expired and no refresh token available", nil)
	}

	// Refreshes may happen long after Open returns, so the token source must
	// not inherit the caller's cancellation.
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, base)
	source := &persistingTokenSource{
		creds:  c,
		rec:    *rec,
		src:    conf.TokenSource(tokenCtx, current),
		last:   current.AccessToken,
		logger: logger,
	}
	fresh, err := source.Token()
	if err != nil {
		return nil, err
	}

	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client := &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(fresh, source),
			Base:   transport,
		},
	}
	return NewGoogleTasksClient(c.TasksURL, client, c.TokenFile, logger), nil
}

func (c *TokenFileCredentials) credErr(reason string, err error) error {
	return &models.CredentialError{TokenFile: c.TokenFile, Reason: reason, Err: err}
}

// persistingTokenSource writes every newly issued access token back to the
// token file so the next process start does not need to refresh again.
type persistingTokenSource struct {
	creds  *TokenFileCredentials
	src    oauth2.TokenSource
	logger *slog.Logger

	mu   sync.Mutex
	rec  storage.TokenRecord
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, s.creds.credErr("token refresh failed", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	s.last = tok.AccessToken
	s.rec.Token = tok.AccessToken
	s.rec.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		s.rec.RefreshToken = tok.RefreshToken
	}
	if err := storage.WriteTokenFile(s.creds.TokenFile, &s.rec); err != nil {
		s.logger.Warn("persisting refreshed token failed", "token_file", s.creds.TokenFile, "error", err)
	} else {
		s.logger.Info("access token refreshed", "token_file", s.creds.TokenFile, "expiry", tok.Expiry)
	}
	return tok, nil
}
