package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TokenRecord is the authorized-user token file written by the one-time
// OAuth consent flow and rewritten after every refresh.
type TokenRecord struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenURI     string    `json:"token_uri,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	ClientSecret string    `json:"client_secret,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// ReadTokenFile loads a token file. A missing file yields os.ErrNotExist.
func ReadTokenFile(path string) (*TokenRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", path, err)
	}
	return &rec, nil
}

// WriteTokenFile atomically replaces the token file. Concurrent writers are
// serialised with an advisory lock on <path>.lock.
func WriteTokenFile(path string, rec *TokenRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token file: %w", err)
	}
	unlock, err := LockFile(path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()
	return WriteFileAtomic(path, data, 0o600)
}
