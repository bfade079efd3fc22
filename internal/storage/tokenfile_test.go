package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTokenFile_WriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &TokenRecord{
		Token:        "access",
		RefreshToken: "refresh",
		TokenURI:     "https://oauth2.example/token",
		ClientID:     "client",
		ClientSecret: "shh",
		Scopes:       []string{"https://www.googleapis.com/auth/tasks"},
		Expiry:       expiry,
	}

	if err := WriteTokenFile(path, rec); err != nil {
		t.Fatalf("WriteTokenFile: %v", err)
	}
	got, err := ReadTokenFile(path)
	if err != nil {
		t.Fatalf("ReadTokenFile: %v", err)
	}
	if got.Token != "access" || got.RefreshToken != "refresh" || got.ClientID != "client" {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.Expiry.Equal(expiry) {
		t.Errorf("expiry = %v, want %v", got.Expiry, expiry)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestReadTokenFile_AuthorizedUserFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	content := `{"token": "ya29.x", "refresh_token": "1//r", "token_uri": "https://oauth2.googleapis.com/token",
"client_id": "id.apps.googleusercontent.com", "client_secret": "s",
"scopes": ["https://www.googleapis.com/auth/tasks"], "expiry": "2025-06-01T10:00:00.123456Z"}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	rec, err := ReadTokenFile(path)
	if err != nil {
		t.Fatalf("ReadTokenFile: %v", err)
	}
	if rec.Token != "ya29.x" || len(rec.Scopes) != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Expiry.Year() != 2025 {
		t.Errorf("expiry = %v", rec.Expiry)
	}
}

func TestReadTokenFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadTokenFile(path); err == nil {
		t.Error("expected error for corrupt token file")
	}
}

func TestLockFile_Serialises(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	unlock, err := LockFile(path)
	if err != nil {
		t.Fatalf("LockFile: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := LockFile(path)
		if err == nil {
			close(acquired)
			_ = u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}
	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second lock not acquired after release")
	}
}
