package cli

import (
	"os"
	"path/filepath"
	"strings"
)

// FileCredentials keeps the CRM API token in a 0600 file. It satisfies
// apiclient.Credentials, so a rejected token deletes the file.
type FileCredentials struct {
	path string
}

// NewFileCredentials stores the token under dir.
func NewFileCredentials(dir string) *FileCredentials {
	return &FileCredentials{path: filepath.Join(dir, tokenFileName)}
}

// Credential reads the token from disk on every call.
func (f *FileCredentials) Credential() string {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// HasCredential reports whether a token is stored.
func (f *FileCredentials) HasCredential() bool {
	return f.Credential() != ""
}

// SetCredential replaces the stored token.
func (f *FileCredentials) SetCredential(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.path, []byte(token+"\n"), 0o600)
}

// ClearCredential removes the stored token. A missing file is fine.
func (f *FileCredentials) ClearCredential() {
	_ = os.Remove(f.path)
}
