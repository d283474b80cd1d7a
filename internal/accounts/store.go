// Package accounts persists the list of monitored mail accounts.
// Secrets are stored only in vault-protected form.
package accounts

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v4"
)

// Account describes one monitored mail account. Identity is the
// (Host, Port, Username) triple.
type Account struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	UseTLS          bool     `yaml:"use_tls"`
	Username        string   `yaml:"username"`
	EncryptedSecret string   `yaml:"encrypted_secret"`
	Keywords        []string `yaml:"keywords,omitempty"`
	Folders         []string `yaml:"folders,omitempty"`
}

// sameIdentity reports whether two accounts refer to the same mailbox.
func (a Account) sameIdentity(b Account) bool {
	return a.Host == b.Host && a.Port == b.Port && a.Username == b.Username
}

// Store is an ordered collection of accounts. It assumes a single
// writer; callers must not mutate the collection while a save runs.
type Store struct {
	Accounts []Account `yaml:"accounts"`
}

// DefaultPath returns the per-user location of the accounts file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "mailpdf", "accounts.yaml"), nil
}

// Load reads the store from path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Store{}, nil
		}
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	store := &Store{}
	if err := yaml.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	return store, nil
}

// Save writes the store to path, creating parent directories as needed.
func (s *Store) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create accounts dir: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("serialize accounts: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write accounts file: %w", err)
	}
	return nil
}

// Upsert replaces the account with the same identity, or appends.
func (s *Store) Upsert(account Account) {
	for i, a := range s.Accounts {
		if a.sameIdentity(account) {
			s.Accounts[i] = account
			return
		}
	}
	s.Accounts = append(s.Accounts, account)
}

// Remove deletes every account matching the identity of account.
func (s *Store) Remove(account Account) {
	kept := s.Accounts[:0]
	for _, a := range s.Accounts {
		if !a.sameIdentity(account) {
			kept = append(kept, a)
		}
	}
	s.Accounts = kept
}
