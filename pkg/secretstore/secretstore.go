package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// Store is a small encrypted-at-rest KV wrapper (Badger) holding user API
// credentials. The relational store never sees the raw key; it only keeps
// the user id that indexes into this store.
// Note: encryption is provided by Badger options (value log + key registry),
// not by this wrapper.
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 bytes; if nil, DB is opened without encryption (not recommended)
	ReadOnly      bool
}

func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("secretstore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// Badger requires index cache for encrypted workloads
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20) // 100MB
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func credentialKey(userID int64) []byte {
	return []byte(fmt.Sprintf("apikey:%d", userID))
}

// GetCredential returns the API key stored for userID.
// The second return is false when no credential exists.
func (s *Store) GetCredential(userID int64) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("secretstore: not opened")
	}
	var out string
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(credentialKey(userID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return out, found, nil
}

// SetCredential stores (or replaces) the API key for userID.
func (s *Store) SetCredential(userID int64, apiKey string) error {
	if s == nil || s.db == nil {
		return errors.New("secretstore: not opened")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("secretstore: api key is empty")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(credentialKey(userID), []byte(apiKey))
	})
}

// DeleteCredential removes the API key for userID. Missing keys are not an error.
func (s *Store) DeleteCredential(userID int64) error {
	if s == nil || s.db == nil {
		return errors.New("secretstore: not opened")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(credentialKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// ParseKey expects 32 bytes (base64 or hex). Returns nil if input is empty.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	// Prefer hex if it looks like hex (64 hex chars = 32 bytes)
	// This avoids misinterpreting hex strings as base64
	rawHex := strings.TrimPrefix(raw, "0x")
	if len(rawHex) == 64 {
		if b, err := hex.DecodeString(rawHex); err == nil {
			if len(b) == 32 {
				return b, nil
			}
		}
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("secretstore: key must be 32 bytes hex or base64: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("secretstore: key must be 32 bytes, got %d", len(b))
	}
	return b, nil
}
