package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fslongjin/bandsweep/internal/security"
	"github.com/fslongjin/bandsweep/pkg/model"
)

// AuthSlot is the single named slot the credential lives in.
const AuthSlot = "band_auth_data"

// SlotRecord is one row of the slots table.
type SlotRecord struct {
	Name              string
	PayloadCiphertext string
	PayloadNonce      string
	KeyID             string
	TokenSHA256       string
	UpdatedAt         time.Time
}

// CredentialStore persists the Credential encrypted under AuthSlot.
type CredentialStore struct {
	db     *sql.DB
	cipher *security.TokenCipher
	slot   string
}

// NewCredentialStore creates a CredentialStore using the global DB connection.
func NewCredentialStore(cipher *security.TokenCipher) *CredentialStore {
	return &CredentialStore{db: DB, cipher: cipher, slot: AuthSlot}
}

// Save replaces the stored credential wholesale.
func (s *CredentialStore) Save(ctx context.Context, cred *model.Credential) error {
	if cred == nil {
		return errors.New("credential is nil")
	}
	if err := model.Validate(cred); err != nil {
		return fmt.Errorf("invalid credential: %w", err)
	}
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	ciphertext, nonce, keyID, err := s.cipher.Encrypt(string(payload))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO slots (name, payload_ciphertext, payload_nonce, key_id, token_sha256, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			payload_ciphertext = excluded.payload_ciphertext,
			payload_nonce = excluded.payload_nonce,
			key_id = excluded.key_id,
			token_sha256 = excluded.token_sha256,
			updated_at = excluded.updated_at
	`, s.slot, ciphertext, nonce, keyID, security.HashToken(cred.AccessToken), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Load returns the stored credential, or nil if the slot is empty.
func (s *CredentialStore) Load(ctx context.Context) (*model.Credential, error) {
	rec, err := s.getSlot(ctx)
	if err != nil || rec == nil {
		return nil, err
	}
	plain, err := s.cipher.Decrypt(rec.PayloadCiphertext, rec.PayloadNonce)
	if err != nil {
		return nil, err
	}
	var cred model.Credential
	if err := json.Unmarshal([]byte(plain), &cred); err != nil {
		return nil, fmt.Errorf("failed to decode stored credential: %w", err)
	}
	return &cred, nil
}

// Fingerprint returns the stored token hash and when it was written, without decrypting.
func (s *CredentialStore) Fingerprint(ctx context.Context) (string, time.Time, error) {
	rec, err := s.getSlot(ctx)
	if err != nil || rec == nil {
		return "", time.Time{}, err
	}
	return rec.TokenSHA256, rec.UpdatedAt, nil
}

// Clear erases the slot. Clearing an empty slot is not an error.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE name = ?`, s.slot); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) getSlot(ctx context.Context) (*SlotRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, payload_ciphertext, payload_nonce, key_id, token_sha256, updated_at
		FROM slots WHERE name = ?
	`, s.slot)

	var rec SlotRecord
	err := row.Scan(&rec.Name, &rec.PayloadCiphertext, &rec.PayloadNonce, &rec.KeyID, &rec.TokenSHA256, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query slot: %w", err)
	}
	return &rec, nil
}
