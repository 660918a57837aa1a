package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	TokenKeyEnv       = "BANDSWEEP_TOKEN_KEY"
	TokenKeyIDEnv     = "BANDSWEEP_TOKEN_KEY_ID"
	SecretFileName    = "credential.key"
	defaultTokenKeyID = "v1"
	hkdfInfo          = "bandsweep credential slot"
	secretSize        = 32
)

// TokenCipher encrypts the stored access token at rest.
type TokenCipher struct {
	aead  cipher.AEAD
	keyID string
}

// NewTokenCipher derives an AES-256 key from secret with HKDF-SHA256.
func NewTokenCipher(secret []byte, keyID string) (*TokenCipher, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	if keyID == "" {
		keyID = defaultTokenKeyID
	}
	return &TokenCipher{aead: aead, keyID: keyID}, nil
}

// NewTokenCipherFromEnv uses BANDSWEEP_TOKEN_KEY when set, otherwise the
// per-install secret file under dataDir, creating it on first use.
func NewTokenCipherFromEnv(dataDir string) (*TokenCipher, error) {
	keyID := os.Getenv(TokenKeyIDEnv)
	if rawKey := strings.TrimSpace(os.Getenv(TokenKeyEnv)); rawKey != "" {
		key, err := parseKey(rawKey)
		if err != nil {
			return nil, err
		}
		return NewTokenCipher(key, keyID)
	}

	secret, err := LoadOrCreateSecret(filepath.Join(dataDir, SecretFileName))
	if err != nil {
		return nil, err
	}
	return NewTokenCipher(secret, keyID)
}

// LoadOrCreateSecret reads a hex secret from path or writes a new one with 0600 permissions.
func LoadOrCreateSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		secret, decodeErr := hex.DecodeString(strings.TrimSpace(string(data)))
		if decodeErr != nil || len(secret) == 0 {
			return nil, fmt.Errorf("corrupt secret file %s", path)
		}
		return secret, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create secret dir: %w", err)
	}
	encoded, err := GenerateToken(secretSize)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write secret file: %w", err)
	}
	return hex.DecodeString(encoded)
}

// Encrypt encrypts token and returns base64 ciphertext, base64 nonce and key ID.
func (c *TokenCipher) Encrypt(token string) (ciphertext, nonce, keyID string, err error) {
	nonceBytes := make([]byte, c.aead.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonceBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertextBytes := c.aead.Seal(nil, nonceBytes, []byte(token), nil)
	return base64.StdEncoding.EncodeToString(ciphertextBytes),
		base64.StdEncoding.EncodeToString(nonceBytes),
		c.keyID,
		nil
}

// Decrypt decrypts token from base64 ciphertext and nonce.
func (c *TokenCipher) Decrypt(ciphertext, nonce string) (string, error) {
	ciphertextBytes, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", fmt.Errorf("failed to decode nonce: %w", err)
	}
	plain, err := c.aead.Open(nil, nonceBytes, ciphertextBytes, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}
	return string(plain), nil
}

func (c *TokenCipher) KeyID() string {
	return c.keyID
}

// HashToken hashes token with SHA-256 and returns hex string.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Fingerprint is a short HashToken prefix, safe to log.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return HashToken(token)[:12]
}

// GenerateToken creates a random token encoded as hex.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func parseKey(raw string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) >= 16 {
		return decoded, nil
	}
	if decoded, err := hex.DecodeString(raw); err == nil && len(decoded) >= 16 {
		return decoded, nil
	}
	if len(raw) >= 16 {
		return []byte(raw), nil
	}
	return nil, fmt.Errorf("invalid %s: must be at least 16 bytes (raw/hex/base64)", TokenKeyEnv)
}
