package credential

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/hkdf"
)

const gcmNonceSize = 12
const gcmTagSize = 16

// DatabaseAdapter stores tokens encrypted at rest with AES-256-GCM (spec.md
// §4.3 DatabaseAdapter). The on-disk ciphertext layout is
// iv(12) ‖ tag(16) ‖ ct(n); the GCM tag is returned appended to the
// ciphertext by Go's cipher.AEAD.Seal, so splitting it back out on open only
// requires knowing its fixed 16-byte length.
type DatabaseAdapter struct {
	pool *pgxpool.Pool
	gcm  cipher.AEAD
}

// NewDatabaseAdapter derives a 32-byte AES-256 key from keyMaterial via
// HKDF-SHA256 and builds the adapter. keyMaterial is the decoded
// CREDENTIAL_ENCRYPTION_KEY (spec.md §6: "64 hex chars"); HKDF tolerates
// configured material of any length while still yielding exactly 32 bytes,
// and domain-separates this key from any other secret derived from the same
// root material.
func NewDatabaseAdapter(pool *pgxpool.Pool, keyMaterial []byte) (*DatabaseAdapter, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("credential: encryption key material must not be empty")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, keyMaterial, nil, []byte("toolgate-credential-store"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving credential encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("building AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building GCM: %w", err)
	}

	return &DatabaseAdapter{pool: pool, gcm: gcm}, nil
}

// encrypt returns iv(12) ‖ tag(16) ‖ ct(n), reordering Go's native
// ct‖tag Seal output to match the on-disk layout spec.md §4.3 specifies.
func (a *DatabaseAdapter) encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	sealed := a.gcm.Seal(nil, nonce, []byte(plaintext), nil) // ct ‖ tag
	ct := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	out := make([]byte, 0, gcmNonceSize+gcmTagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

// decrypt reads the iv(12) ‖ tag(16) ‖ ct(n) layout back into ct‖tag for
// cipher.AEAD.Open.
func (a *DatabaseAdapter) decrypt(blob []byte) (string, error) {
	if len(blob) < gcmNonceSize+gcmTagSize {
		return "", errors.New("credential: ciphertext too short")
	}
	nonce := blob[:gcmNonceSize]
	tag := blob[gcmNonceSize : gcmNonceSize+gcmTagSize]
	ct := blob[gcmNonceSize+gcmTagSize:]

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := a.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting credential: %w", err)
	}
	return string(plaintext), nil
}

type credentialMetadata struct {
	RefreshToken string            `json:"refresh_token,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// GetToken decrypts and returns the stored token for tenant/provider, or
// (nil, nil) if none is stored.
func (a *DatabaseAdapter) GetToken(ctx context.Context, tenant, provider string) (*TokenResult, error) {
	row := a.pool.QueryRow(ctx,
		`SELECT encrypted_token, token_type, expires_at, metadata FROM public.credential_store WHERE tenant_id = $1 AND provider = $2`,
		tenant, provider,
	)

	var ciphertext []byte
	var tokenType string
	var expiresAt *time.Time
	var metadataJSON []byte
	if err := row.Scan(&ciphertext, &tokenType, &expiresAt, &metadataJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading credential: %w", err)
	}

	plaintext, err := a.decrypt(ciphertext)
	if err != nil {
		return nil, err
	}

	var meta credentialMetadata
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &meta); err != nil {
			return nil, fmt.Errorf("unmarshaling credential metadata: %w", err)
		}
	}

	return &TokenResult{
		Token:        plaintext,
		Type:         TokenType(tokenType),
		ExpiresAt:    expiresAt,
		RefreshToken: meta.RefreshToken,
		Headers:      meta.Headers,
	}, nil
}

// StoreToken upserts an encrypted token by (tenant, provider).
func (a *DatabaseAdapter) StoreToken(ctx context.Context, tenant, provider string, result TokenResult) error {
	ciphertext, err := a.encrypt(result.Token)
	if err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(credentialMetadata{
		RefreshToken: result.RefreshToken,
		Headers:      result.Headers,
	})
	if err != nil {
		return fmt.Errorf("marshaling credential metadata: %w", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO public.credential_store (tenant_id, provider, encrypted_token, token_type, expires_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, provider) DO UPDATE
		SET encrypted_token = $3, token_type = $4, expires_at = $5, metadata = $6
	`, tenant, provider, ciphertext, string(result.Type), result.ExpiresAt, metadataJSON)
	if err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	return nil
}

// RevokeToken deletes the stored credential for tenant/provider.
func (a *DatabaseAdapter) RevokeToken(ctx context.Context, tenant, provider string) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM public.credential_store WHERE tenant_id = $1 AND provider = $2`, tenant, provider)
	if err != nil {
		return fmt.Errorf("revoking credential: %w", err)
	}
	return nil
}

// ListConnections returns every provider tenant has a stored credential for,
// marking any whose expires_at has passed (spec.md §4.3: "listConnections
// marks a connection expired when expires_at < now").
func (a *DatabaseAdapter) ListConnections(ctx context.Context, tenant string) ([]Connection, error) {
	rows, err := a.pool.Query(ctx, `SELECT provider, expires_at FROM public.credential_store WHERE tenant_id = $1`, tenant)
	if err != nil {
		return nil, fmt.Errorf("listing credential connections: %w", err)
	}
	defer rows.Close()

	var conns []Connection
	now := time.Now()
	for rows.Next() {
		var c Connection
		if err := rows.Scan(&c.Provider, &c.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning credential connection: %w", err)
		}
		c.Expired = c.ExpiresAt != nil && c.ExpiresAt.Before(now)
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credential connections: %w", err)
	}
	return conns, nil
}
