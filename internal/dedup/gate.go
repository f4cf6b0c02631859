// Package dedup detects re-uploads of already ingested files by content
// fingerprint. The gate itself is a pure check; the record store enforces
// the per-owner uniqueness atomically when a batch is committed, so a
// concurrent duplicate upload loses at commit time rather than here.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Store is the narrow read interface the gate needs.
type Store interface {
	HasFingerprint(ctx context.Context, ownerID int64, digest string) (bool, error)
}

// Result reports whether a file should be processed and the digest the
// caller persists once ingestion succeeds.
type Result struct {
	Proceed bool
	Digest  string
}

type Gate struct {
	store Store
}

func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// Fingerprint returns the hex SHA-256 digest of raw file bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShouldProcess computes the file digest and checks whether it was already
// ingested for this owner. A seen digest is the expected idempotent no-op,
// not an error.
func (g *Gate) ShouldProcess(ctx context.Context, ownerID int64, fileBytes []byte) (Result, error) {
	digest := Fingerprint(fileBytes)

	seen, err := g.store.HasFingerprint(ctx, ownerID, digest)
	if err != nil {
		return Result{}, fmt.Errorf("checking fingerprint: %w", err)
	}
	return Result{Proceed: !seen, Digest: digest}, nil
}
