package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	seen map[string]bool
	err  error
}

func (f *fakeStore) HasFingerprint(_ context.Context, ownerID int64, digest string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.seen[digest], nil
}

func TestFingerprint_Stable(t *testing.T) {
	data := []byte("Trade date;Debit;Credit\n2025-01-03;-42.50;\n")
	assert.Equal(t, Fingerprint(data), Fingerprint(data))
	assert.NotEqual(t, Fingerprint(data), Fingerprint([]byte("other content")))
	assert.Len(t, Fingerprint(data), 64)
}

func TestGate_ShouldProcess(t *testing.T) {
	data := []byte("some csv content")
	store := &fakeStore{seen: map[string]bool{}}
	gate := NewGate(store)

	res, err := gate.ShouldProcess(context.Background(), 1, data)
	require.NoError(t, err)
	assert.True(t, res.Proceed)
	assert.Equal(t, Fingerprint(data), res.Digest)

	// Simulate the caller committing the fingerprint, then re-uploading.
	store.seen[res.Digest] = true
	res, err = gate.ShouldProcess(context.Background(), 1, data)
	require.NoError(t, err)
	assert.False(t, res.Proceed, "identical bytes must be reported as already processed")
	assert.Equal(t, Fingerprint(data), res.Digest)
}

func TestGate_StoreError(t *testing.T) {
	gate := NewGate(&fakeStore{err: errors.New("db down")})
	_, err := gate.ShouldProcess(context.Background(), 1, []byte("x"))
	assert.Error(t, err)
}
