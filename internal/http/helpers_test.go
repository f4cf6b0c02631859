package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerID(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/transactions", nil)
	assert.Equal(t, int64(1), ownerID(r), "missing header falls back to the default owner")

	r.Header.Set("X-User-ID", "42")
	assert.Equal(t, int64(42), ownerID(r))

	r.Header.Set("X-User-ID", "abc")
	assert.Equal(t, int64(1), ownerID(r))

	r.Header.Set("X-User-ID", "-3")
	assert.Equal(t, int64(1), ownerID(r))
}

func TestParseMonth(t *testing.T) {
	r := httptest.NewRequest("GET", "/x", nil)
	m, err := parseMonth(r)
	require.NoError(t, err)
	assert.Nil(t, m, "absent month means yearly view")

	r = httptest.NewRequest("GET", "/x?month=6", nil)
	m, err = parseMonth(r)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 6, *m)

	r = httptest.NewRequest("GET", "/x?month=13", nil)
	_, err = parseMonth(r)
	assert.Error(t, err)

	r = httptest.NewRequest("GET", "/x?month=zero", nil)
	_, err = parseMonth(r)
	assert.Error(t, err)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "migros", sanitizeInput("  migros \x00\x01"))
	assert.Equal(t, "a\tb", sanitizeInput("a\tb"))
}

func TestSummaryKey(t *testing.T) {
	assert.Equal(t, "owner:1:summary:2025", summaryKey(1, 2025, nil))
	six := 6
	assert.Equal(t, "owner:1:summary:2025-06", summaryKey(1, 2025, &six))
}
