package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/footprint/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	c := &domain.Cursor{
		CreatedAt: time.Date(2025, time.June, 1, 10, 30, 0, 123456789, time.UTC),
		ID:        "01J0ABCDEF",
	}

	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	require.Equal(t, c.ID, decoded.ID)
	require.True(t, c.CreatedAt.Equal(decoded.CreatedAt))
}

func TestDecodeCursorEmpty(t *testing.T) {
	c, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, c)
	require.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"!!!", "bm8tcGlwZQ", "bm90LWEtdGltZXxpZA"} {
		_, err := DecodeCursor(token)
		require.ErrorIs(t, err, ErrInvalidCursor, "token %q", token)
	}
}

func TestNextCursor(t *testing.T) {
	page := []domain.Activity{
		{ID: "b", CreatedAt: time.Unix(20, 0).UTC()},
		{ID: "a", CreatedAt: time.Unix(10, 0).UTC()},
	}

	require.Nil(t, NextCursor(page, 3))
	next := NextCursor(page, 2)
	require.NotNil(t, next)
	require.Equal(t, "a", next.ID)
}
