// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/footprint/internal/domain"
)

// ErrInvalidCursor is returned when a pagination token cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor serialises the cursor to a URL-safe token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.CreatedAt.UTC().Format(time.RFC3339Nano), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token yields a nil cursor.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, ErrInvalidCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return &domain.Cursor{CreatedAt: ts.UTC(), ID: parts[1]}, nil
}

// NextCursor returns the cursor following a page, or nil when the page was not full.
func NextCursor(page []domain.Activity, limit int) *domain.Cursor {
	if limit <= 0 || len(page) < limit {
		return nil
	}
	last := page[len(page)-1]
	return &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
}
