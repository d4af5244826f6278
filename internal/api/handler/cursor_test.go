package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostingCursor_RoundTrip(t *testing.T) {
	in := &storage.PostingCursor{
		ScrapedAt: time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC),
		ID:        "8d0c2f4e-6d0e-4b7e-9a0f-2e4d1c3b5a69",
	}

	out, err := DecodePostingCursor(EncodePostingCursor(in))
	require.NoError(t, err)
	assert.True(t, in.ScrapedAt.Equal(out.ScrapedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestDecodePostingCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "***"},
		{"missing separator", base64.URLEncoding.EncodeToString([]byte("12345"))},
		{"empty id", base64.URLEncoding.EncodeToString([]byte("12345|"))},
		{"bad timestamp", base64.URLEncoding.EncodeToString([]byte("abc|id"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePostingCursor(tt.cursor)
			assert.Error(t, err)
		})
	}

	c, err := DecodePostingCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)
}
