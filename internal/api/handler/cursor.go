package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/job-enricher/internal/enrichment/storage"
)

// DecodePostingCursor parses a page cursor. An empty string means the first page.
func DecodePostingCursor(cursorStr string) (*storage.PostingCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 || decodedParts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var scrapedAt int64
	_, err = fmt.Sscanf(decodedParts[0], "%d", &scrapedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid scrapedAt in cursor: %w", err)
	}

	return &storage.PostingCursor{
		ScrapedAt: time.Unix(0, scrapedAt).UTC(),
		ID:        decodedParts[1],
	}, nil
}

// EncodePostingCursor builds the cursor for the page after cursor
func EncodePostingCursor(cursor *storage.PostingCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.ScrapedAt.UnixNano(), cursor.ID)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}
