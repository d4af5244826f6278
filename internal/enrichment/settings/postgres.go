package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps settings in the app_settings table
type PostgresStore struct {
	db       *sqlx.DB
	fallback bool
	logger   *slog.Logger
}

// NewPostgresStore creates a PostgresStore. fallback is returned while the
// row does not exist yet.
func NewPostgresStore(db *sqlx.DB, fallback bool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:       db,
		fallback: fallback,
		logger:   logger,
	}
}

// AutoProcessingEnabled reads the switch
func (s *PostgresStore) AutoProcessingEnabled(ctx context.Context) (bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM app_settings WHERE key = $1`, KeyAutoProcessing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.fallback, nil
		}
		return false, fmt.Errorf("failed to read setting: %w", err)
	}

	return parseBool(KeyAutoProcessing, value)
}

// SetAutoProcessing upserts the switch
func (s *PostgresStore) SetAutoProcessing(ctx context.Context, enabled bool) error {
	query := `
		INSERT INTO app_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, KeyAutoProcessing, strconv.FormatBool(enabled)); err != nil {
		s.logger.Error("Failed to store setting",
			slog.String("key", KeyAutoProcessing),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to store setting: %w", err)
	}

	s.logger.Info("Setting updated",
		slog.String("key", KeyAutoProcessing),
		slog.Bool("value", enabled),
	)
	return nil
}
