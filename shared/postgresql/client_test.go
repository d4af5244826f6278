package postgresql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := &Config{
		Host:     "db",
		Port:     5432,
		User:     "app",
		Password: "pw",
		Database: "jobs",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=jobs sslmode=disable", DSN(cfg))

	cfg.ApplicationName = "job-enricher-worker"
	cfg.ConnectTimeout = 5 * time.Second
	assert.Equal(t,
		"host=db port=5432 user=app password=pw dbname=jobs sslmode=disable application_name=job-enricher-worker connect_timeout=5",
		DSN(cfg),
	)
}
