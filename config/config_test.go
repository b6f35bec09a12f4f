package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnvOverride(t *testing.T) {
	t.Setenv("FREE99_JWT_SECRET", "test-secret")
	t.Setenv("FREE99_MARKET_ALLOWED_EMAIL_DOMAIN", "@campus.edu")
	t.Setenv("FREE99_DATABASE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-secret", cfg.JWT.Secret)
	assert.Equal(t, "@campus.edu", cfg.Market.AllowedEmailDomain)
	assert.Equal(t, 15*time.Minute, cfg.Market.VerificationTTL)
	assert.Equal(t, 5, cfg.Market.MaxVerificationAttempts)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, "file::memory:?cache=shared", cfg.Database.BuildDSN())
}

func TestBuildDSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC", pg.BuildDSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "u:p@tcp(db:3306)/n?charset=utf8mb4&parseTime=True&loc=UTC", my.BuildDSN())

	explicit := DatabaseConfig{Driver: "postgres", DSN: "postgres://x"}
	assert.Equal(t, "postgres://x", explicit.BuildDSN())
}
