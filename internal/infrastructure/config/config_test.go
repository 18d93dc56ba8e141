package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	t.Run("fills zero values", func(t *testing.T) {
		cfg := &Config{}
		setDefaults(cfg)

		assert.Equal(t, "wms-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, 4*time.Hour, cfg.Session.IdleTTL)
		assert.Equal(t, "utf-8", cfg.Import.DefaultEncoding)
		assert.Empty(t, cfg.HTTP.CORSAllowOrigins, "no wildcard CORS fallback")
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		cfg := &Config{
			App:     AppConfig{Port: "9000"},
			Session: SessionConfig{IdleTTL: time.Hour},
		}
		setDefaults(cfg)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, time.Hour, cfg.Session.IdleTTL)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		setDefaults(cfg)
		return cfg
	}

	t.Run("defaults pass", func(t *testing.T) {
		require.NoError(t, valid().validate())
	})

	t.Run("idle pool cannot exceed open pool", func(t *testing.T) {
		cfg := valid()
		cfg.Database.MaxOpenConns = 2
		cfg.Database.MaxIdleConns = 5
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects unknown import encoding", func(t *testing.T) {
		cfg := valid()
		cfg.Import.DefaultEncoding = "latin-1"
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects sub-minute session TTL", func(t *testing.T) {
		cfg := valid()
		cfg.Session.IdleTTL = time.Second
		assert.Error(t, cfg.validate())
	})

	t.Run("production requires password and TLS", func(t *testing.T) {
		cfg := valid()
		cfg.App.Env = "production"
		assert.Error(t, cfg.validate())

		cfg.Database.Password = "secret"
		assert.Error(t, cfg.validate(), "sslmode disable still rejected")

		cfg.Database.SSLMode = "require"
		assert.NoError(t, cfg.validate())
	})

	t.Run("production rejects wildcard CORS", func(t *testing.T) {
		cfg := valid()
		cfg.App.Env = "production"
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
		assert.Error(t, cfg.validate())
	})
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "wms",
		Password: "p@ss/word",
		DBName:   "wms",
		SSLMode:  "require",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	assert.NotContains(t, dsn, "p@ss/word", "password must be escaped")
}
