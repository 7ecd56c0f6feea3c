package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ortho")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Minute, cfg.LegacySyncInterval)
	assert.Equal(t, 30, cfg.LegacySyncLookbackDays)
	assert.Equal(t, []string{"confirmed"}, cfg.LegacyStatuses)
	assert.Equal(t, "UTC", cfg.PracticeTimezone)
	assert.Equal(t, 60*time.Second, cfg.StatsCacheTTL)
	assert.Equal(t, int64(20*1024*1024), cfg.PhotoMaxBytes)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/ortho")
	t.Setenv("PORT", "9090")
	t.Setenv("LEGACY_SYNC_ENABLED", "true")
	t.Setenv("LEGACY_MYSQL_DSN", "booking:secret@tcp(mysql:3306)/booking")
	t.Setenv("LEGACY_SYNC_INTERVAL", "5m")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.LegacySyncEnabled)
	assert.Equal(t, 5*time.Minute, cfg.LegacySyncInterval)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing database url",
			cfg:     Config{PhotoMaxBytes: 1},
			wantErr: "DATABASE_URL is required",
		},
		{
			name: "sync without dsn",
			cfg: Config{
				DatabaseURL:        "postgres://x",
				LegacySyncEnabled:  true,
				LegacySyncInterval: time.Minute,
				PhotoMaxBytes:      1,
			},
			wantErr: "LEGACY_MYSQL_DSN",
		},
		{
			name:    "unknown practice timezone",
			cfg:     Config{DatabaseURL: "postgres://x", PhotoMaxBytes: 1, PracticeTimezone: "Mars/Olympus"},
			wantErr: "PRACTICE_TIMEZONE",
		},
		{
			name:    "non positive photo limit",
			cfg:     Config{DatabaseURL: "postgres://x"},
			wantErr: "PHOTO_MAX_BYTES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCloudinaryConfigured(t *testing.T) {
	assert.False(t, (&Config{}).CloudinaryConfigured())
	assert.True(t, (&Config{CloudinaryURL: "cloudinary://k:s@demo"}).CloudinaryConfigured())
	assert.True(t, (&Config{
		CloudinaryCloudName: "demo",
		CloudinaryAPIKey:    "k",
		CloudinaryAPISecret: "s",
	}).CloudinaryConfigured())
	assert.False(t, (&Config{CloudinaryCloudName: "demo"}).CloudinaryConfigured())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is allowed", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/ortho")
		cfg, err := load(filepath.Join(dir, "absent.env"))
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
	})

	t.Run("values are read", func(t *testing.T) {
		path := filepath.Join(dir, "local.env")
		require.NoError(t, os.WriteFile(path, []byte("PORT=7070\nCLOUDINARY_FOLDER=clinic\n"), 0o600))
		cfg, err := load(path)
		require.NoError(t, err)
		assert.Equal(t, "7070", cfg.Port)
		assert.Equal(t, "clinic", cfg.CloudinaryFolder)
	})

	t.Run("unreadable file is an error", func(t *testing.T) {
		path := filepath.Join(dir, "broken.env")
		require.NoError(t, os.Mkdir(path, 0o755))
		_, err := load(path)
		assert.Error(t, err)
	})
}
