package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, mapLookup(nil), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "cityshare.sqlite3", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StorageDisk, cfg.Storage)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, 1.0, cfg.RateLimit)
	assert.Equal(t, 10, cfg.RateBurst)
	assert.Zero(t, cfg.ListingBase)
}

func TestParseEnvironmentAndFlags(t *testing.T) {
	env := map[string]string{
		"CITYSHARE_DB":               "/var/lib/cityshare.db",
		"CITYSHARE_ADDR":             ":9000",
		"CITYSHARE_STORAGE":          "minio",
		"CITYSHARE_MINIO_ACCESS_KEY": "key",
		"CITYSHARE_MINIO_SECRET_KEY": "secret",
		"CITYSHARE_MINIO_USE_SSL":    "true",
		"CITYSHARE_RATE_BURST":       "3",
		"CITYSHARE_LISTING_BASE":     "2000",
	}

	cfg, err := Parse([]string{"-a", ":7000", "-jwt-secret", "s3cret", "-listing-base", "5000"}, mapLookup(env), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/cityshare.db", cfg.DBPath)
	assert.Equal(t, ":7000", cfg.Addr, "flags override the environment")
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, StorageMinIO, cfg.Storage)
	assert.Equal(t, "localhost:9000", cfg.MinIO.Endpoint)
	assert.Equal(t, "cityshare", cfg.MinIO.Bucket)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, 3, cfg.RateBurst)
	assert.Equal(t, int64(5000), cfg.ListingBase)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"unknown storage", []string{"-storage", "ftp"}, nil},
		{"minio without keys", []string{"-s", "minio"}, nil},
		{"bad bool", nil, map[string]string{"CITYSHARE_MINIO_USE_SSL": "maybe"}},
		{"bad rate", nil, map[string]string{"CITYSHARE_RATE_LIMIT": "0"}},
		{"bad listing base", nil, map[string]string{"CITYSHARE_LISTING_BASE": "lots"}},
		{"negative listing base", []string{"-listing-base", "-1"}, nil},
		{"extra argument", []string{"now"}, nil},
		{"unknown flag", []string{"-verbose"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args, mapLookup(tt.env), io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestParseHelp(t *testing.T) {
	_, err := Parse([]string{"-h"}, mapLookup(nil), io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestReadEnvFile(t *testing.T) {
	values, err := readEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Empty(t, values)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CITYSHARE_ADDR=:6000\n# comment\nCITYSHARE_STORAGE=disk\n"), 0o644))

	values, err = readEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":6000", values["CITYSHARE_ADDR"])

	cfg, err := Parse(nil, mapLookup(values), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Addr)
}
