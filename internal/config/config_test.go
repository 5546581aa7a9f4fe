package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(kv map[string]string) *viper.Viper {
	v := viper.New()
	for k, val := range kv {
		v.Set(k, val)
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]string{
		"API_KEY":     "secret",
		"MONGODB_URI": "mongodb://localhost:27017",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadSize)
	assert.Equal(t, 10, cfg.MaxUploadFiles)
	assert.Equal(t, BackendMongo, cfg.MetadataBackend)
	assert.Equal(t, "filedrop", cfg.MongoDatabase)
	assert.Equal(t, StorageLocal, cfg.StorageBackend)
	assert.Equal(t, "storages", cfg.StorageDir)
	assert.Equal(t, "storages/uploads", cfg.UploadDir())
	assert.Equal(t, "storages/logs", cfg.LogDir())
	assert.Equal(t, "public", cfg.PublicDir)
	assert.Equal(t, "", cfg.WordlistPath)
	assert.Equal(t, LogConfig{Level: "info", Format: "text", ToFile: true}, cfg.Log)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.CleanupMaxAge)
	assert.Equal(t, int64(10*(10<<20)+formOverhead), cfg.MaxRequestBytes())
}

func TestFromViper_Overrides(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]string{
		"ADDR":             "127.0.0.1:8080",
		"API_KEY":          "k",
		"MAX_UPLOAD_SIZE":  "2",
		"MAX_UPLOAD_FILES": "3",
		"METADATA_BACKEND": "Postgres",
		"DATABASE_URL":     "postgres://u:p@localhost/db",
		"STORAGE_BACKEND":  "minio",
		"STORAGE_DIR":      "/var/lib/filedrop/",
		"S3_ENDPOINT":      "http://minio:9000",
		"S3_ACCESS_KEY":    "a",
		"S3_SECRET_KEY":    "b",
		"S3_BUCKET":        "files",
		"LOG_LEVEL":        "DEBUG",
		"LOG_FORMAT":       "json",
		"LOG_TO_FILE":      "false",
		"CLEANUP_INTERVAL": "0",
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(2<<20), cfg.MaxUploadSize)
	assert.Equal(t, 3, cfg.MaxUploadFiles)
	assert.Equal(t, BackendPostgres, cfg.MetadataBackend)
	assert.Equal(t, StorageMinio, cfg.StorageBackend)
	assert.Equal(t, "/var/lib/filedrop", cfg.StorageDir)
	assert.Equal(t, "/var/lib/filedrop/uploads", cfg.UploadDir())
	assert.Equal(t, S3Config{Endpoint: "http://minio:9000", AccessKey: "a", SecretKey: "b", Bucket: "files"}, cfg.S3)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json", ToFile: false}, cfg.Log)
	assert.Zero(t, cfg.CleanupInterval)
}

func TestFromViper_CollectsAllErrors(t *testing.T) {
	_, err := FromViper(newViper(map[string]string{
		"ADDR":             "nope",
		"MAX_UPLOAD_SIZE":  "0",
		"MAX_UPLOAD_FILES": "x",
		"METADATA_BACKEND": "mongo",
		"LOG_FORMAT":       "xml",
	}))
	require.Error(t, err)

	msg := err.Error()
	for _, field := range []string{"API_KEY", "ADDR", "MAX_UPLOAD_SIZE", "MAX_UPLOAD_FILES", "MONGODB_URI", "LOG_FORMAT"} {
		assert.Contains(t, msg, field)
	}
	assert.Contains(t, msg, "6 error(s)")
}

func TestFromViper_BackendRequirements(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "postgres without url",
			env:     map[string]string{"API_KEY": "k", "METADATA_BACKEND": "postgres"},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "postgres bad scheme",
			env:     map[string]string{"API_KEY": "k", "METADATA_BACKEND": "postgres", "DATABASE_URL": "mysql://x"},
			wantErr: "PostgreSQL",
		},
		{
			name:    "mongo bad scheme",
			env:     map[string]string{"API_KEY": "k", "MONGODB_URI": "http://x"},
			wantErr: "mongodb://",
		},
		{
			name:    "minio without bucket",
			env:     map[string]string{"API_KEY": "k", "MONGODB_URI": "mongodb://x", "STORAGE_BACKEND": "minio", "S3_ENDPOINT": "minio:9000", "S3_ACCESS_KEY": "a", "S3_SECRET_KEY": "b"},
			wantErr: "S3_BUCKET",
		},
		{
			name:    "bad cleanup interval",
			env:     map[string]string{"API_KEY": "k", "MONGODB_URI": "mongodb://x", "CLEANUP_INTERVAL": "hourly"},
			wantErr: "CLEANUP_INTERVAL",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"API_KEY": "k", "METADATA_BACKEND": "sqlite"},
			wantErr: "METADATA_BACKEND",
		},
		{
			name:    "storage dir escapes",
			env:     map[string]string{"API_KEY": "k", "MONGODB_URI": "mongodb://x", "STORAGE_DIR": "../up"},
			wantErr: "STORAGE_DIR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromViper(newViper(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("API_KEY", "from-env")
	t.Setenv("MONGODB_URI", "mongodb://db:27017")
	t.Setenv("MAX_UPLOAD_SIZE", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadSize)
}

func TestValidator_Addr(t *testing.T) {
	tests := []struct {
		addr string
		ok   bool
	}{
		{":3000", true},
		{"0.0.0.0:80", true},
		{"[::1]:8080", true},
		{"3000", false},
		{":0", false},
		{":70000", false},
		{":http", false},
	}
	for _, tt := range tests {
		v := NewValidator()
		v.Addr("ADDR", tt.addr)
		assert.Equal(t, !tt.ok, v.HasErrors(), "addr %q", tt.addr)
	}
}

func TestValidator_ErrNilWhenClean(t *testing.T) {
	v := NewValidator()
	v.Required("X", "set")
	v.Enum("Y", "a", []string{"a", "b"})
	assert.NoError(t, v.Err())
	assert.Empty(t, v.Errors())
}
