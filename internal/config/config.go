// Package config loads the service configuration from the environment.
//
// Values are read once at startup through viper and validated in a single
// pass so that every problem is reported together instead of one per run.
package config

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Metadata and blob backend names.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"

	StorageLocal = "local"
	StorageMinio = "minio"
)

// Config is the immutable runtime configuration of the service.
type Config struct {
	Addr   string
	APIKey string

	// MaxUploadSize is the per-file limit in bytes.
	MaxUploadSize  int64
	MaxUploadFiles int

	MetadataBackend string
	MongoURI        string
	MongoDatabase   string
	DatabaseURL     string

	StorageBackend string
	StorageDir     string
	S3             S3Config

	WordlistPath string
	PublicDir    string

	// CleanupInterval controls the sweep of abandoned temporary upload
	// files; zero disables it.
	CleanupInterval time.Duration
	CleanupMaxAge   time.Duration

	Log LogConfig
}

// S3Config holds the MinIO / S3 connection settings.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string
	Format string
	ToFile bool
}

// UploadDir is the root under which uploaded files are stored, relative to
// the working directory.
func (c Config) UploadDir() string { return path.Join(c.StorageDir, "uploads") }

// LogDir is where daily log files are written.
func (c Config) LogDir() string { return path.Join(c.StorageDir, "logs") }

// MaxRequestBytes bounds a whole upload request body.
func (c Config) MaxRequestBytes() int64 {
	return c.MaxUploadSize*int64(c.MaxUploadFiles) + formOverhead
}

// formOverhead leaves room for multipart boundaries and text fields.
const formOverhead = 1 << 20

const mib = 1 << 20

func defaults(v *viper.Viper) {
	v.SetDefault("ADDR", ":3000")
	v.SetDefault("MAX_UPLOAD_SIZE", "10")
	v.SetDefault("MAX_UPLOAD_FILES", "10")
	v.SetDefault("METADATA_BACKEND", BackendMongo)
	v.SetDefault("MONGODB_DATABASE", "filedrop")
	v.SetDefault("STORAGE_BACKEND", StorageLocal)
	v.SetDefault("STORAGE_DIR", "storages")
	v.SetDefault("PUBLIC_DIR", "public")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_TO_FILE", "true")
	v.SetDefault("CLEANUP_INTERVAL", "1h")
	v.SetDefault("CLEANUP_MAX_AGE", "24h")
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds and validates a Config from an already populated viper
// instance. Defaults are applied for keys that are not set.
func FromViper(v *viper.Viper) (Config, error) {
	defaults(v)
	val := NewValidator()

	cfg := Config{
		Addr:            v.GetString("ADDR"),
		APIKey:          val.Required("API_KEY", v.GetString("API_KEY")),
		MetadataBackend: strings.ToLower(v.GetString("METADATA_BACKEND")),
		MongoURI:        v.GetString("MONGODB_URI"),
		MongoDatabase:   v.GetString("MONGODB_DATABASE"),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		StorageBackend:  strings.ToLower(v.GetString("STORAGE_BACKEND")),
		StorageDir:      strings.TrimSuffix(path.Clean(v.GetString("STORAGE_DIR")), "/"),
		S3: S3Config{
			Endpoint:  v.GetString("S3_ENDPOINT"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
			Bucket:    v.GetString("S3_BUCKET"),
		},
		WordlistPath: v.GetString("WORDLIST_PATH"),
		PublicDir:    v.GetString("PUBLIC_DIR"),
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
	}

	cfg.MaxUploadSize = int64(val.PositiveInt("MAX_UPLOAD_SIZE", v.GetString("MAX_UPLOAD_SIZE"))) * mib
	cfg.MaxUploadFiles = val.PositiveInt("MAX_UPLOAD_FILES", v.GetString("MAX_UPLOAD_FILES"))
	cfg.Log.ToFile = val.Bool("LOG_TO_FILE", v.GetString("LOG_TO_FILE"))
	cfg.CleanupInterval = val.Duration("CLEANUP_INTERVAL", v.GetString("CLEANUP_INTERVAL"))
	cfg.CleanupMaxAge = val.Duration("CLEANUP_MAX_AGE", v.GetString("CLEANUP_MAX_AGE"))

	val.Addr("ADDR", cfg.Addr)
	val.Enum("METADATA_BACKEND", cfg.MetadataBackend, []string{BackendMongo, BackendPostgres})
	val.Enum("STORAGE_BACKEND", cfg.StorageBackend, []string{StorageLocal, StorageMinio})
	val.Enum("LOG_LEVEL", cfg.Log.Level, []string{"debug", "info", "warn", "error"})
	val.Enum("LOG_FORMAT", cfg.Log.Format, []string{"text", "json"})

	switch cfg.MetadataBackend {
	case BackendMongo:
		val.Required("MONGODB_URI", cfg.MongoURI)
		if cfg.MongoURI != "" &&
			!strings.HasPrefix(cfg.MongoURI, "mongodb://") && !strings.HasPrefix(cfg.MongoURI, "mongodb+srv://") {
			val.AddError("MONGODB_URI", "must be a mongodb:// or mongodb+srv:// connection string")
		}
	case BackendPostgres:
		val.Required("DATABASE_URL", cfg.DatabaseURL)
		if cfg.DatabaseURL != "" &&
			!strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
			val.AddError("DATABASE_URL", "must be a valid PostgreSQL connection string")
		}
	}

	if cfg.StorageBackend == StorageMinio {
		val.Required("S3_ENDPOINT", cfg.S3.Endpoint)
		val.Required("S3_ACCESS_KEY", cfg.S3.AccessKey)
		val.Required("S3_SECRET_KEY", cfg.S3.SecretKey)
		val.Required("S3_BUCKET", cfg.S3.Bucket)
		if strings.Contains(cfg.S3.Endpoint, "://") {
			val.URL("S3_ENDPOINT", cfg.S3.Endpoint)
		}
	}

	if cfg.StorageDir == "" || cfg.StorageDir == "." || strings.HasPrefix(cfg.StorageDir, "..") {
		val.AddError("STORAGE_DIR", "must name a directory below the working directory or an absolute path")
	}

	if err := val.Err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects validation errors.
type Validator struct {
	errors []ValidationError
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

// AddError records an error for field.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any error was recorded.
func (v *Validator) HasErrors() bool { return len(v.errors) > 0 }

// Errors returns all recorded errors.
func (v *Validator) Errors() []ValidationError { return v.errors }

// Err returns nil or a single error listing every problem.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return fmt.Errorf("%s", sb.String())
}

// Required records an error when value is empty and returns value.
func (v *Validator) Required(key, value string) string {
	if value == "" {
		v.AddError(key, "required environment variable not set")
	}
	return value
}

// PositiveInt parses value as a positive integer; 0 is returned on error.
func (v *Validator) PositiveInt(key, value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return 0
	}
	if n <= 0 {
		v.AddError(key, "must be a positive integer")
		return 0
	}
	return n
}

// Bool parses value as a boolean.
func (v *Validator) Bool(key, value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		v.AddError(key, "must be true or false")
		return false
	}
	return b
}

// Duration parses a non-negative Go duration such as "30m" or "24h".
// "0" is accepted.
func (v *Validator) Duration(key, value string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g., 30m, 24h)")
		return 0
	}
	if d < 0 {
		v.AddError(key, "must not be negative")
		return 0
	}
	return d
}

// Enum checks that value is one of allowed.
func (v *Validator) Enum(key, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// Addr checks a listen address of the form [host]:port.
func (v *Validator) Addr(key, value string) {
	i := strings.LastIndex(value, ":")
	if i < 0 {
		v.AddError(key, "must be of the form [host]:port")
		return
	}
	port, err := strconv.Atoi(value[i+1:])
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

// URL checks that value is an http(s) URL.
func (v *Validator) URL(key, value string) {
	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
	}
}
