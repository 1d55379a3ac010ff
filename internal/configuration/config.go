package configuration

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	ConfigPathEnvKey = "LUMENO_CONFIG"

	ObjectsMinIO = "minio"
	ObjectsGCS   = "gcs"
	ObjectsS3    = "s3"
	ObjectsLocal = "local"

	DocumentsPostgres  = "postgres"
	DocumentsFirestore = "firestore"
	DocumentsSQLite    = "sqlite"
	DocumentsLocal     = "local"

	DefaultMaxUploadBytes int64 = 50 * 1024 * 1024
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Objects   ObjectsConfig   `toml:"objects"`
	Documents DocumentsConfig `toml:"documents"`
	Upload    UploadConfig    `toml:"upload"`
	Tracing   TracingConfig   `toml:"tracing"`
	Log       LogConfig       `toml:"log"`
	NATSURL   string          `toml:"nats_url"`
	CLAMAVURL string          `toml:"clamav_url"`
}

type ServerConfig struct {
	Port           string   `toml:"port"`
	Host           string   `toml:"host"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type AuthConfig struct {
	IssuerURL        string `toml:"issuer_url"`
	ClientID         string `toml:"client_id"`
	ClientSecret     string `toml:"client_secret"`
	RedirectURL      string `toml:"redirect_url"`
	SelectAccount    bool   `toml:"select_account"`
	SessionCachePath string `toml:"session_cache_path"`
	StateKey         string `toml:"state_key"`
}

type ObjectsConfig struct {
	Backend   string        `toml:"backend"`
	URLExpiry time.Duration `toml:"url_expiry"`
	MinIO     MinIOConfig   `toml:"minio"`
	GCS       GCSConfig     `toml:"gcs"`
	S3        S3Config      `toml:"s3"`
	LocalDir  string        `toml:"local_dir"`
}

type MinIOConfig struct {
	Endpoint   string `toml:"endpoint"`
	AccessKey  string `toml:"access_key"`
	SecretKey  string `toml:"secret_key"`
	BucketName string `toml:"bucket"`
	UseSSL     bool   `toml:"use_ssl"`
}

// GCSConfig points at a Cloud Storage bucket, typically a Firebase
// project's default bucket.
type GCSConfig struct {
	Bucket          string `toml:"bucket"`
	CredentialsFile string `toml:"credentials_file"`
	// FirebaseURLs makes AccessURL return token download URLs instead of
	// signed URLs.
	FirebaseURLs bool `toml:"firebase_urls"`
}

type S3Config struct {
	Region       string `toml:"region"`
	BaseEndpoint string `toml:"base_endpoint"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	Bucket       string `toml:"bucket"`
}

type DocumentsConfig struct {
	Backend    string          `toml:"backend"`
	Collection string          `toml:"collection"`
	Database   DatabaseConfig  `toml:"postgres"`
	Firestore  FirestoreConfig `toml:"firestore"`
	SQLitePath string          `toml:"sqlite_path"`
	LocalPath  string          `toml:"local_path"`
}

type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
}

type FirestoreConfig struct {
	ProjectID       string `toml:"project_id"`
	CredentialsFile string `toml:"credentials_file"`
}

type UploadConfig struct {
	MaxBytes int64 `toml:"max_bytes"`
	Scan     bool  `toml:"scan"`
}

type TracingConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
	AgentAddr   string `toml:"agent_addr"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: "7420",
			Host: "127.0.0.1",
		},
		Auth: AuthConfig{
			IssuerURL:        "https://accounts.google.com",
			RedirectURL:      "http://127.0.0.1:7420/auth/callback",
			SelectAccount:    true,
			SessionCachePath: filepath.Join(dataDir, "session.json"),
		},
		Objects: ObjectsConfig{
			Backend:   ObjectsLocal,
			URLExpiry: 7 * 24 * time.Hour,
			MinIO: MinIOConfig{
				Endpoint:   "localhost:9000",
				AccessKey:  "minioadmin",
				SecretKey:  "minioadmin",
				BucketName: "lumeno",
			},
			S3:       S3Config{Region: "us-east-1", Bucket: "lumeno"},
			LocalDir: filepath.Join(dataDir, "objects"),
		},
		Documents: DocumentsConfig{
			Backend:    DocumentsSQLite,
			Collection: "pdfs",
			Database: DatabaseConfig{
				Host:    "localhost",
				Port:    "5432",
				User:    "lumeno",
				DBName:  "lumeno",
				SSLMode: "disable",
			},
			SQLitePath: filepath.Join(dataDir, "lumeno.db"),
			LocalPath:  filepath.Join(dataDir, "pdf_metadata.json"),
		},
		Upload: UploadConfig{MaxBytes: DefaultMaxUploadBytes},
		Tracing: TracingConfig{
			ServiceName: "lumeno",
			AgentAddr:   "localhost:8126",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// LUMENO_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(ConfigPathEnvKey)); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Auth.IssuerURL = getEnv("OIDC_ISSUER_URL", c.Auth.IssuerURL)
	c.Auth.ClientID = getEnv("OIDC_CLIENT_ID", c.Auth.ClientID)
	c.Auth.ClientSecret = getEnv("OIDC_CLIENT_SECRET", c.Auth.ClientSecret)
	c.Auth.RedirectURL = getEnv("OIDC_REDIRECT_URL", c.Auth.RedirectURL)
	c.Auth.SelectAccount = getEnvBool("OIDC_SELECT_ACCOUNT", c.Auth.SelectAccount)
	c.Auth.SessionCachePath = getEnv("SESSION_CACHE_PATH", c.Auth.SessionCachePath)
	c.Auth.StateKey = getEnv("STATE_SIGNING_KEY", c.Auth.StateKey)

	c.Objects.Backend = getEnv("OBJECTS_BACKEND", c.Objects.Backend)
	c.Objects.URLExpiry = getEnvDuration("OBJECTS_URL_EXPIRY", c.Objects.URLExpiry)
	c.Objects.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", c.Objects.MinIO.Endpoint)
	c.Objects.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Objects.MinIO.AccessKey)
	c.Objects.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", c.Objects.MinIO.SecretKey)
	c.Objects.MinIO.BucketName = getEnv("MINIO_BUCKET", c.Objects.MinIO.BucketName)
	c.Objects.MinIO.UseSSL = getEnvBool("MINIO_USE_SSL", c.Objects.MinIO.UseSSL)
	c.Objects.GCS.Bucket = getEnv("GCS_BUCKET", c.Objects.GCS.Bucket)
	c.Objects.GCS.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Objects.GCS.CredentialsFile)
	c.Objects.GCS.FirebaseURLs = getEnvBool("GCS_FIREBASE_URLS", c.Objects.GCS.FirebaseURLs)
	c.Objects.S3.Region = getEnv("S3_REGION", c.Objects.S3.Region)
	c.Objects.S3.BaseEndpoint = getEnv("S3_BASE_ENDPOINT", c.Objects.S3.BaseEndpoint)
	c.Objects.S3.AccessKey = getEnv("S3_ACCESS_KEY", c.Objects.S3.AccessKey)
	c.Objects.S3.SecretKey = getEnv("S3_SECRET_KEY", c.Objects.S3.SecretKey)
	c.Objects.S3.Bucket = getEnv("S3_BUCKET", c.Objects.S3.Bucket)
	c.Objects.LocalDir = getEnv("OBJECTS_LOCAL_DIR", c.Objects.LocalDir)

	c.Documents.Backend = getEnv("DOCUMENTS_BACKEND", c.Documents.Backend)
	c.Documents.Collection = getEnv("DOCUMENTS_COLLECTION", c.Documents.Collection)
	c.Documents.Database.Host = getEnv("DB_HOST", c.Documents.Database.Host)
	c.Documents.Database.Port = getEnv("DB_PORT", c.Documents.Database.Port)
	c.Documents.Database.User = getEnv("DB_USER", c.Documents.Database.User)
	c.Documents.Database.Password = getEnv("DB_PASSWORD", c.Documents.Database.Password)
	c.Documents.Database.DBName = getEnv("DB_NAME", c.Documents.Database.DBName)
	c.Documents.Database.SSLMode = getEnv("DB_SSL_MODE", c.Documents.Database.SSLMode)
	c.Documents.Firestore.ProjectID = getEnv("FIRESTORE_PROJECT_ID", c.Documents.Firestore.ProjectID)
	c.Documents.Firestore.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Documents.Firestore.CredentialsFile)
	c.Documents.SQLitePath = getEnv("SQLITE_PATH", c.Documents.SQLitePath)
	c.Documents.LocalPath = getEnv("DOCUMENTS_LOCAL_PATH", c.Documents.LocalPath)

	c.Upload.MaxBytes = getEnvInt64("UPLOAD_MAX_BYTES", c.Upload.MaxBytes)
	c.Upload.Scan = getEnvBool("UPLOAD_SCAN", c.Upload.Scan)

	c.Tracing.Enabled = getEnvBool("DD_TRACE_ENABLED", c.Tracing.Enabled)
	c.Tracing.ServiceName = getEnv("DD_SERVICE", c.Tracing.ServiceName)
	c.Tracing.AgentAddr = getEnv("DD_AGENT_ADDR", c.Tracing.AgentAddr)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.CLAMAVURL = getEnv("CLAMAV_URL", c.CLAMAVURL)
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Objects.Backend {
	case ObjectsMinIO:
		if c.Objects.MinIO.Endpoint == "" || c.Objects.MinIO.BucketName == "" {
			errs = append(errs, errors.New("minio endpoint and bucket are required"))
		}
	case ObjectsGCS:
		if c.Objects.GCS.Bucket == "" {
			errs = append(errs, errors.New("gcs bucket is required"))
		}
	case ObjectsS3:
		if c.Objects.S3.Bucket == "" || c.Objects.S3.Region == "" {
			errs = append(errs, errors.New("s3 bucket and region are required"))
		}
	case ObjectsLocal:
		if c.Objects.LocalDir == "" {
			errs = append(errs, errors.New("objects local_dir is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown objects backend %q", c.Objects.Backend))
	}

	switch c.Documents.Backend {
	case DocumentsPostgres, DocumentsSQLite, DocumentsLocal:
	case DocumentsFirestore:
		if c.Documents.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("firestore project_id is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown documents backend %q", c.Documents.Backend))
	}

	if c.Documents.Collection == "" {
		errs = append(errs, errors.New("documents collection is required"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload max_bytes must be positive"))
	}
	if c.Upload.Scan && c.CLAMAVURL == "" {
		errs = append(errs, errors.New("clamav_url is required when upload scanning is on"))
	}
	return errors.Join(errs...)
}

// ConnectionString builds a postgres:// DSN. Credentials are escaped.
func (c *DatabaseConfig) ConnectionString() string {
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	if c.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return dsn.String()
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "lumeno")
	}
	return ".lumeno"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
