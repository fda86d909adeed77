package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Lifecycle    LifecycleConfig
	Backoffice   BackofficeConfig
	PandaDoc     PandaDocConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	SideEffects  SideEffectsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FACTORING_APP_ENV" required:"true"`
	Port         string `envconfig:"FACTORING_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FACTORING_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FACTORING_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"FACTORING_LOG_FORMAT" default:"json"`
	// CORSOrigins is a comma separated list of portal origins.
	CORSOrigins []string `envconfig:"FACTORING_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FACTORING_DB_DSN"`
	Driver string `envconfig:"FACTORING_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FACTORING_DB_HOST"`
	LegacyPort     int    `envconfig:"FACTORING_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FACTORING_DB_USER"`
	LegacyPassword string `envconfig:"FACTORING_DB_PASSWORD"`
	LegacyName     string `envconfig:"FACTORING_DB_NAME"`
	LegacySSLMode  string `envconfig:"FACTORING_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FACTORING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FACTORING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FACTORING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FACTORING_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FACTORING_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FACTORING_REDIS_ADDR"`
	Password     string        `envconfig:"FACTORING_REDIS_PASSWORD"`
	DB           int           `envconfig:"FACTORING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FACTORING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FACTORING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FACTORING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FACTORING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FACTORING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes how access tokens minted by the identity provider are verified.
type JWTConfig struct {
	Secret   string `envconfig:"FACTORING_JWT_SECRET" required:"true"`
	Issuer   string `envconfig:"FACTORING_JWT_ISSUER" required:"true"`
	Audience string `envconfig:"FACTORING_JWT_AUDIENCE" default:"authenticated"`
	// ExpirationMinutes is only used when tokens are minted locally (tests, dev tooling).
	ExpirationMinutes int `envconfig:"FACTORING_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the locally minted token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FACTORING_AUTO_MIGRATE" default:"false"`
	// AllowForceSign enables the operational force-sign override in production.
	AllowForceSign bool `envconfig:"FACTORING_ALLOW_FORCE_SIGN" default:"false"`
	Idempotency    bool `envconfig:"FACTORING_FEATURE_IDEMPOTENCY" default:"true"`
}

// ForceSignEnabled reports whether the override may run in the given app environment.
func (f FeatureFlagsConfig) ForceSignEnabled(app AppConfig) bool {
	return f.AllowForceSign || !app.IsProd()
}

// LifecycleConfig makes the permission level of the generic endpoints explicit.
type LifecycleConfig struct {
	UpdatePermission  string `envconfig:"FACTORING_PERMISSION_UPDATE" default:"active_member"`
	DeletePermission  string `envconfig:"FACTORING_PERMISSION_DELETE" default:"owner_only"`
	PermissiveFunding bool   `envconfig:"FACTORING_LIFECYCLE_PERMISSIVE_FUNDING" default:"false"`
}

type BackofficeConfig struct {
	AllowedEmails []string `envconfig:"FACTORING_BACKOFFICE_EMAILS"`
}

// NormalizedEmails returns the allow-list lower-cased and trimmed.
func (b BackofficeConfig) NormalizedEmails() []string {
	out := make([]string, 0, len(b.AllowedEmails))
	for _, email := range b.AllowedEmails {
		if trimmed := strings.ToLower(strings.TrimSpace(email)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type PandaDocConfig struct {
	APIKey            string        `envconfig:"FACTORING_PANDADOC_API_KEY"`
	BaseURL           string        `envconfig:"FACTORING_PANDADOC_BASE_URL" default:"https://api.pandadoc.com/public/v1"`
	TemplateID        string        `envconfig:"FACTORING_PANDADOC_TEMPLATE_ID"`
	ViewerURLTemplate string        `envconfig:"FACTORING_PANDADOC_VIEWER_URL_TEMPLATE" default:"https://app.pandadoc.com/a/#/documents/{id}"`
	WebhookSecret     string        `envconfig:"FACTORING_PANDADOC_WEBHOOK_SECRET"`
	SessionLifetime   time.Duration `envconfig:"FACTORING_PANDADOC_SESSION_LIFETIME" default:"1h"`
	Timeout           time.Duration `envconfig:"FACTORING_PANDADOC_TIMEOUT" default:"20s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FACTORING_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FACTORING_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FACTORING_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName  string `envconfig:"FACTORING_GCS_BUCKET_NAME" required:"true"`
	Endpoint    string `envconfig:"FACTORING_GCS_ENDPOINT"`
	MaxUploadMB int    `envconfig:"FACTORING_MAX_UPLOAD_MB" default:"25"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"FACTORING_PUBSUB_NOTIFICATION_TOPIC"`
}

// Enabled reports whether notification fan-out to Pub/Sub is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.NotificationTopic) != ""
}

// SideEffectsConfig tunes the best-effort dispatcher used for audit and notifications.
type SideEffectsConfig struct {
	Workers     int           `envconfig:"FACTORING_SIDE_EFFECT_WORKERS" default:"4"`
	QueueSize   int           `envconfig:"FACTORING_SIDE_EFFECT_QUEUE_SIZE" default:"256"`
	TaskTimeout time.Duration `envconfig:"FACTORING_SIDE_EFFECT_TASK_TIMEOUT" default:"10s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
