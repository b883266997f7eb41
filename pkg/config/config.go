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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Media        MediaConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Sendgrid     SendgridConfig
	Outbox       OutboxConfig
	Offers       OffersConfig
	Usage        UsageConfig
	Cron         CronConfig
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
	Env          string `envconfig:"ILIRIA_APP_ENV" required:"true"`
	Port         string `envconfig:"ILIRIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ILIRIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ILIRIA_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"ILIRIA_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"ILIRIA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ILIRIA_DB_DSN"`
	Driver string `envconfig:"ILIRIA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ILIRIA_DB_HOST"`
	Port     int    `envconfig:"ILIRIA_DB_PORT" default:"5432"`
	User     string `envconfig:"ILIRIA_DB_USER"`
	Password string `envconfig:"ILIRIA_DB_PASSWORD"`
	Name     string `envconfig:"ILIRIA_DB_NAME"`
	SSLMode  string `envconfig:"ILIRIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ILIRIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ILIRIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ILIRIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ILIRIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ILIRIA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ILIRIA_REDIS_ADDR"`
	Password     string        `envconfig:"ILIRIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ILIRIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ILIRIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ILIRIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ILIRIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ILIRIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ILIRIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the identity provider.
type JWTConfig struct {
	Secret   string        `envconfig:"ILIRIA_JWT_SECRET" required:"true"`
	Issuer   string        `envconfig:"ILIRIA_JWT_ISSUER" required:"true"`
	Audience string        `envconfig:"ILIRIA_JWT_AUDIENCE" default:"authenticated"`
	Leeway   time.Duration `envconfig:"ILIRIA_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite    bool `envconfig:"ILIRIA_USE_SQLITE" default:"false"`
	AutoMigrate  bool `envconfig:"ILIRIA_AUTO_MIGRATE" default:"false"`
	DisableEmail bool `envconfig:"ILIRIA_DISABLE_EMAIL" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ILIRIA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ILIRIA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ILIRIA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"ILIRIA_GCS_BUCKET_NAME" default:"product-images"`
	PublicBaseURL string `envconfig:"ILIRIA_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	// Endpoint points the JSON API at an emulator; requests are then sent
	// without credentials.
	Endpoint string `envconfig:"ILIRIA_GCS_ENDPOINT"`
}

type MediaConfig struct {
	MaxUploadMB int `envconfig:"ILIRIA_MAX_UPLOAD_MB" default:"5"`
}

// MaxUploadBytes converts the configured limit to bytes.
func (m MediaConfig) MaxUploadBytes() int64 {
	if m.MaxUploadMB <= 0 {
		return 5 << 20
	}
	return int64(m.MaxUploadMB) << 20
}

type PubSubConfig struct {
	DomainTopic           string        `envconfig:"ILIRIA_PUBSUB_DOMAIN_TOPIC" default:"iliria-domain-events"`
	DomainSubscription    string        `envconfig:"ILIRIA_PUBSUB_DOMAIN_SUBSCRIPTION"`
	AnalyticsSubscription string        `envconfig:"ILIRIA_PUBSUB_ANALYTICS_SUBSCRIPTION"`
	MediaSubscription     string        `envconfig:"ILIRIA_PUBSUB_MEDIA_SUBSCRIPTION"`
	ProcessedTTL          time.Duration `envconfig:"ILIRIA_PUBSUB_PROCESSED_TTL" default:"168h"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"ILIRIA_BIGQUERY_DATASET" default:"iliria_analytics"`
	EventsTable string `envconfig:"ILIRIA_BIGQUERY_EVENTS_TABLE" default:"inventory_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ILIRIA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ILIRIA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ILIRIA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"ILIRIA_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"ILIRIA_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"ILIRIA_SENDGRID_FROM_NAME" default:"Iliria ERP"`
	BaseURL     string `envconfig:"ILIRIA_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
}

type OffersConfig struct {
	SendLimit      int           `envconfig:"ILIRIA_OFFERS_SEND_LIMIT" default:"20"`
	SendWindow     time.Duration `envconfig:"ILIRIA_OFFERS_SEND_WINDOW" default:"1h"`
	ListLimit      int           `envconfig:"ILIRIA_OFFERS_LIST_LIMIT" default:"50"`
	IdempotencyTTL time.Duration `envconfig:"ILIRIA_IDEMPOTENCY_TTL" default:"24h"`
	DashboardTTL   time.Duration `envconfig:"ILIRIA_DASHBOARD_CACHE_TTL" default:"30s"`
}

// UsageConfig holds plan quotas reported by the usage endpoint.
type UsageConfig struct {
	DBLimitBytes      int64 `envconfig:"ILIRIA_USAGE_DB_LIMIT_BYTES" default:"524288000"`
	StorageLimitBytes int64 `envconfig:"ILIRIA_USAGE_STORAGE_LIMIT_BYTES" default:"1073741824"`
	WarnPercent       int   `envconfig:"ILIRIA_USAGE_WARN_PERCENT" default:"65"`
	CriticalPercent   int   `envconfig:"ILIRIA_USAGE_CRITICAL_PERCENT" default:"85"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

type CronConfig struct {
	Tick                 time.Duration `envconfig:"ILIRIA_CRON_TICK" default:"5m"`
	OutboxRetentionEvery time.Duration `envconfig:"ILIRIA_CRON_OUTBOX_RETENTION_EVERY" default:"24h"`
	UsageAlertEvery      time.Duration `envconfig:"ILIRIA_CRON_USAGE_ALERT_EVERY" default:"1h"`
	OutboxRetentionDays  int           `envconfig:"ILIRIA_OUTBOX_RETENTION_DAYS" default:"30"`
}
