package config

const (
	EnvPrefix = "ILIRIA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "ILIRIA_APP_ENV"
	EnvPort        = "ILIRIA_APP_PORT"
	EnvDBDSN       = "ILIRIA_DB_DSN"
	EnvDBHost      = "ILIRIA_DB_HOST"
	EnvDBUser      = "ILIRIA_DB_USER"
	EnvDBName      = "ILIRIA_DB_NAME"
	EnvDBPassword  = "ILIRIA_DB_PASSWORD"
	EnvRedisURL    = "ILIRIA_REDIS_URL"
	EnvJWTSecret   = "ILIRIA_JWT_SECRET"
	EnvJWTIssuer   = "ILIRIA_JWT_ISSUER"
	EnvGCPProject  = "ILIRIA_GCP_PROJECT_ID"
	EnvGCSBucket   = "ILIRIA_GCS_BUCKET_NAME"
	EnvDomainTopic = "ILIRIA_PUBSUB_DOMAIN_TOPIC"
	EnvUsageDBMax  = "ILIRIA_USAGE_DB_LIMIT_BYTES"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
