package config

const (
	EnvPrefix = "FACTORING"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv             = "FACTORING_APP_ENV"
	EnvPort               = "FACTORING_APP_PORT"
	EnvDBDSN              = "FACTORING_DB_DSN"
	EnvDBHost             = "FACTORING_DB_HOST"
	EnvDBUser             = "FACTORING_DB_USER"
	EnvDBName             = "FACTORING_DB_NAME"
	EnvRedisURL           = "FACTORING_REDIS_URL"
	EnvJWTSecret          = "FACTORING_JWT_SECRET"
	EnvJWTIssuer          = "FACTORING_JWT_ISSUER"
	EnvGCSBucket          = "FACTORING_GCS_BUCKET_NAME"
	EnvAllowForceSign     = "FACTORING_ALLOW_FORCE_SIGN"
	EnvBackofficeEmails   = "FACTORING_BACKOFFICE_EMAILS"
	EnvPermissionUpdate   = "FACTORING_PERMISSION_UPDATE"
	EnvPermissionDelete   = "FACTORING_PERMISSION_DELETE"
	EnvPermissiveFunding  = "FACTORING_LIFECYCLE_PERMISSIVE_FUNDING"
	EnvPandaDocViewerURL  = "FACTORING_PANDADOC_VIEWER_URL_TEMPLATE"
	EnvNotificationTopic  = "FACTORING_PUBSUB_NOTIFICATION_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
