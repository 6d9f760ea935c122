package config

const (
	EnvPrefix = "NIKOS"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	DocStoreFirestore = "firestore"
	DocStoreMongo     = "mongo"
	DocStorePostgres  = "postgres"
	DocStoreSQLite    = "sqlite"
	DocStoreMemory    = "memory"

	ChangeFeedLocal = "local"
	ChangeFeedRedis = "redis"

	defaultSQLiteDSN = "file:nikos.db?cache=shared"
)

const (
	EnvAppEnv             = "NIKOS_APP_ENV"
	EnvPort               = "NIKOS_APP_PORT"
	EnvDocStoreDriver     = "NIKOS_DOCSTORE_DRIVER"
	EnvDocStoreChangeFeed = "NIKOS_DOCSTORE_CHANGE_FEED"
	EnvDBDSN              = "NIKOS_DB_DSN"
	EnvDBHost             = "NIKOS_DB_HOST"
	EnvDBUser             = "NIKOS_DB_USER"
	EnvDBName             = "NIKOS_DB_NAME"
	EnvMongoURI           = "NIKOS_MONGO_URI"
	EnvRedisURL           = "NIKOS_REDIS_URL"
	EnvJWTSecret          = "NIKOS_JWT_SECRET"
	EnvGCPProjectID       = "NIKOS_GCP_PROJECT_ID"
	EnvCheckoutAtomic     = "NIKOS_CHECKOUT_ATOMIC"
	EnvPubSubEventsTopic  = "NIKOS_PUBSUB_EVENTS_TOPIC"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
