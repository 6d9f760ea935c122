package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"google.golang.org/api/option"
)

type Config struct {
	App           AppConfig
	DocStore      DocStoreConfig
	DB            DBConfig
	Mongo         MongoConfig
	Firestore     FirestoreConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Checkout      CheckoutConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DocStore.validate(); err != nil {
		return nil, err
	}
	if cfg.DocStore.UsesSQL() {
		if err := cfg.DB.ensureDSN(cfg.DocStore.Driver); err != nil {
			return nil, err
		}
	}
	if cfg.DocStore.Driver == DocStoreMongo && strings.TrimSpace(cfg.Mongo.URI) == "" {
		return nil, fmt.Errorf("%s is required when %s=%s", EnvMongoURI, EnvDocStoreDriver, DocStoreMongo)
	}
	if cfg.DocStore.Driver == DocStoreFirestore && strings.TrimSpace(cfg.GCP.ProjectID) == "" {
		return nil, fmt.Errorf("%s is required when %s=%s", EnvGCPProjectID, EnvDocStoreDriver, DocStoreFirestore)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NIKOS_APP_ENV" required:"true"`
	Port         string `envconfig:"NIKOS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NIKOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NIKOS_LOG_WARN_STACK" default:"false"`
	// LogFormat is "json" or "console".
	LogFormat string `envconfig:"NIKOS_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "prod")
}

// DocStoreConfig selects the backend holding productos, carritos, historial and usuarios.
type DocStoreConfig struct {
	Driver string `envconfig:"NIKOS_DOCSTORE_DRIVER" default:"firestore"`
	// ChangeFeed picks how SQL and memory backends fan out writes to watchers: "local" or "redis".
	ChangeFeed string `envconfig:"NIKOS_DOCSTORE_CHANGE_FEED" default:"local"`
}

// UsesSQL reports whether the document store is backed by gorm.
func (d DocStoreConfig) UsesSQL() bool {
	return d.Driver == DocStorePostgres || d.Driver == DocStoreSQLite
}

func (d *DocStoreConfig) validate() error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	switch d.Driver {
	case DocStoreFirestore, DocStoreMongo, DocStorePostgres, DocStoreSQLite, DocStoreMemory:
	default:
		return fmt.Errorf("unsupported %s %q", EnvDocStoreDriver, d.Driver)
	}
	d.ChangeFeed = strings.ToLower(strings.TrimSpace(d.ChangeFeed))
	if d.ChangeFeed != ChangeFeedLocal && d.ChangeFeed != ChangeFeedRedis {
		return fmt.Errorf("unsupported %s %q", EnvDocStoreChangeFeed, d.ChangeFeed)
	}
	return nil
}

type DBConfig struct {
	DSN string `envconfig:"NIKOS_DB_DSN"`

	Host     string `envconfig:"NIKOS_DB_HOST"`
	Port     int    `envconfig:"NIKOS_DB_PORT" default:"5432"`
	User     string `envconfig:"NIKOS_DB_USER"`
	Password string `envconfig:"NIKOS_DB_PASSWORD"`
	Name     string `envconfig:"NIKOS_DB_NAME"`
	SSLMode  string `envconfig:"NIKOS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NIKOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NIKOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NIKOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NIKOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this as warnings; zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"NIKOS_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type MongoConfig struct {
	URI      string        `envconfig:"NIKOS_MONGO_URI"`
	Database string        `envconfig:"NIKOS_MONGO_DATABASE" default:"nikos"`
	Timeout  time.Duration `envconfig:"NIKOS_MONGO_TIMEOUT" default:"10s"`
}

type FirestoreConfig struct {
	DatabaseID string `envconfig:"NIKOS_FIRESTORE_DATABASE_ID" default:"(default)"`
	// EmulatorHost is exported as FIRESTORE_EMULATOR_HOST for the client library when set.
	EmulatorHost string `envconfig:"NIKOS_FIRESTORE_EMULATOR_HOST"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NIKOS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NIKOS_REDIS_ADDR"`
	Password     string        `envconfig:"NIKOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"NIKOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NIKOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NIKOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NIKOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NIKOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NIKOS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"NIKOS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"NIKOS_JWT_ISSUER" default:"nikos"`
	ExpirationMinutes      int    `envconfig:"NIKOS_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"NIKOS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"NIKOS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"NIKOS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"NIKOS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"NIKOS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"NIKOS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"NIKOS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"NIKOS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"NIKOS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"NIKOS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"NIKOS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"NIKOS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"NIKOS_AUTO_MIGRATE" default:"false"`
}

type CheckoutConfig struct {
	// Atomic runs the stock decrements, order write and cart clear as one unit when the store supports it.
	Atomic bool `envconfig:"NIKOS_CHECKOUT_ATOMIC" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"NIKOS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"NIKOS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"NIKOS_GOOGLE_APPLICATION_CREDENTIALS"`
}

// ClientOptions picks inline JSON credentials over a credentials file. With
// neither set the Google clients fall back to application default credentials.
func (g GCPConfig) ClientOptions() []option.ClientOption {
	if creds := strings.TrimSpace(g.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(g.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

type PubSubConfig struct {
	// EventsTopic receives order.created and rating.submitted; empty disables forwarding.
	EventsTopic string `envconfig:"NIKOS_PUBSUB_EVENTS_TOPIC"`
	// EmulatorHost is exported as PUBSUB_EMULATOR_HOST. Against the emulator a
	// missing events topic is created instead of failing boot.
	EmulatorHost string `envconfig:"NIKOS_PUBSUB_EMULATOR_HOST"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"NIKOS_CORS_ALLOWED_ORIGINS" default:"http://localhost:8081,http://localhost:19006"`
}

func (db *DBConfig) ensureDSN(driver string) error {
	if db.DSN != "" {
		return nil
	}
	if driver == DocStoreSQLite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range splitDBEnvVars {
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
