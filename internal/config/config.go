package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config is read once at startup and passed explicitly to every component.
type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	APIPrefix string `envconfig:"API_PREFIX" default:"/api"`
	GinMode   string `envconfig:"GIN_MODE" default:"release"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	MongoURI      string        `envconfig:"MONGO_URI" default:"mongodb://localhost:27017/?replicaSet=rs0"`
	MongoDatabase string        `envconfig:"MONGO_DATABASE" default:"shop"`
	MongoTimeout  time.Duration `envconfig:"MONGO_TIMEOUT" default:"10s"`

	RedisHost     string `envconfig:"REDIS_HOST"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	ScyllaHosts    []string `envconfig:"SCYLLA_HOSTS"`
	ScyllaKeyspace string   `envconfig:"SCYLLA_KEYSPACE" default:"shop_audit"`
	ScyllaUsername string   `envconfig:"SCYLLA_USERNAME"`
	ScyllaPassword string   `envconfig:"SCYLLA_PASSWORD"`

	ElasticURL      string `envconfig:"ELASTIC_URL"`
	ElasticUser     string `envconfig:"ELASTIC_USER"`
	ElasticPassword string `envconfig:"ELASTIC_PASSWORD"`
	ElasticIndex    string `envconfig:"ELASTIC_INDEX" default:"products"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			return Config{}, errors.Wrapf(err, "reading %s", envFile)
		}
		log.WithField("file", envFile).Debug("no env file, using process environment")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "loading configuration")
	}
	if !strings.HasPrefix(cfg.APIPrefix, "/") {
		cfg.APIPrefix = "/" + cfg.APIPrefix
	}
	cfg.APIPrefix = strings.TrimSuffix(cfg.APIPrefix, "/")
	return cfg, nil
}

func (c Config) RedisEnabled() bool   { return c.RedisHost != "" }
func (c Config) ScyllaEnabled() bool  { return len(c.ScyllaHosts) > 0 }
func (c Config) ElasticEnabled() bool { return c.ElasticURL != "" }

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c Config) ConfigureLogging() {
	if strings.EqualFold(c.LogFormat, "text") {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
