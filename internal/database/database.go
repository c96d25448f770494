package database

import (
	"context"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"shop_back_end/internal/config"
	"shop_back_end/internal/store/mongostore"
)

// Connections holds the backing services. Redis, Scylla and Elastic are
// optional and stay nil when not configured.
type Connections struct {
	Mongo   *mongostore.Store
	Redis   *redis.Client
	Scylla  *gocql.Session
	Elastic *elasticsearch.Client
}

// ConnectDatabases dials every configured backend. Mongo is skipped when
// withMongo is false (in-memory store).
func ConnectDatabases(ctx context.Context, cfg config.Config, withMongo bool) (*Connections, error) {
	conns := &Connections{}

	if withMongo {
		mctx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout)
		defer cancel()
		mongo, err := mongostore.Connect(mctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		conns.Mongo = mongo
	}

	if cfg.RedisEnabled() {
		client, err := connectRedis(ctx, cfg)
		if err != nil {
			conns.Close(context.Background())
			return nil, err
		}
		conns.Redis = client
	} else {
		log.Warn("REDIS_HOST not set, revoked tokens are kept in process memory")
	}

	if cfg.ScyllaEnabled() {
		session, err := connectScylla(cfg)
		if err != nil {
			conns.Close(context.Background())
			return nil, err
		}
		conns.Scylla = session
	} else {
		log.Info("SCYLLA_HOSTS not set, audit trail goes to the application log")
	}

	if cfg.ElasticEnabled() {
		client, err := connectElastic(cfg)
		if err != nil {
			conns.Close(context.Background())
			return nil, err
		}
		conns.Elastic = client
	} else {
		log.Info("ELASTIC_URL not set, product search uses the document store")
	}

	return conns, nil
}

func (c *Connections) Close(ctx context.Context) {
	if c.Mongo != nil {
		if err := c.Mongo.Close(ctx); err != nil {
			log.WithError(err).Warn("closing mongodb")
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.WithError(err).Warn("closing redis")
		}
	}
	if c.Scylla != nil {
		c.Scylla.Close()
	}
}

func connectRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisHost,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connecting to redis")
	}
	log.WithField("addr", cfg.RedisHost).Info("connected to redis")
	return client, nil
}

func connectScylla(cfg config.Config) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.ScyllaHosts...)
	cluster.Keyspace = cfg.ScyllaKeyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.NumConns = 4
	cluster.ReconnectInterval = time.Second
	if cfg.ScyllaUsername != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.ScyllaUsername,
			Password: cfg.ScyllaPassword,
		}
	}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to scylla keyspace %s", cfg.ScyllaKeyspace)
	}
	log.WithField("keyspace", cfg.ScyllaKeyspace).Info("connected to scylla")
	return session, nil
}

func connectElastic(cfg config.Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ElasticURL},
		Username:  cfg.ElasticUser,
		Password:  cfg.ElasticPassword,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating elasticsearch client")
	}

	res, err := client.Info()
	if err != nil {
		return nil, errors.Wrap(err, "connecting to elasticsearch")
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.Errorf("elasticsearch info: %s", res.Status())
	}

	log.WithField("url", cfg.ElasticURL).Info("connected to elasticsearch")
	return client, nil
}

// PingFunc adapts a function to the health check interface.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checks returns a health check per connected backend.
func (c *Connections) Checks() map[string]PingFunc {
	checks := map[string]PingFunc{}
	if c.Mongo != nil {
		checks["mongodb"] = c.Mongo.Ping
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	if c.Scylla != nil {
		checks["scylla"] = func(ctx context.Context) error {
			return c.Scylla.Query("SELECT now() FROM system.local").WithContext(ctx).Exec()
		}
	}
	if c.Elastic != nil {
		checks["elasticsearch"] = func(ctx context.Context) error {
			res, err := c.Elastic.Ping(c.Elastic.Ping.WithContext(ctx))
			if err != nil {
				return err
			}
			defer res.Body.Close()
			if res.IsError() {
				return errors.Errorf("elasticsearch ping: %s", res.Status())
			}
			return nil
		}
	}
	return checks
}
