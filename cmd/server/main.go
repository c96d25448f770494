package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"shop_back_end/internal/audit"
	"shop_back_end/internal/auth"
	"shop_back_end/internal/cache"
	"shop_back_end/internal/config"
	"shop_back_end/internal/database"
	"shop_back_end/internal/routes"
	"shop_back_end/internal/services"
	"shop_back_end/internal/store"
	"shop_back_end/internal/store/memstore"
)

const (
	storeMongo  = "mongo"
	storeMemory = "memory"
)

func main() {
	app := &cli.App{
		Name:  "shop",
		Usage: "e-commerce REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "optional dotenv file loaded before the environment"},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "store", Value: storeMongo, Usage: "document store: mongo or memory"},
				},
				Action: serve,
			},
			{
				Name:  "create-admin",
				Usage: "create an Admin account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
				},
				Action: createAdmin,
			},
			{
				Name:   "ensure-indexes",
				Usage:  "create MongoDB indexes and the audit table",
				Action: ensureIndexes,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("shop exited")
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return config.Config{}, err
	}
	cfg.ConfigureLogging()
	gin.SetMode(cfg.GinMode)
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	storeKind := c.String("store")
	if storeKind != storeMongo && storeKind != storeMemory {
		return errors.Errorf("unknown store %q", storeKind)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conns, err := database.ConnectDatabases(ctx, cfg, storeKind == storeMongo)
	if err != nil {
		return err
	}
	defer conns.Close(context.Background())

	var st store.Store = conns.Mongo
	if storeKind == storeMemory {
		log.Warn("using the in-memory store, data is lost on restart")
		st = memstore.New()
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if conns.Redis != nil {
		revoker = cache.NewTokenRevoker(conns.Redis)
	}

	var (
		recorder audit.Recorder = audit.LogSink{}
		reader   audit.Reader
	)
	switch {
	case conns.Scylla != nil:
		sink := audit.NewScyllaSink(conns.Scylla)
		recorder, reader = audit.Async{Next: sink}, sink
	case storeKind == storeMemory:
		sink := audit.NewMemorySink(audit.MaxLimit)
		recorder, reader = sink, sink
	}

	var index services.ProductIndex
	if conns.Elastic != nil {
		index = services.NewElasticIndex(conns.Elastic, cfg.ElasticIndex)
	}

	carts := services.NewCartService(st)
	health := map[string]routes.Pinger{}
	for name, check := range conns.Checks() {
		health[name] = check
	}
	if storeKind == storeMemory {
		health["store"] = st
	}

	router := routes.NewRouter(routes.Options{Prefix: cfg.APIPrefix, CORSOrigins: cfg.CORSOrigins}, routes.Dependencies{
		Issuer:        issuer,
		Revoker:       revoker,
		Accounts:      services.NewAccountService(st, issuer, revoker),
		Catalog:       services.NewCatalogService(st, index),
		Carts:         carts,
		Orders:        services.NewOrderService(st, carts),
		AuditRecorder: recorder,
		AuditReader:   reader,
		Health:        health,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "prefix": cfg.APIPrefix, "store": storeKind}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down http server")
	}
	return nil
}

func createAdmin(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	conns, err := database.ConnectDatabases(c.Context, cfg, true)
	if err != nil {
		return err
	}
	defer conns.Close(context.Background())

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	accounts := services.NewAccountService(conns.Mongo, issuer, auth.NewMemoryRevoker())
	admin, err := accounts.CreateAdmin(c.Context, c.String("username"), c.String("email"), c.String("password"))
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": admin.ID.Hex(), "email": admin.Email}).Info("admin created")
	return nil
}

func ensureIndexes(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	conns, err := database.ConnectDatabases(c.Context, cfg, true)
	if err != nil {
		return err
	}
	defer conns.Close(context.Background())

	if err := conns.Mongo.EnsureIndexes(c.Context); err != nil {
		return err
	}
	log.Info("mongodb indexes ensured")

	if conns.Scylla != nil {
		if err := audit.NewScyllaSink(conns.Scylla).Migrate(c.Context); err != nil {
			return err
		}
		log.Info("audit table ensured")
	}
	return nil
}
