package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/grantd/internal/cache"
	"github.com/dropDatabas3/grantd/internal/config"
	httpx "github.com/dropDatabas3/grantd/internal/http"
	"github.com/dropDatabas3/grantd/internal/http/handlers"
	"github.com/dropDatabas3/grantd/internal/http/router"
	"github.com/dropDatabas3/grantd/internal/metrics"
	"github.com/dropDatabas3/grantd/internal/oauth"
	"github.com/dropDatabas3/grantd/internal/oauth/scope"
	"github.com/dropDatabas3/grantd/internal/observability/logger"
	"github.com/dropDatabas3/grantd/internal/security/secret"
	"github.com/dropDatabas3/grantd/internal/store/core"
	"github.com/dropDatabas3/grantd/internal/store/kv"
	"github.com/dropDatabas3/grantd/internal/store/memory"
	"github.com/dropDatabas3/grantd/internal/store/pg"
)

func main() {
	// .env opcional: en dev alcanza con variables del sistema
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:           "grantd",
		Short:         "grantd - authorization server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "ruta al YAML de configuración")

	root.AddCommand(newServeCmd(&cfgPath))
	root.AddCommand(newSeedCmd(&cfgPath))
	root.AddCommand(newHashSecretCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		c := config.Default()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	}
	return config.Load(path)
}

// buildStore arma el CredentialStore según el driver configurado.
// Devuelve además un Pinger para readiness y el cleanup de recursos.
func buildStore(ctx context.Context, cfg *config.Config) (core.CredentialStore, handlers.Pinger, func(), error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memory.New(), nil, func() {}, nil

	case "postgres":
		st, err := pg.New(ctx, cfg.Storage.Postgres.DSN, pg.Config{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MinIdleConns:    cfg.Storage.Postgres.MinIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, nil, nil, err
		}
		return st, st, st.Close, nil

	case "redis":
		kvc, err := cache.New(cache.Config{
			Driver:   "redis",
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		st := kv.New(kvc)
		return st, pingerFunc(kvc.Ping), func() { _ = kvc.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("storage driver desconocido: %q", cfg.Storage.Driver)
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func engineConfig(cfg *config.Config) oauth.Config {
	return oauth.Config{
		HashRounds:      cfg.OAuth.HashRounds,
		HashKeyLen:      cfg.OAuth.HashKeyLen,
		HashDigest:      cfg.OAuth.HashDigest,
		TokenTTL:        cfg.OAuth.TokenTTL.Std(),
		ExchangeTTL:     cfg.OAuth.ExchangeTTL.Std(),
		CodeTTL:         cfg.OAuth.CodeTTL.Std(),
		ClientCacheTTL:  cfg.OAuth.ClientCacheTTL.Std(),
		ClientCacheSize: cfg.OAuth.ClientCacheSize,
	}
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servicio HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.App.LogLevel,
				ServiceName: "grantd",
			})
			defer func() { _ = logger.Sync() }()
			log := logger.Named("main")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, pinger, cleanup, err := buildStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("store: %w", err)
			}
			defer cleanup()

			engine, err := oauth.New(store, engineConfig(cfg))
			if err != nil {
				return fmt.Errorf("engine: %w", err)
			}

			metricsHandler := metrics.Register(nil)

			deps := router.RouterDeps{
				Engine: engine,
				Pinger: pinger,
			}
			if cfg.Server.MetricsAddr == "" {
				// Sin listener dedicado, /metrics va en el mismo router.
				deps.Metrics = metricsHandler
			}

			srv := httpx.NewServer(cfg.Server.Addr, router.New(deps))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.ListenAndServe)

			var metricsSrv *httpx.Server
			if cfg.Server.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metricsHandler)
				metricsSrv = httpx.NewServer(cfg.Server.MetricsAddr, mux)
				g.Go(metricsSrv.ListenAndServe)
			}

			g.Go(func() error {
				<-gctx.Done()
				timeout, _ := time.ParseDuration(cfg.Server.ShutdownTimeout)
				if timeout <= 0 {
					timeout = 10 * time.Second
				}
				sctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				if metricsSrv != nil {
					_ = metricsSrv.Shutdown(sctx)
				}
				return srv.Shutdown(sctx)
			})

			log.Info("grantd started")
			return g.Wait()
		},
	}
}

func newSeedCmd(cfgPath *string) *cobra.Command {
	var (
		clientName   string
		clientSecret string
		redirectURI  string
		clientScopes []string
		username     string
		password     string
		ownerScopes  []string
		ownerAny     bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Crea un client y/o un owner de prueba en el store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "grantd"})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, _, cleanup, err := buildStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			prov, ok := store.(core.Provisioner)
			if !ok {
				return fmt.Errorf("el driver %q no soporta provisioning", cfg.Storage.Driver)
			}

			params := secret.Params{Rounds: cfg.OAuth.HashRounds, KeyLen: cfg.OAuth.HashKeyLen}
			if digest, derr := secret.DigestByName(cfg.OAuth.HashDigest); derr == nil {
				params.Digest = digest
			}
			if params.Rounds <= 0 {
				params.Rounds = secret.Default.Rounds
			}
			if params.KeyLen <= 0 {
				params.KeyLen = secret.Default.KeyLen
			}
			if params.Digest == nil {
				params.Digest = secret.Default.Digest
			}

			if clientName != "" {
				cl := &core.Client{
					ID:        uuid.NewString(),
					Name:      clientName,
					Scopes:    clientScopes,
					CreatedAt: time.Now().UTC(),
				}
				if redirectURI != "" {
					cl.RedirectURI = &redirectURI
				}
				if clientSecret != "" {
					salt := uuid.NewString()
					hash := secret.Hash(params, clientSecret, salt)
					cl.SecretSalt = salt
					cl.SecretHash = &hash
				}
				if err := prov.CreateClient(ctx, cl); err != nil {
					return fmt.Errorf("create client: %w", err)
				}
				fmt.Printf("client_id=%s\n", cl.ID)
			}

			if username != "" {
				salt := uuid.NewString()
				o := &core.Owner{
					ID:           uuid.NewString(),
					Username:     username,
					Salt:         salt,
					PasswordHash: secret.Hash(params, password, salt),
					CreatedAt:    time.Now().UTC(),
				}
				if err := prov.CreateOwner(ctx, o); err != nil {
					return fmt.Errorf("create owner: %w", err)
				}
				set := scope.Any
				if !ownerAny {
					set, err = scope.ParseSet(ownerScopes)
					if err != nil {
						return fmt.Errorf("owner scopes: %w", err)
					}
				}
				if err := prov.SetOwnerScopes(ctx, o.ID, set); err != nil {
					return fmt.Errorf("set owner scopes: %w", err)
				}
				fmt.Printf("owner_id=%s\n", o.ID)
			}

			if clientName == "" && username == "" {
				return fmt.Errorf("nada que crear: usá --client-name y/o --username")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clientName, "client-name", "", "nombre del client a crear")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "secret del client (vacío => client público)")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "redirect URI registrada del client")
	cmd.Flags().StringSliceVar(&clientScopes, "client-scope", nil, "scope permitido para el client (repetible)")
	cmd.Flags().StringVar(&username, "username", "", "username del owner a crear")
	cmd.Flags().StringVar(&password, "password", "", "password del owner")
	cmd.Flags().StringSliceVar(&ownerScopes, "owner-scope", nil, "scope permitido para el owner (repetible)")
	cmd.Flags().BoolVar(&ownerAny, "owner-any-scope", false, "el owner admite cualquier scope")
	return cmd
}

func newHashSecretCmd() *cobra.Command {
	var (
		salt   string
		rounds int
		keyLen int
		digest string
	)
	cmd := &cobra.Command{
		Use:   "hash-secret <plain>",
		Short: "Calcula el hash PBKDF2 de un secret (para seeds manuales)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := secret.DigestByName(digest)
			if err != nil {
				return err
			}
			p := secret.Params{Rounds: rounds, KeyLen: keyLen, Digest: d}
			if salt == "" {
				salt = uuid.NewString()
			}
			fmt.Printf("salt=%s\nhash=%s\n", salt, secret.Hash(p, args[0], salt))
			return nil
		},
	}
	cmd.Flags().StringVar(&salt, "salt", "", "salt a usar (default: uuid nuevo)")
	cmd.Flags().IntVar(&rounds, "rounds", secret.Default.Rounds, "rondas PBKDF2")
	cmd.Flags().IntVar(&keyLen, "key-len", secret.Default.KeyLen, "largo de clave derivada")
	cmd.Flags().StringVar(&digest, "digest", "sha256", "digest: sha1 | sha256 | sha512")
	return cmd
}
