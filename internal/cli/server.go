package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/config"
	boltstore "einstein-dashboard/internal/infra/bolt"
	"einstein-dashboard/internal/infra/memory"
	redisinfra "einstein-dashboard/internal/infra/redis"
	transport "einstein-dashboard/internal/transport/http"
	"einstein-dashboard/internal/validate"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const sweepInterval = time.Minute

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stack holds the backing services the server and the check command share.
type stack struct {
	client  *api.Client
	redis   *redis.Client
	store   app.SessionStore
	catalog app.Catalog
	sweep   func()
	close   func()
}

func openStack(cfg config.Config) (*stack, error) {
	s := &stack{
		client: api.New(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 15*time.Second)),
		sweep:  func() {},
		close:  func() {},
	}

	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	switch cfg.SessionStore() {
	case config.StoreRedis:
		s.store = redisinfra.NewSessionStore(s.redis)
	case config.StoreBolt:
		path := cfg.Session.BoltPath
		if path == "" {
			path = "data/sessions.db"
		}
		store, err := boltstore.Open(path)
		if err != nil {
			s.shutdown()
			return nil, err
		}
		s.store = store
		s.sweep = func() {
			n, err := store.Sweep()
			if err != nil {
				log.Printf("sweep session file: %v", err)
				return
			}
			if n > 0 {
				log.Printf("expired %d sessions", n)
			}
		}
		s.close = func() {
			if err := store.Close(); err != nil {
				log.Printf("close session store: %v", err)
			}
		}
	default:
		store := memory.NewSessionStore()
		s.store = store
		s.sweep = func() {
			if n := store.Sweep(); n > 0 {
				log.Printf("expired %d sessions", n)
			}
		}
	}

	lookupTTL := config.TTLDuration(cfg.Lookups.TTL, 10*time.Minute)
	if s.redis != nil {
		s.catalog = redisinfra.NewLookupCache(s.redis, s.client, lookupTTL)
	} else {
		s.catalog = memory.NewLookupCache(s.client, lookupTTL)
	}
	return s, nil
}

func (s *stack) shutdown() {
	s.close()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer st.shutdown()

	v := validate.New()
	auth := app.NewAuthService(st.client, st.store, v,
		config.TTLDuration(cfg.Session.TTL, 8*time.Hour),
		config.TTLDuration(cfg.Session.RememberTTL, 30*24*time.Hour))
	workspaces := app.NewWorkspaces(app.Controllers{
		Backend:  st.client,
		Catalog:  st.catalog,
		Validate: v,
		Location: loc,
	}, config.TTLDuration(cfg.Session.WorkspaceIdle, 2*time.Hour))

	requestTimeout := config.TTLDuration(cfg.Server.Timeout, 30*time.Second)
	handler := transport.NewServer(auth, st.client, st.catalog, v, workspaces, transport.Options{
		CookieName:     cfg.Session.CookieName,
		CookieSecure:   cfg.Server.CookieSecure,
		AllowedOrigins: cfg.Server.CORSOrigins,
		SearchDebounce: config.TTLDuration(cfg.Listing.SearchDebounce, 0),
		RequestTimeout: requestTimeout,
	}).Routes()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := workspaces.Sweep(); n > 0 {
					log.Printf("dropped %d idle workspaces", n)
				}
				st.sweep()
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	go func() {
		log.Printf("starting dashboard on :%s (backend %s, %s sessions)", finalPort, cfg.API.BaseURL, cfg.SessionStore())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
