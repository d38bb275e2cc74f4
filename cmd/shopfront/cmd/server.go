package cmd

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mharding/shopfront/api"
	"github.com/mharding/shopfront/audit"
	"github.com/mharding/shopfront/crypto"
	"github.com/mharding/shopfront/mfa"
	"github.com/mharding/shopfront/session"
	"github.com/mharding/shopfront/shop"
	"github.com/mharding/shopfront/storage"
	bboltstorage "github.com/mharding/shopfront/storage/bbolt"
	memorystorage "github.com/mharding/shopfront/storage/memory"
	postgresstorage "github.com/mharding/shopfront/storage/postgres"
)

var (
	port            int
	dataDir         string
	tlsCert         string
	tlsKey          string
	storageBackend  string
	sessionBackend  string
	idleTimeout     time.Duration
	absoluteTimeout time.Duration
	trustedProxies  []string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the storefront server",
	Long: `Starts the HTTP server. Configuration that carries secrets comes from
the environment:

  SHOPFRONT_ENCRYPTION_KEY  base64 32-byte key for customer field encryption (required)
  SHOPFRONT_SESSION_KEY     base64 32-byte key for the persistent session store
  SHOPFRONT_JWT_SECRET      enables the /auth/token endpoint when set
  SHOPFRONT_POSTGRES_DSN    connection string for --storage postgres
  SHOPFRONT_REDIS_ADDR      address for --sessions redis`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		encodedKey := os.Getenv("SHOPFRONT_ENCRYPTION_KEY")
		if encodedKey == "" {
			return errors.New("SHOPFRONT_ENCRYPTION_KEY is not set")
		}
		cipher, err := crypto.NewFieldCipher(encodedKey)
		if err != nil {
			return fmt.Errorf("invalid SHOPFRONT_ENCRYPTION_KEY: %w", err)
		}
		defer cipher.Destroy()

		repo, cleanup, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		store := shop.NewStore(repo, crypto.NewFieldCodec(cipher), audit.NewRecorder(logger), logger)

		sessions, err := openSessionStore(repo)
		if err != nil {
			return err
		}

		opts := []api.Option{
			api.WithLogger(logger),
			api.WithSessionStore(sessions),
			api.WithSessionMonitor(session.NewMonitor(idleTimeout, absoluteTimeout)),
		}
		if secret := os.Getenv("SHOPFRONT_JWT_SECRET"); secret != "" {
			opts = append(opts, api.WithJWT([]byte(secret), time.Hour))
		}
		if len(trustedProxies) > 0 {
			prefixes, err := parsePrefixes(trustedProxies)
			if err != nil {
				return err
			}
			opts = append(opts, api.WithTrustedProxies(prefixes))
		}

		a := api.New(store, mfa.NewManager("Shopfront"), opts...)

		// The memory and persistent session backends have no native TTL;
		// sweep out sessions past their absolute lifetime (Redis expires
		// its keys itself).
		if purgeable, ok := sessions.(interface{ PurgeOlderThan(time.Time) }); ok {
			stopPurge := make(chan struct{})
			defer close(stopPurge)
			go func() {
				ticker := time.NewTicker(10 * time.Minute)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						purgeable.PurgeOlderThan(time.Now().UTC().Add(-absoluteTimeout))
					case <-stopPurge:
						return
					}
				}
			}()
		}

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		useTLS := tlsCert != "" && tlsKey != ""
		if useTLS {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if useTLS {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (storage: %s, sessions: %s)...\n", port, storageBackend, sessionBackend)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func openRepository(ctx context.Context) (storage.Repository, func(), error) {
	switch storageBackend {
	case "bbolt":
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(dataDir+"/shopfront.db", nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case "postgres":
		dsn := os.Getenv("SHOPFRONT_POSTGRES_DSN")
		if dsn == "" {
			return nil, nil, errors.New("SHOPFRONT_POSTGRES_DSN is not set")
		}
		repo, err := postgresstorage.NewRepositoryFromDSN(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return repo, repo.Close, nil
	case "memory":
		return memorystorage.NewRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", storageBackend)
	}
}

func openSessionStore(repo storage.Repository) (session.Store, error) {
	switch sessionBackend {
	case "memory":
		return session.NewMemoryStore(), nil
	case "persistent":
		encoded := os.Getenv("SHOPFRONT_SESSION_KEY")
		if encoded == "" {
			return nil, errors.New("SHOPFRONT_SESSION_KEY is not set")
		}
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid SHOPFRONT_SESSION_KEY: %w", err)
		}
		return session.NewPersistentStore(repo, key)
	case "redis":
		addr := os.Getenv("SHOPFRONT_REDIS_ADDR")
		if addr == "" {
			return nil, errors.New("SHOPFRONT_REDIS_ADDR is not set")
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		return session.NewRedisStore(client, absoluteTimeout), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", sessionBackend)
	}
}

func parsePrefixes(cidrs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		p, err := netip.ParsePrefix(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %q: %w", raw, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().StringVar(&storageBackend, "storage", "bbolt", "Storage backend: bbolt, postgres or memory")
	serverCmd.Flags().StringVar(&sessionBackend, "sessions", "memory", "Session backend: memory, persistent or redis")
	serverCmd.Flags().DurationVar(&idleTimeout, "session-idle-timeout", session.DefaultIdleTimeout, "Idle timeout for cookie sessions")
	serverCmd.Flags().DurationVar(&absoluteTimeout, "session-absolute-timeout", session.DefaultAbsoluteTimeout, "Absolute lifetime for cookie sessions")
	serverCmd.Flags().StringSliceVar(&trustedProxies, "trusted-proxy", nil, "CIDR range whose proxy headers are trusted (repeatable)")
}
