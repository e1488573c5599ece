package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/expopass/expopass-auth/pkg/audit"
	"github.com/expopass/expopass-auth/pkg/authn"
	authnapi "github.com/expopass/expopass-auth/pkg/authn/api"
	"github.com/expopass/expopass-auth/pkg/credential"
	"github.com/expopass/expopass-auth/pkg/lockout"
	"github.com/expopass/expopass-auth/pkg/obs"
	"github.com/expopass/expopass-auth/pkg/password"
	"github.com/expopass/expopass-auth/pkg/ratelimit"
	"github.com/expopass/expopass-auth/pkg/sessions"
	"github.com/expopass/expopass-auth/pkg/token"
)

type DbConfig struct {
	Host     string `env:"AUTH_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"AUTH_PG_PORT" env-default:"5432"`
	Database string `env:"AUTH_PG_DATABASE" env-default:"expopass"`
	User     string `env:"AUTH_PG_USER" env-default:"expopass"`
	Password string `env:"AUTH_PG_PASSWORD" env-default:"pwd"`
}

func (d DbConfig) toDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Database)
}

type JwtConfig struct {
	Secret             string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer             string        `env:"JWT_ISSUER" env-default:"expopass-auth"`
	Audience           string        `env:"JWT_AUDIENCE" env-default:"expopass"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" env-default:"168h"`
	CookieHttpOnly     bool          `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure       bool          `env:"COOKIE_SECURE" env-default:"true"`
}

type LoginConfig struct {
	MaxFailedAttempts          int           `env:"LOGIN_MAX_FAILED_ATTEMPTS" env-default:"5"`
	LockoutDuration            time.Duration `env:"LOGIN_LOCKOUT_DURATION" env-default:"15m"`
	LoginTimeout               time.Duration `env:"LOGIN_TIMEOUT" env-default:"10s"`
	MaxConcurrentVerifications int           `env:"LOGIN_MAX_CONCURRENT_VERIFICATIONS" env-default:"8"`
	RateLimitCapacity          int           `env:"LOGIN_RATE_LIMIT_CAPACITY" env-default:"10"`
	RateLimitPerMinute         float64       `env:"LOGIN_RATE_LIMIT_PER_MINUTE" env-default:"10"`
}

type ServerConfig struct {
	Host            string        `env:"AUTH_HOST" env-default:"0.0.0.0"`
	Port            uint16        `env:"AUTH_PORT" env-default:"4000"`
	SessionCleanup  time.Duration `env:"SESSION_CLEANUP_INTERVAL" env-default:"1h"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Config struct {
	DbConfig     DbConfig
	JwtConfig    JwtConfig
	LoginConfig  LoginConfig
	ServerConfig ServerConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file loaded, using environment", "err", err)
	}

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(-1)
	}

	pool, err := pgxpool.New(context.Background(), config.DbConfig.toDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", config.DbConfig.Database,
			"host", config.DbConfig.Host, "port", config.DbConfig.Port)
		os.Exit(-1)
	}
	defer pool.Close()

	// Repositories
	credRepo := credential.NewPostgresRepository(pool)
	sessionRepo := sessions.NewPostgresRepository(pool)
	recorder := audit.NewPostgresRecorder(pool)

	// Services
	tokenService := token.NewService(
		config.JwtConfig.Secret,
		config.JwtConfig.Issuer,
		config.JwtConfig.Audience,
		token.WithAccessExpiry(config.JwtConfig.AccessTokenExpiry),
		token.WithRefreshExpiry(config.JwtConfig.RefreshTokenExpiry),
	)
	sessionService := sessions.NewService(sessionRepo,
		sessions.WithCleanupInterval(config.ServerConfig.SessionCleanup))

	authConfig := authn.Config{
		Lockout: lockout.Policy{
			MaxFailedAttempts: config.LoginConfig.MaxFailedAttempts,
			LockoutDuration:   config.LoginConfig.LockoutDuration,
		},
		LoginTimeout:               config.LoginConfig.LoginTimeout,
		MaxConcurrentVerifications: config.LoginConfig.MaxConcurrentVerifications,
	}
	if err := authConfig.Validate(); err != nil {
		slog.Error("Invalid login configuration", "err", err)
		os.Exit(-1)
	}

	obs.Init()
	authService := authn.NewService(
		credRepo,
		password.NewBcryptHasher(),
		tokenService,
		sessionService,
		recorder,
		authn.WithConfig(authConfig),
		authn.WithObserver(obs.ObserveLogin),
	)

	cookieSetter := token.NewCookieSetter(config.JwtConfig.CookieHttpOnly, config.JwtConfig.CookieSecure)
	authHandle := authnapi.NewHandle(authService, cookieSetter)

	loginThrottle := ratelimit.NewMiddleware(ratelimit.Config{
		Capacity:   config.LoginConfig.RateLimitCapacity,
		RefillRate: config.LoginConfig.RateLimitPerMinute / 60.0,
		BucketTTL:  time.Hour,
	})

	tokenAuth := jwtauth.New("HS256", []byte(config.JwtConfig.Secret), nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(obs.Instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(loginThrottle.Handler)
			authHandle.Routes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(tokenAuth))
			r.Use(jwtauth.Authenticator(tokenAuth))
			authHandle.AuthenticatedRoutes(r)
		})
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessionService.RunCleanup(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.ServerConfig.Host, config.ServerConfig.Port),
		Handler: r,
	}

	go func() {
		slog.Info("Starting auth server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerConfig.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "err", err)
	}
}
