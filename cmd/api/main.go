package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/templstore/storefront/internal/admin"
	"github.com/templstore/storefront/internal/auth"
	"github.com/templstore/storefront/internal/cache"
	"github.com/templstore/storefront/internal/cart"
	"github.com/templstore/storefront/internal/catalog"
	"github.com/templstore/storefront/internal/common"
	"github.com/templstore/storefront/internal/config"
	"github.com/templstore/storefront/internal/health"
	"github.com/templstore/storefront/internal/invoice"
	"github.com/templstore/storefront/internal/lock"
	"github.com/templstore/storefront/internal/newsletter"
	"github.com/templstore/storefront/internal/obs"
	"github.com/templstore/storefront/internal/ratelimit"
	"github.com/templstore/storefront/internal/resilience"
	"github.com/templstore/storefront/internal/security"
	"github.com/templstore/storefront/internal/session"
	"github.com/templstore/storefront/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "storefront-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	breaker := resilience.NewBreaker(cfg.UpstreamBreakerMin, 0.5, cfg.UpstreamBreakerOpen).
		WithTarget("marketplace").
		WithLogger(logger)
	upstreamHTTP := resilience.HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.UpstreamTimeout,
		},
		Breaker:     breaker,
		MaxAttempts: cfg.UpstreamMaxAttempts,
		Timeout:     cfg.UpstreamTimeout,
	}
	up := upstream.New(cfg.UpstreamBaseURL, upstreamHTTP, logger)

	sessions := &session.Store{
		R:      redisClient,
		MaxTTL: cfg.SessionMaxTTL,
		OnExpire: func(rec session.Record) {
			if obs.SessionsExpiredTotal != nil {
				obs.SessionsExpiredTotal.Inc()
			}
			logger.Info().Str("user", rec.Username).Msg("session_expired")
		},
	}
	defer sessions.Close()

	validate := validator.New()
	authMiddleware := auth.Middleware{Sessions: sessions, SessionCookie: envOrDefault("SESSION_COOKIE_NAME", "sf_session")}
	authHandler := &auth.Handler{Up: up, Sessions: sessions, Validate: validate, Log: logger}

	catalogHandler := &catalog.Handler{
		Up:    up,
		Cache: cache.Cache{R: redisClient, TTL: cfg.CatalogCacheTTL},
		Log:   logger,
	}

	cartSvc := &cart.Service{
		R:      redisClient,
		Locker: lock.Locker{R: redisClient},
		TTL:    cfg.CartTTL,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, TaxBps: cfg.TaxRateBps, Currency: cfg.CurrencyCode}

	invoiceHandler := &invoice.Handler{
		Up:       up,
		Sessions: sessions,
		TaxBps:   cfg.TaxRateBps,
		Currency: cfg.CurrencyCode,
		Log:      logger,
	}
	newsletterHandler := &newsletter.Handler{Up: up, Validate: validate}
	adminHandler := &admin.Handler{Up: up, Sessions: sessions}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	authLimiter, err := ratelimit.New(redisClient, cfg.AuthRateWindow, cfg.AuthRateMax, "rl:auth")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	authRate := ratelimit.Handler{
		Limiter: authLimiter,
		Key:     common.ClientIP,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate_limiter_error") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:                envBool("SECURE_HEADERS_ENABLE", true),
		EnableHSTS:            envBool("SECURE_HSTS_ENABLE", false),
		HSTSMaxAge:            int(envFloat("SECURE_HSTS_MAX_AGE", 15552000)),
		HSTSIncludeSubdomains: envBool("SECURE_HSTS_INCLUDE_SUBDOMAINS", true),
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:         readinessChecker{redis: redisClient, up: up},
		RedisTimeout:    envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		UpstreamTimeout: envDurationMillis("HEALTH_READY_UPSTREAM_TIMEOUT_MS", 1000),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.Categories)
		v.Get("/templates", catalogHandler.List)
		v.Get("/templates/trending", catalogHandler.Trending)
		v.Get("/templates/{id}", catalogHandler.Detail)

		v.Route("/auth", func(a chi.Router) {
			a.Use(authRate.Middleware)
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.Post("/resend-verification", authHandler.ResendVerification)
			a.Get("/verify-email", authHandler.VerifyEmail)
			a.Post("/password/forgot", authHandler.ForgotPassword)
			a.Get("/password/reset/{token}", authHandler.CheckResetToken)
			a.Post("/password/reset", authHandler.ResetPassword)

			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Post("/logout", authHandler.Logout)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", cartHandler.Get)
			c.Get("/{id}/summary", cartHandler.Summary)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Patch("/{id}/items/{templateId}", cartHandler.UpdateItem)
				g.Delete("/{id}/items/{templateId}", cartHandler.RemoveItem)
				g.Delete("/{id}", cartHandler.Clear)
				g.Post("/{id}/coupon", cartHandler.ApplyCoupon)
				g.Delete("/{id}/coupon", cartHandler.RemoveCoupon)
			})
		})

		v.With(authMiddleware.RequireAuth).Get("/invoices/{purchaseId}/pdf", invoiceHandler.Download)

		v.Route("/newsletter", func(n chi.Router) {
			n.Get("/captcha", newsletterHandler.Captcha)
			n.Post("/subscribe", newsletterHandler.Subscribe)
			n.Post("/unsubscribe", newsletterHandler.Unsubscribe)
		})

		v.Route("/admin", func(a chi.Router) {
			a.Use(authMiddleware.RequireAuth)
			a.Use(authMiddleware.RequireRole(session.RoleAdmin))
			a.Get("/analytics", adminHandler.Analytics)
			a.Get("/sales", adminHandler.Sales)
			a.Get("/users", adminHandler.Users)
			a.Get("/wallet", adminHandler.Wallet)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	redis *redis.Client
	up    *upstream.Client
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) PingUpstream(ctx context.Context, timeout time.Duration) error {
	if c.up == nil {
		return errors.New("upstream not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.up.Ping(ctx)
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	return mux
}

func protectPprof(next http.Handler, user, pass string) http.Handler {
	if user == "" || pass == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallbackMS int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(fallbackMS) * time.Millisecond
}
