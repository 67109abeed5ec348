package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/owaiken/gateway/internal/billing"
	"github.com/owaiken/gateway/internal/config"
	"github.com/owaiken/gateway/internal/db"
	"github.com/owaiken/gateway/internal/forwarder"
	"github.com/owaiken/gateway/internal/gate"
	"github.com/owaiken/gateway/internal/http/api/front"
	handlers "github.com/owaiken/gateway/internal/http/api/front/handlers"
	"github.com/owaiken/gateway/internal/http/api/webhooks"
	"github.com/owaiken/gateway/internal/identity"
	"github.com/owaiken/gateway/internal/ratelimit"
	"github.com/owaiken/gateway/internal/secrets"
	"github.com/owaiken/gateway/internal/settings"
	"github.com/owaiken/gateway/internal/store"
	"github.com/owaiken/gateway/internal/tier"
	"github.com/owaiken/gateway/internal/usage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Settings is the fully loaded configuration needed to serve requests.
type Settings struct {
	Server    config.ServerConfig
	Identity  config.IdentityConfig
	Upstream  config.UpstreamConfig
	Billing   config.BillingConfig
	RateLimit config.RateLimitConfig
	Tiers     *tier.Table
}

// LoadSettings loads every config section from configPath and the environment.
func LoadSettings(configPath string) (Settings, error) {
	var out Settings
	var err error
	if out.Server, err = config.LoadServerConfig(configPath); err != nil {
		return Settings{}, err
	}
	if out.Identity, err = config.LoadIdentityConfig(configPath); err != nil {
		return Settings{}, err
	}
	if out.Upstream, err = config.LoadUpstreamConfig(configPath); err != nil {
		return Settings{}, err
	}
	if out.Billing, err = config.LoadBillingConfig(configPath); err != nil {
		return Settings{}, err
	}
	if out.RateLimit, err = config.LoadRateLimitConfig(configPath); err != nil {
		return Settings{}, err
	}
	if out.Tiers, err = config.LoadTierTable(configPath); err != nil {
		return Settings{}, err
	}
	return out, nil
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn.WithContext(ctx))
}

// Server bundles the HTTP handler with the resources it owns.
type Server struct {
	Handler http.Handler
	Engine  *gin.Engine
	limiter *ratelimit.Manager
}

// Close releases resources held by the server.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	return s.limiter.Close()
}

// NewServer wires stores, gate, forwarder, billing and routes on conn.
func NewServer(conn *gorm.DB, st Settings) (*Server, error) {
	if conn == nil {
		return nil, fmt.Errorf("app: nil db")
	}
	if st.Tiers == nil {
		return nil, fmt.Errorf("app: tier table not loaded")
	}

	box, errBox := secrets.NewBox(st.Server.SecretBoxKey)
	if errBox != nil {
		return nil, errBox
	}
	if !box.Enabled() {
		log.Warn("secret box key not set, customer automation keys are stored unsealed")
	}
	verifier, errVerifier := identity.NewVerifier(st.Identity)
	if errVerifier != nil {
		return nil, errVerifier
	}

	accounts := store.NewGormAccountStore(conn)
	recorder := usage.NewRecorder(conn)
	usageGate, errGate := gate.New(st.Tiers, gate.Endpoints{
		ChatURL:           st.Upstream.ChatURL,
		ChatAPIKey:        st.Upstream.ChatAPIKey,
		AutomationBaseURL: st.Upstream.AutomationBaseURL,
		AutomationAPIKey:  st.Upstream.AutomationAPIKey,
	}, box, recorder)
	if errGate != nil {
		return nil, errGate
	}
	fwd := forwarder.New(forwarder.Options{
		Timeout:       st.Upstream.Timeout,
		PublicBaseURL: st.Upstream.PublicBaseURL,
		SiteName:      st.Upstream.SiteName,
	})

	var fetcher billing.SubscriptionFetcher
	if subs := billing.NewStripeSubscriptions(st.Billing.SecretKey); subs != nil {
		fetcher = subs
	}
	synchronizer, errSync := billing.NewSynchronizer(accounts, billing.Options{
		WebhookSecret: st.Billing.WebhookSecret,
		Tolerance:     st.Billing.WebhookTolerance,
		Prices:        billing.PriceMapFromConfig(st.Billing),
		Fetcher:       fetcher,
	})
	if errSync != nil {
		return nil, errSync
	}

	limiter := ratelimit.NewManager(ratelimit.StaticSettings(ratelimit.SettingsFromConfig(st.RateLimit)), nil, nil)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	front.RegisterHealthRoutes(engine, handlers.NewHealthHandler(conn))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	webhooks.RegisterWebhookRoutes(engine, synchronizer)
	front.RegisterFrontRoutes(engine, front.Deps{
		Verifier:  verifier,
		Accounts:  accounts,
		Gate:      usageGate,
		Forwarder: fwd,
		Usage:     recorder,
		Sealer:    box,
		Limiter:   limiter,
		Tiers:     st.Tiers,
	})
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   st.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
	})

	return &Server{Handler: corsHandler.Handler(engine), Engine: engine, limiter: limiter}, nil
}

// RunServer boots the gateway and blocks until ctx is done.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	st, err := LoadSettings(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	if summary, errSummary := describeDSN(dsn); errSummary == nil {
		log.WithFields(summary.Fields()).Info("database connected")
	}
	if count, errCount := CountAccounts(ctx, conn); errCount == nil && count == 0 {
		log.Warn("no accounts provisioned yet; every proxied request will return 404")
	}

	server, err := NewServer(conn, st)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := server.Close(); errClose != nil {
			log.WithError(errClose).Warn("close rate limiter failed")
		}
	}()

	port := st.Server.Port
	if port <= 0 {
		port = defaultPort
	}
	shutdownTimeout := st.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = settings.DefaultShutdownTimeout
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting gateway on %s with config=%s", srv.Addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	log.Info("gateway stopped")
	return nil
}
