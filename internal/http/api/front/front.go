package front

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/owaiken/gateway/internal/apperr"
	handlers "github.com/owaiken/gateway/internal/http/api/front/handlers"
	"github.com/owaiken/gateway/internal/identity"
	"github.com/owaiken/gateway/internal/metrics"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/ratelimit"
	"github.com/owaiken/gateway/internal/store"
	"github.com/owaiken/gateway/internal/tier"

	"github.com/gin-gonic/gin"
)

// AccountStore loads and updates caller accounts.
type AccountStore interface {
	FindByIdentity(ctx context.Context, identityKey string) (*models.Account, error)
	handlers.OverrideWriter
}

// Gate evaluates calls and exposes the policy of an account.
type Gate interface {
	handlers.Evaluator
	handlers.PolicyResolver
}

// Deps are the components behind the user-facing routes.
type Deps struct {
	Verifier  *identity.Verifier
	Accounts  AccountStore
	Gate      Gate
	Forwarder handlers.Forwarder
	Usage     handlers.UsageLister
	Sealer    handlers.Sealer
	Limiter   *ratelimit.Manager
	Tiers     *tier.Table
}

// RegisterFrontRoutes registers the user-facing API routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil {
		return
	}

	planHandler := handlers.NewPlanFrontHandler(deps.Tiers)
	r.GET("/api/plans", planHandler.List)

	authed := r.Group("/api")
	authed.Use(identity.Middleware(deps.Verifier))
	authed.Use(accountMiddleware(deps.Accounts))

	proxyHandler := handlers.NewProxyHandler(deps.Gate, deps.Forwarder)
	authed.POST("/chat", burstLimitMiddleware(deps.Limiter, models.UsageActionChat), proxyHandler.Chat)
	authed.POST("/n8n-proxy", burstLimitMiddleware(deps.Limiter, models.UsageActionWorkflow), proxyHandler.Workflow)

	settingsHandler := handlers.NewSettingsHandler(deps.Accounts, deps.Sealer)
	authed.GET("/user/settings", settingsHandler.Get)
	authed.POST("/user/update-n8n-settings", settingsHandler.Update)

	accountHandler := handlers.NewAccountHandler(deps.Gate, deps.Usage)
	authed.GET("/user/account", accountHandler.Get)
	authed.GET("/user/usage-events", accountHandler.UsageEvents)
}

// accountMiddleware loads the account of the verified identity.
func accountMiddleware(accounts AccountStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		identityKey, ok := identity.FromContext(c)
		if !ok {
			abortWithError(c, apperr.New(apperr.KindUnauthenticated, "Unauthorized"))
			return
		}
		account, errFind := accounts.FindByIdentity(c.Request.Context(), identityKey)
		if errFind != nil {
			if errors.Is(errFind, store.ErrAccountNotFound) {
				abortWithError(c, apperr.New(apperr.KindAccountNotFound, "User not found"))
				return
			}
			abortWithError(c, apperr.Wrap(apperr.KindInternal, "Internal server error", errFind))
			return
		}
		c.Set(handlers.AccountContextKey, account)
		c.Next()
	}
}

// burstLimitMiddleware rejects calls above the per-account requests-per-second ceiling.
func burstLimitMiddleware(limiter *ratelimit.Manager, action models.UsageAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}
		v, _ := c.Get(handlers.AccountContextKey)
		account, _ := v.(*models.Account)
		if account == nil {
			c.Next()
			return
		}
		result, errAllow := limiter.AllowAccount(c.Request.Context(), account.ID, string(action))
		if errAllow != nil {
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", "1")
			abortWithError(c, apperr.New(apperr.KindRateLimited, "Too many requests"))
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), apperr.Envelope(err))
}

// RegisterHealthRoutes registers the liveness endpoint.
func RegisterHealthRoutes(r *gin.Engine, healthHandler *handlers.HealthHandler) {
	if r == nil || healthHandler == nil {
		return
	}
	r.GET("/healthz", healthHandler.Healthz)
	r.HEAD("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
}
