package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/owaiken/gateway/internal/apperr"
	"github.com/owaiken/gateway/internal/store"

	"github.com/gin-gonic/gin"
)

// OverrideWriter persists the automation override of an account.
type OverrideWriter interface {
	UpdateOverride(ctx context.Context, accountID uint64, override store.Override) error
}

// Sealer seals secrets before they are stored.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// SettingsHandler manages the caller's automation endpoint settings.
type SettingsHandler struct {
	accounts OverrideWriter
	sealer   Sealer
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(accounts OverrideWriter, sealer Sealer) *SettingsHandler {
	return &SettingsHandler{accounts: accounts, sealer: sealer}
}

// updateSettingsRequest defines the request body for the override update.
// Omitted endpoint or key fields keep the stored values; empty strings clear them.
type updateSettingsRequest struct {
	UseCustomN8n      *bool   `json:"useCustomN8n" binding:"required"`
	CustomN8nEndpoint *string `json:"customN8nEndpoint" binding:"omitempty,url"`
	CustomN8nAPIKey   *string `json:"customN8nApiKey"`
}

// Update stores the automation override. Enabling it requires the enterprise tier.
func (h *SettingsHandler) Update(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	var body updateSettingsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, validationError("Invalid request body", errBind))
		return
	}
	if *body.UseCustomN8n && !account.Tier.AllowsCustomEndpoint() {
		respondError(c, apperr.New(apperr.KindNotAuthorized, "Only enterprise users can use custom n8n endpoints"))
		return
	}

	override := store.Override{Enabled: *body.UseCustomN8n}
	if body.CustomN8nEndpoint != nil {
		override.Endpoint = strings.TrimSpace(*body.CustomN8nEndpoint)
		override.EndpointSet = true
	}
	if body.CustomN8nAPIKey != nil {
		key := strings.TrimSpace(*body.CustomN8nAPIKey)
		if key == "" {
			override.ClearKey = true
		} else {
			sealed, errSeal := h.sealer.Seal(key)
			if errSeal != nil {
				respondError(c, apperr.Wrap(apperr.KindInternal, "Failed to update settings", errSeal))
				return
			}
			override.APIKey = sealed
		}
	}

	if errUpdate := h.accounts.UpdateOverride(c.Request.Context(), account.ID, override); errUpdate != nil {
		if errors.Is(errUpdate, store.ErrAccountNotFound) {
			respondError(c, apperr.New(apperr.KindAccountNotFound, "User not found"))
			return
		}
		respondError(c, apperr.Wrap(apperr.KindInternal, "Failed to update settings", errUpdate))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Get returns the caller's override settings without the stored key.
func (h *SettingsHandler) Get(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tier":               account.Tier,
		"useCustomN8n":       account.UseCustomN8n,
		"customN8nEndpoint":  account.CustomN8nEndpoint,
		"hasCustomN8nApiKey": account.CustomN8nAPIKey != "",
		"customEndpointLive": account.CustomEndpointActive(),
	})
}
