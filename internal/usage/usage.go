package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/owaiken/gateway/internal/db"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/settings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// commitTimeout bounds the metering transaction independently of the caller's request.
const commitTimeout = 5 * time.Second

// Entry describes one successful forwarded call to be metered.
type Entry struct {
	AccountID      uint64
	IdentityKey    string
	Action         models.UsageAction
	TargetID       string
	Payload        []byte
	RequestID      string
	CustomEndpoint bool
}

// Recorder increments account counters and appends usage events.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder backed by GORM.
func NewRecorder(conn *gorm.DB) *Recorder { return &Recorder{db: conn} }

// Commit atomically bumps the account counters for entry and writes its usage event.
// Chat increments message_count; workflow increments both message_count and workflow_count.
func (r *Recorder) Commit(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("usage recorder: not initialized")
	}
	if entry.AccountID == 0 {
		return errors.New("usage recorder: missing account id")
	}

	updates := map[string]any{
		"message_count": gorm.Expr("message_count + ?", 1),
		"updated_at":    time.Now().UTC(),
	}
	switch entry.Action {
	case models.UsageActionChat:
	case models.UsageActionWorkflow:
		updates["workflow_count"] = gorm.Expr("workflow_count + ?", 1)
	default:
		return fmt.Errorf("usage recorder: unknown action %q", entry.Action)
	}

	requestID := strings.TrimSpace(entry.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	row := models.UsageEvent{
		AccountID:      entry.AccountID,
		IdentityKey:    entry.IdentityKey,
		Action:         entry.Action,
		TargetID:       entry.TargetID,
		Payload:        snapshot(entry.Payload),
		RequestID:      requestID,
		CustomEndpoint: entry.CustomEndpoint,
		CreatedAt:      time.Now().UTC(),
	}

	// The caller's request may already be finishing; the commit must not be cut short by it.
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	return r.db.WithContext(dbCtx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).Where("id = ?", entry.AccountID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("usage recorder: increment counters: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("usage recorder: account %d not found", entry.AccountID)
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("usage recorder: create event: %w", errCreate)
		}
		return nil
	})
}

// Filter narrows a usage event listing.
type Filter struct {
	Action models.UsageAction
	Model  string
	Limit  int
}

// List returns the most recent usage events of an account, newest first.
func (r *Recorder) List(ctx context.Context, accountID uint64, filter Filter) ([]models.UsageEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("usage recorder: not initialized")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = settings.DefaultUsageEventsLimit
	}
	if limit > settings.MaxUsageEventsLimit {
		limit = settings.MaxUsageEventsLimit
	}

	q := r.db.WithContext(ctx).Model(&models.UsageEvent{}).Where("account_id = ?", accountID)
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if model := strings.TrimSpace(filter.Model); model != "" {
		q = q.Where(db.JSONExtractTextExpr(r.db, "payload", "model")+" = ?", model)
	}

	var rows []models.UsageEvent
	if errFind := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("usage recorder: list: %w", errFind)
	}
	return rows, nil
}

// snapshot keeps valid JSON payloads and wraps anything else as a JSON string.
func snapshot(payload []byte) datatypes.JSON {
	if len(payload) == 0 {
		return datatypes.JSON("{}")
	}
	if json.Valid(payload) {
		return datatypes.JSON(payload)
	}
	wrapped, errMarshal := json.Marshal(string(payload))
	if errMarshal != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(wrapped)
}
