package models

import (
	"time"

	"gorm.io/datatypes"
)

// UsageAction identifies which proxy produced a usage event.
type UsageAction string

// UsageAction constants define the metered actions.
const (
	// UsageActionChat is a forwarded chat completion.
	UsageActionChat UsageAction = "chat"
	// UsageActionWorkflow is a forwarded workflow execution.
	UsageActionWorkflow UsageAction = "workflow"
)

// UsageEvent is the append-only audit row written after a successful forward.
type UsageEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID   uint64  `gorm:"not null;index"`                   // Related account ID.
	Account     Account `gorm:"foreignKey:AccountID"`             // Related account record.
	IdentityKey string  `gorm:"type:varchar(255);not null;index"` // Auth provider subject.

	Action    UsageAction    `gorm:"type:varchar(16);not null;index"` // chat or workflow.
	TargetID  string         `gorm:"type:varchar(255);not null"`      // Model or workflow identifier.
	Payload   datatypes.JSON `gorm:"type:jsonb"`                      // Request snapshot.
	RequestID string         `gorm:"type:varchar(64);index"`          // Correlation ID.

	CustomEndpoint bool `gorm:"not null;default:false"` // Served by the customer endpoint.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
