package models

import (
	"time"

	"gorm.io/datatypes"
)

type OptimizedSlip struct {
	ID uint `gorm:"primaryKey" json:"-"`

	RecordID     string `gorm:"uniqueIndex:idx_optimized_slip_identity;size:128;not null" json:"id"`
	MasterSlipID int64  `gorm:"uniqueIndex:idx_optimized_slip_identity;not null" json:"master_slip_id"`

	Document datatypes.JSONMap `json:"document"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OptimizedSlip) TableName() string { return "optimized_slips" }

// All lists every persisted model in provisioning order.
func All() []any {
	return []any{
		&MasterSlip{},
		&GeneratedSlip{},
		&GeneratedSlipLeg{},
		&OptimizedSlip{},
		&MasterSlipMatch{},
		&Match{},
	}
}
