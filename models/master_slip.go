package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func init() {
	// stake and total_odds are numbers on the wire, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	MasterSlipStatusPending = "pending"
)

type MasterSlip struct {
	ID uint `gorm:"primaryKey" json:"-"`

	MasterSlipID string          `gorm:"uniqueIndex;size:64;not null" json:"master_slip_id"`
	UserID       string          `gorm:"index;size:64" json:"user_id"`
	Stake        decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"stake"`
	TotalOdds    decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"total_odds"`
	Status       string          `gorm:"size:16;index;not null;default:pending" json:"status"`

	// SlipCount is only maintained by batch creation; sync never touches it.
	SlipCount int `gorm:"not null;default:0" json:"slip_count"`

	Attributes datatypes.JSONMap `json:"attributes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MasterSlip) TableName() string { return "master_slips" }
