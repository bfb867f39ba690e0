package models

import (
	"time"

	"gorm.io/datatypes"
)

// MasterSlipMatch is the match context cached per master slip. It is the
// first place team names are looked up.
type MasterSlipMatch struct {
	ID uint `gorm:"primaryKey" json:"-"`

	RecordID     string `gorm:"uniqueIndex;size:128;not null" json:"id"`
	MasterSlipID int64  `gorm:"index:idx_master_slip_match_scope;not null" json:"master_slip_id"`
	MatchID      int64  `gorm:"index:idx_master_slip_match_scope;not null" json:"match_id"`

	MatchData datatypes.JSONMap `json:"match_data"`
	Document  datatypes.JSONMap `json:"document,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MasterSlipMatch) TableName() string { return "master_slip_matches" }

// Match is the global canonical registry entry.
type Match struct {
	MatchID  int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	HomeTeam string `gorm:"size:255" json:"home_team"`
	AwayTeam string `gorm:"size:255" json:"away_team"`

	Attributes datatypes.JSONMap `json:"attributes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Match) TableName() string { return "matches" }
