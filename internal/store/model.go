package store

import (
	"time"

	"gorm.io/datatypes"
)

// TradeRecordModel is one row per decision cycle, trade or not. The ledger is
// append-only: rows are inserted once and never updated.
type TradeRecordModel struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Timestamp time.Time `gorm:"index;not null"`
	Symbol    string    `gorm:"size:24;index;not null"`

	Action     string  `gorm:"size:8;not null"`
	Ratio      float64 `gorm:"not null"`
	Confidence int
	Reason     string `gorm:"type:text"`
	Degraded   bool
	Note       string `gorm:"type:text"`

	// Account and price state captured before execution.
	BaseBalance  float64
	QuoteBalance float64
	Price        float64

	// Execution outcome. Status is filled | rejected | skipped | held.
	Status       string `gorm:"size:12;not null"`
	StatusReason string `gorm:"type:text"`
	FilledPrice  float64
	FilledAmount float64
	FilledQuote  float64
	OrderID      int64

	CreatedAt time.Time
}

func (TradeRecordModel) TableName() string { return "trade_records" }

// ReflectionModel stores one daily self-review over a trade window.
type ReflectionModel struct {
	ID          string    `gorm:"primaryKey;size:36"`
	WindowStart time.Time `gorm:"index;not null"`
	WindowEnd   time.Time `gorm:"not null"`

	TradeCount    int
	SuccessMetric float64
	Narrative     string         `gorm:"type:text"`
	Improvements  datatypes.JSON `gorm:"type:text"`
	Degraded      bool

	CreatedAt time.Time
}

func (ReflectionModel) TableName() string { return "reflections" }
