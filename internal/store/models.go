package store

import "time"

// Bar is one daily OHLCV print of an instrument.
type Bar struct {
	ID         uint      `gorm:"primaryKey"`
	Instrument string    `gorm:"uniqueIndex:idx_bar_inst_date;not null"`
	Date       time.Time `gorm:"uniqueIndex:idx_bar_inst_date;type:date;not null"`
	Open       float64
	High       float64
	Low        float64
	Close      float64 `gorm:"not null"`
	Volume     float64
}

// TableName sets the table name for Bar
func (Bar) TableName() string {
	return "bars"
}

// Run is the header of one persisted simulation.
type Run struct {
	ID             string    `gorm:"primaryKey;size:36"`
	Strategy       string    `gorm:"index;not null"`
	Instruments    []string  `gorm:"serializer:json"`
	StartDate      time.Time `gorm:"type:date"`
	EndDate        time.Time `gorm:"type:date"`
	InitialCapital float64
	FinalCapital   float64
	TotalPnL       float64
	CreatedAt      time.Time
}

// TableName sets the table name for Run
func (Run) TableName() string {
	return "runs"
}

// RunRow is one simulated day of a Run.
type RunRow struct {
	ID          uint      `gorm:"primaryKey"`
	RunID       string    `gorm:"index;size:36;not null"`
	Date        time.Time `gorm:"type:date"`
	Capital     float64
	DailyPnL    float64
	NominalRet  float64
	CapitalRet  float64
	StratScalar float64
	Nominal     float64
	Leverage    float64
	Units       []float64 `gorm:"serializer:json"`
	Weights     []float64 `gorm:"serializer:json"`
}

// TableName sets the table name for RunRow
func (RunRow) TableName() string {
	return "run_rows"
}
