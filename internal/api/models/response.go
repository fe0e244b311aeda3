package models

import "time"

// BacktestResponse represents the response from a backtest run
type BacktestResponse struct {
	ID      string          `json:"id,omitempty"`
	Status  string          `json:"status"`
	Summary BacktestSummary `json:"summary"`
	Rows    []PortfolioRow  `json:"rows,omitempty"`
}

// BacktestSummary contains aggregated backtest results
type BacktestSummary struct {
	Strategy       string     `json:"strategy"`
	Instruments    []string   `json:"instruments"`
	BacktestWindow TimeWindow `json:"backtest_window"`
	Days           int        `json:"days"`
	InitialCapital string     `json:"initial_capital"` // decimal string, cents
	FinalCapital   string     `json:"final_capital"`
	TotalPNL       string     `json:"total_pnl"`
	Display        string     `json:"display"` // e.g. "$12,345.67"
	TotalReturn    float64    `json:"total_return"`
	AnnualReturn   float64    `json:"annual_return"`
	AnnualVol      float64    `json:"annual_vol"`
	Sharpe         float64    `json:"sharpe"`
	MaxDrawdown    float64    `json:"max_drawdown"`
	AvgLeverage    float64    `json:"avg_leverage"`
}

// TimeWindow represents a date range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PortfolioRow represents one simulated day; Units and Weights are keyed by instrument
type PortfolioRow struct {
	Index       int                `json:"index"`
	Date        string             `json:"date"`
	Capital     float64            `json:"capital"`
	DailyPNL    float64            `json:"daily_pnl"`
	NominalRet  float64            `json:"nominal_ret"`
	CapitalRet  float64            `json:"capital_ret"`
	StratScalar float64            `json:"strat_scalar"`
	Nominal     float64            `json:"nominal"`
	Leverage    float64            `json:"leverage"`
	Units       map[string]float64 `json:"units"`
	Weights     map[string]float64 `json:"weights"`
}

// RowsResponse is one page of a cached run
type RowsResponse struct {
	ID     string         `json:"id"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Rows   []PortfolioRow `json:"rows"`
}

// CompareBacktestResponse represents the response from a comparison, ranked by Sharpe
type CompareBacktestResponse struct {
	Comparison []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one strategy
type ComparisonResult struct {
	Rank    int             `json:"rank"`
	ID      string          `json:"id"`
	Summary BacktestSummary `json:"summary"`
}

// StrategyInfo represents a configured strategy
type StrategyInfo struct {
	Name        string   `json:"name"`
	Signal      string   `json:"signal"`
	Description string   `json:"description"`
	Instruments []string `json:"instruments"`
}

// SignalInfo describes a signal variant
type SignalInfo struct {
	Name        string          `json:"name"`
	Aliases     []string        `json:"aliases"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a strategy parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "int", "string"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// PresetInfo represents a strategy file found in the preset directory
type PresetInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Signal      string   `json:"signal"`
	File        string   `json:"file"`
	Instruments []string `json:"instruments"`
}

// InstrumentInfo represents one instrument of the loaded history
type InstrumentInfo struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"` // "symbol" or "pair"
	Base      string  `json:"base,omitempty"`
	Quote     string  `json:"quote"`
	CrossID   string  `json:"cross_id,omitempty"`
	FirstDate string  `json:"first_date"`
	LastDate  string  `json:"last_date"`
	LastClose float64 `json:"last_close"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
