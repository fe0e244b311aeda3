package models

// BacktestRequest represents the request body for running a backtest
type BacktestRequest struct {
	Strategy  string            `json:"strategy" binding:"required"` // configured strategy name
	Overrides BacktestOverrides `json:"overrides,omitempty"`
	Options   BacktestOptions   `json:"options,omitempty"`
}

// BacktestOverrides replaces portfolio-level settings of the served config for one request
type BacktestOverrides struct {
	VolTarget       float64 `json:"vol_target,omitempty"`
	SimulationStart string  `json:"simulation_start,omitempty"` // YYYY-MM-DD
	InitialCapital  float64 `json:"initial_capital,omitempty"`
}

// BacktestOptions contains optional backtest parameters
type BacktestOptions struct {
	IncludeRows bool `json:"include_rows,omitempty"` // default: false
	Persist     bool `json:"persist,omitempty"`      // store the run when a database is configured
}

// CompareBacktestRequest runs several configured strategies on the same history
type CompareBacktestRequest struct {
	Strategies []string          `json:"strategies,omitempty"` // empty = all configured strategies
	Overrides  BacktestOverrides `json:"overrides,omitempty"`
}

// RowsQuery pages through the rows of a cached run
type RowsQuery struct {
	Offset int `form:"offset"`
	Limit  int `form:"limit"` // default: all rows
}
