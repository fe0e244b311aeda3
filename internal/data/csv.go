package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"momentum-backtest/internal/model"
)

// Field names used in the wide table header ("{instrument} {field}").
const (
	FieldOpen   = "open"
	FieldHigh   = "high"
	FieldLow    = "low"
	FieldClose  = "close"
	FieldVolume = "volume"
	FieldRet    = "% ret"
	FieldRetVol = "% ret vol"
	FieldActive = "active"
)

// LoadCSV reads a wide historical table from path. See ReadCSV.
func LoadCSV(path string, window int) (*model.History, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := ReadCSV(f, window)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// ReadCSV parses a wide table whose first column is the date and whose other
// columns are named "{instrument} {field}". Empty cells and "NaN" are missing
// values. Instruments that do not carry all of "% ret", "% ret vol" and
// "active" are run through Prepare with the given volatility window (the
// default when window <= 1); the others are taken as given.
func ReadCSV(r io.Reader, window int) (*model.History, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty table")
		}
		return nil, err
	}
	if len(header) < 2 {
		return nil, errors.New("table has no instrument columns")
	}

	type column struct {
		inst  string
		field string
	}
	cols := make([]column, len(header))
	var order []string
	seen := map[string]map[string]bool{}
	for i, name := range header[1:] {
		inst, field, ok := strings.Cut(strings.TrimSpace(name), " ")
		if !ok || inst == "" {
			return nil, fmt.Errorf("column %d: %q is not of the form \"{instrument} {field}\"", i+1, name)
		}
		switch field {
		case FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume, FieldRet, FieldRetVol, FieldActive:
		default:
			// Unknown fields (e.g. precomputed indicators) are ignored.
			continue
		}
		if seen[inst] == nil {
			seen[inst] = map[string]bool{}
			order = append(order, inst)
		}
		if seen[inst][field] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[inst][field] = true
		cols[i+1] = column{inst: inst, field: field}
	}

	var dates []time.Time
	var records [][]string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("line %d: %d cells, header has %d", line, len(rec), len(header))
		}
		d, err := model.ParseDate(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		dates = append(dates, d)
		records = append(records, rec)
	}

	h, err := model.NewHistory(dates)
	if err != nil {
		return nil, err
	}
	series := make(map[string]*model.Series, len(order))
	for _, inst := range order {
		series[inst] = model.NewSeries(inst, len(dates))
	}

	for row, rec := range records {
		for i := 1; i < len(rec); i++ {
			c := cols[i]
			if c.inst == "" {
				continue
			}
			s := series[c.inst]
			cell := strings.TrimSpace(rec[i])
			if c.field == FieldActive {
				s.Active[row] = parseBool(cell)
				continue
			}
			v, err := parseFloat(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", row+2, header[i], err)
			}
			switch c.field {
			case FieldOpen:
				s.Open[row] = v
			case FieldHigh:
				s.High[row] = v
			case FieldLow:
				s.Low[row] = v
			case FieldClose:
				s.Close[row] = v
			case FieldVolume:
				s.Volume[row] = v
			case FieldRet:
				s.Ret[row] = v
			case FieldRetVol:
				s.RetVol[row] = v
			}
		}
	}

	for _, inst := range order {
		if !seen[inst][FieldClose] {
			return nil, fmt.Errorf("instrument %s has no %q column", inst, FieldClose)
		}
		if !(seen[inst][FieldRet] && seen[inst][FieldRetVol] && seen[inst][FieldActive]) {
			Prepare(series[inst], window)
		}
		if err := h.Add(series[inst]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// WriteCSV writes h as a wide table readable by ReadCSV.
func WriteCSV(w io.Writer, h *model.History) error {
	cw := csv.NewWriter(w)
	fields := []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume, FieldRet, FieldRetVol, FieldActive}

	header := []string{"date"}
	for _, s := range h.Series {
		for _, f := range fields {
			header = append(header, s.ID+" "+f)
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, d := range h.Dates {
		row := []string{d.Format(model.DateFormat)}
		for _, s := range h.Series {
			row = append(row,
				fmtFloat(s.Open[i]), fmtFloat(s.High[i]), fmtFloat(s.Low[i]),
				fmtFloat(s.Close[i]), fmtFloat(s.Volume[i]),
				fmtFloat(s.Ret[i]), fmtFloat(s.RetVol[i]),
				strconv.FormatBool(s.Active[i]),
			)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseFloat(cell string) (float64, error) {
	switch strings.ToLower(cell) {
	case "", "nan", "null", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

func parseBool(cell string) bool {
	switch strings.ToLower(cell) {
	case "true", "1", "1.0", "t", "yes":
		return true
	}
	return false
}

func fmtFloat(x float64) string {
	if math.IsNaN(x) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}
