package reconcile

import (
	"fmt"
)

var (
	ErrOverheadExceeded = fmt.Errorf("filtering overhead exceeds the allowed limit")
	ErrNothingCompared  = fmt.Errorf("no URL was measured by both renderers")
)

// Status of a single URL in the reconciliation.
type Status string

const (
	StatusCompared Status = "compared"
	StatusEqual    Status = "equal"
	StatusOutlier  Status = "outlier"
	StatusMissing  Status = "missing"
	StatusInvalid  Status = "invalid"
)

// Aggregated reports whether the URL contributed to the report totals.
func (s Status) Aggregated() bool {
	return s == StatusCompared || s == StatusEqual
}

type Comparison struct {
	URL         string `json:"url" yaml:"url"`
	BaselineMs  int64  `json:"baselineMs" yaml:"baselineMs"`
	FilteringMs int64  `json:"filteringMs,omitempty" yaml:"filteringMs,omitempty"`
	DeltaMs     int64  `json:"deltaMs,omitempty" yaml:"deltaMs,omitempty"`
	Status      Status `json:"status" yaml:"status"`
}

type Report struct {
	FilteringTotalMs       int64   `json:"filteringTotalMs" yaml:"filteringTotalMs"`
	BaselineTotalMs        int64   `json:"baselineTotalMs" yaml:"baselineTotalMs"`
	DeltaMs                int64   `json:"deltaMs" yaml:"deltaMs"`
	NormalizedDeltaPercent float64 `json:"normalizedDeltaPercent" yaml:"normalizedDeltaPercent"`
	ComparedCount          int     `json:"comparedCount" yaml:"comparedCount"`
	EqualCount             int     `json:"equalCount" yaml:"equalCount"`
	CatalogSize            int     `json:"catalogSize" yaml:"catalogSize"`

	ThresholdMs  int64 `json:"thresholdMs,omitempty" yaml:"thresholdMs,omitempty"`
	OutlierCount int   `json:"outlierCount,omitempty" yaml:"outlierCount,omitempty"`
	MissingCount int   `json:"missingCount,omitempty" yaml:"missingCount,omitempty"`
	InvalidCount int   `json:"invalidCount,omitempty" yaml:"invalidCount,omitempty"`

	Comparisons []Comparison `json:"comparisons,omitempty" yaml:"comparisons,omitempty"`
}

// Excluded is the number of baseline URLs left out of the totals.
func (r Report) Excluded() int {
	return r.OutlierCount + r.MissingCount + r.InvalidCount
}

// AssertMaxOverhead checks that filtering made the compared pages at most maxPercent slower
// than baseline in total. A report with nothing compared fails the check.
func (r Report) AssertMaxOverhead(maxPercent float64) error {
	if r.ComparedCount == 0 {
		return ErrNothingCompared
	}

	if r.NormalizedDeltaPercent > maxPercent {
		return fmt.Errorf("%w: %.2f%% > %.2f%% (%dms over %d pages)", ErrOverheadExceeded, r.NormalizedDeltaPercent, maxPercent, r.DeltaMs, r.ComparedCount)
	}

	return nil
}
