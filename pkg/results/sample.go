package results

import (
	"fmt"
	"time"
)

// Kind identifies which renderer configuration produced a measurement.
type Kind string

const (
	Baseline  Kind = "baseline"
	Filtering Kind = "filtering"
)

var ErrUnknownKind = fmt.Errorf("unknown renderer kind")

// Kinds lists renderer kinds in the order passes are run.
func Kinds() []Kind {
	return []Kind{Baseline, Filtering}
}

func (k Kind) String() string {
	return string(k)
}

func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case Baseline, Filtering:
		return Kind(value), nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
}

// Sample is a single page load measurement.
type Sample struct {
	// URL with its query string stripped
	URL     string
	Kind    Kind
	Elapsed time.Duration
}

func (s Sample) Millis() int64 {
	return s.Elapsed.Milliseconds()
}

// Valid reports whether the sample may take part in aggregation.
func (s Sample) Valid() bool {
	return s.Millis() > 0
}
