package series

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNoPoints = errors.New("series: no points")

type Aggregation string

const (
	Average Aggregation = "average"
	Max     Aggregation = "max"
	Min     Aggregation = "min"
	Sum     Aggregation = "sum"
	Last    Aggregation = "last"
)

// Aggregate reduces points to a single value.
func Aggregate(points []Point, agg Aggregation) (float64, error) {
	if len(points) == 0 {
		return 0, ErrNoPoints
	}

	switch Aggregation(strings.ToLower(string(agg))) {
	case Average:
		return sum(points) / float64(len(points)), nil
	case Sum:
		return sum(points), nil
	case Max:
		v := points[0].Value
		for _, p := range points[1:] {
			if p.Value > v {
				v = p.Value
			}
		}
		return v, nil
	case Min:
		v := points[0].Value
		for _, p := range points[1:] {
			if p.Value < v {
				v = p.Value
			}
		}
		return v, nil
	case Last:
		return points[len(points)-1].Value, nil
	default:
		return 0, fmt.Errorf("unknown aggregation %q", agg)
	}
}

func sum(points []Point) float64 {
	total := 0.0
	for _, p := range points {
		total += p.Value
	}
	return total
}

// Condition compares a value against a threshold.
type Condition string

func (c Condition) Holds(value, threshold float64) (bool, error) {
	switch c {
	case ">":
		return value > threshold, nil
	case "<":
		return value < threshold, nil
	case ">=":
		return value >= threshold, nil
	case "<=":
		return value <= threshold, nil
	case "=":
		return value == threshold, nil
	case "!=":
		return value != threshold, nil
	default:
		return false, fmt.Errorf("unknown condition %q", string(c))
	}
}

// Rule fires when the aggregated window of a series meets its condition.
type Rule struct {
	Series      string
	Window      time.Duration
	Aggregation Aggregation
	Condition   Condition
	Threshold   float64
}

// Evaluate aggregates the rule's window ending at now and applies the condition.
func (r Rule) Evaluate(b *Buffer, now time.Time) (bool, float64, error) {
	points := b.Window(r.Series, r.Window, now)
	if len(points) == 0 {
		return false, 0, fmt.Errorf("%s: %w", r.Series, ErrNoPoints)
	}
	agg := r.Aggregation
	if r.Window == 0 {
		agg = Last
	}
	value, err := Aggregate(points, agg)
	if err != nil {
		return false, 0, err
	}
	met, err := r.Condition.Holds(value, r.Threshold)
	return met, value, err
}
