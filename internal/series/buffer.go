// Package series keeps bounded in-memory time series and reduces windows of them to one value.
package series

import (
	"sort"
	"sync"
	"time"
)

const defaultMaxPoints = 60

type Point struct {
	Timestamp time.Time
	Value     float64
}

// Buffer holds the newest points of every named series. Safe for concurrent use.
type Buffer struct {
	mu        sync.RWMutex
	series    map[string][]Point
	maxPoints int
}

// NewBuffer sizes each series to hold maxAge worth of points sampled every interval.
func NewBuffer(maxAge, interval time.Duration) *Buffer {
	maxPoints := defaultMaxPoints
	if maxAge > 0 && interval > 0 {
		maxPoints = int(maxAge/interval) + 1
		if maxPoints < 2 {
			maxPoints = 2
		}
	}
	return &Buffer{
		series:    make(map[string][]Point),
		maxPoints: maxPoints,
	}
}

// Add appends a point, evicting the oldest once the series is full.
func (b *Buffer) Add(name string, value float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	points := append(b.series[name], Point{Timestamp: ts, Value: value})
	if len(points) > b.maxPoints {
		points = points[len(points)-b.maxPoints:]
	}
	b.series[name] = points
}

// Window returns the points of name with a timestamp in [now-d, now], oldest first. A zero d
// returns only the latest point.
func (b *Buffer) Window(name string, d time.Duration, now time.Time) []Point {
	b.mu.RLock()
	defer b.mu.RUnlock()

	points := b.series[name]
	if len(points) == 0 {
		return nil
	}
	if d == 0 {
		return []Point{points[len(points)-1]}
	}

	start := now.Add(-d)
	first := sort.Search(len(points), func(i int) bool {
		return !points[i].Timestamp.Before(start)
	})
	var out []Point
	for _, p := range points[first:] {
		if p.Timestamp.After(now) {
			break
		}
		out = append(out, p)
	}
	return out
}

// All returns a copy of every stored point of name.
func (b *Buffer) All(name string) []Point {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]Point(nil), b.series[name]...)
}
