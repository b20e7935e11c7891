package series

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuffer(t *testing.T) {
	testCases := []struct {
		name      string
		maxAge    time.Duration
		interval  time.Duration
		maxPoints int
	}{
		{name: "hourly_day", maxAge: 24 * time.Hour, interval: time.Hour, maxPoints: 25},
		{name: "small", maxAge: time.Minute, interval: 30 * time.Second, maxPoints: 3},
		{name: "minimum", maxAge: 10 * time.Second, interval: 30 * time.Second, maxPoints: 2},
		{name: "zero_defaults", maxPoints: defaultMaxPoints},
		{name: "negative_defaults", maxAge: -time.Minute, interval: -time.Second, maxPoints: defaultMaxPoints},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuffer(tc.maxAge, tc.interval)
			assert.Equal(t, tc.maxPoints, b.maxPoints)
			assert.Empty(t, b.series)
		})
	}
}

func TestAddEvictsOldest(t *testing.T) {
	b := NewBuffer(time.Minute, 30*time.Second)
	now := time.Now()

	for i := 0; i < 5; i++ {
		b.Add("web-01/cpu", float64(i), now.Add(time.Duration(i)*time.Second))
	}

	points := b.All("web-01/cpu")
	require.Len(t, points, 3)
	assert.Equal(t, 2.0, points[0].Value)
	assert.Equal(t, 4.0, points[2].Value)

	latest := b.Window("web-01/cpu", 0, now)
	require.Len(t, latest, 1)
	assert.Equal(t, 4.0, latest[0].Value)

	assert.Empty(t, b.All("missing"))
}

func TestWindow(t *testing.T) {
	b := NewBuffer(10*time.Minute, 30*time.Second)
	now := time.Now()
	for i, v := range []float64{10, 20, 30, 40, 50, 60} {
		b.Add("m", v, now.Add(time.Duration(i-5)*time.Minute))
	}

	testCases := []struct {
		name     string
		d        time.Duration
		at       time.Time
		expected []float64
	}{
		{name: "last_2_minutes", d: 2 * time.Minute, at: now, expected: []float64{40, 50, 60}},
		{name: "last_minute", d: time.Minute, at: now, expected: []float64{50, 60}},
		{name: "zero_is_latest", d: 0, at: now, expected: []float64{60}},
		{name: "past_query", d: time.Minute, at: now.Add(-3 * time.Minute), expected: []float64{20, 30}},
		{name: "future_query", d: time.Minute, at: now.Add(time.Minute), expected: []float64{60}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got []float64
			for _, p := range b.Window("m", tc.d, tc.at) {
				got = append(got, p.Value)
			}
			assert.Equal(t, tc.expected, got)
		})
	}

	assert.Empty(t, b.Window("missing", time.Minute, now))
}

func TestConcurrentAccess(t *testing.T) {
	b := NewBuffer(5*time.Minute, time.Second)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Add("c", float64(id*100+j), now.Add(time.Duration(j)*time.Millisecond))
			}
		}(i)
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Window("c", 0, now)
				b.All("c")
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, len(b.All("c")), b.maxPoints)
	assert.Len(t, b.series, 1)
}
