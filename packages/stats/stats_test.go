package stats

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollector_Empty(t *testing.T) {
	s := NewCollector("ping").Summary()

	assert.Equal(t, "ping", s.Name)
	assert.Equal(t, int64(0), s.Count)
	assert.Zero(t, s.P99)
	assert.Zero(t, s.ErrorRate())
}

func TestCollector_Summary(t *testing.T) {
	c := NewCollector("users")
	for i := 1; i <= 100; i++ {
		c.Record(time.Duration(i)*time.Millisecond, 200, nil)
	}
	c.Record(5*time.Millisecond, 0, errors.New("refused"))

	s := c.Summary()
	assert.Equal(t, int64(101), s.Count)
	assert.Equal(t, int64(100), s.Success)
	assert.Equal(t, int64(1), s.Errors)
	assert.Equal(t, int64(100), s.Statuses[200])
	assert.InDelta(t, 0.99, s.ErrorRate(), 0.01)

	// HdrHistogram keeps 3 significant digits
	assert.InDelta(t, float64(time.Millisecond), float64(s.Min), float64(10*time.Microsecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Max), float64(200*time.Microsecond))
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(s.P95), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.P99), float64(time.Millisecond))
	assert.InDelta(t, float64(50500*time.Microsecond), float64(s.Mean), float64(time.Millisecond))
	assert.True(t, s.P50 <= s.P95 && s.P95 <= s.P99 && s.P99 <= s.Max)
}

func TestCollector_ClampsOutliers(t *testing.T) {
	c := NewCollector("")
	c.Record(0, 200, nil)
	c.Record(2*time.Minute, 200, nil)

	s := c.Summary()
	assert.Equal(t, time.Microsecond, s.Min)
	assert.InDelta(t, float64(60*time.Second), float64(s.Max), float64(100*time.Millisecond))
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector("")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Record(time.Millisecond, 204, nil)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(500), c.Count())
	assert.Equal(t, int64(500), c.Summary().Statuses[204])
}
