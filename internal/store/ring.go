package store

import (
	"time"

	"github.com/rileyhilliard/cw/internal/model"
)

// DefaultWindow is the default number of points retained per metric.
const DefaultWindow = 60

// series is a fixed-size circular buffer of metric points.
type series struct {
	data  []model.MetricPoint
	head  int
	count int
	size  int
}

func newSeries(size int) *series {
	return &series{
		data: make([]model.MetricPoint, size),
		size: size,
	}
}

// push adds a point, evicting the oldest once the buffer is full.
func (s *series) push(p model.MetricPoint) {
	s.data[s.head] = p
	s.head = (s.head + 1) % s.size
	if s.count < s.size {
		s.count++
	}
}

// last returns up to n most recent points, oldest first.
func (s *series) last(n int) []model.MetricPoint {
	if n <= 0 || n > s.count {
		n = s.count
	}
	if n == 0 {
		return nil
	}

	out := make([]model.MetricPoint, n)
	start := (s.head - n + s.size) % s.size
	for i := 0; i < n; i++ {
		out[i] = s.data[(start+i)%s.size]
	}
	return out
}

// values returns up to n most recent values, oldest first.
func (s *series) values(n int) []float64 {
	pts := s.last(n)
	if pts == nil {
		return nil
	}
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Value
	}
	return out
}

// normTime strips the monotonic reading and pins UTC so stored times
// compare equal after a JSON round trip.
func normTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Round(0)
}
