package market

import (
	"errors"
	"testing"
	"time"

	"github.com/Alias1177/goldscalper/models"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func bar(i int, c float64) models.Bar {
	return models.Bar{Time: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c}
}

func TestSeriesVersion(t *testing.T) {
	s, err := NewSeries([]models.Bar{bar(0, 10), bar(1, 11)})
	if err != nil {
		t.Fatalf("NewSeries() error = %v", err)
	}
	v := s.Version()

	if err := s.Sync([]models.Bar{bar(0, 10), bar(1, 11)}); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if s.Version() != v {
		t.Errorf("identical Sync bumped version %d -> %d", v, s.Version())
	}

	revised := bar(1, 11)
	revised.Close = 11.5
	if err := s.UpdateLast(revised); err != nil {
		t.Fatalf("UpdateLast() error = %v", err)
	}
	if s.Version() == v {
		t.Errorf("intrabar update did not bump version")
	}
	if s.Last().Close != 11.5 {
		t.Errorf("Last().Close = %v, want 11.5", s.Last().Close)
	}

	v = s.Version()
	if err := s.Append(bar(2, 12)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if s.Version() != v+1 || s.Len() != 3 {
		t.Errorf("Append() version=%d len=%d, want %d and 3", s.Version(), s.Len(), v+1)
	}
}

func TestSeriesRejectsOutOfOrder(t *testing.T) {
	s := MustSeries([]models.Bar{bar(0, 10), bar(1, 11)})

	if err := s.Append(bar(1, 12)); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Append(duplicate) error = %v, want ErrOutOfOrder", err)
	}
	if err := s.UpdateLast(bar(5, 12)); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("UpdateLast(other bar) error = %v, want ErrOutOfOrder", err)
	}
	if _, err := NewSeries([]models.Bar{bar(1, 10), bar(0, 11)}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("NewSeries(reversed) error = %v, want ErrOutOfOrder", err)
	}
}
