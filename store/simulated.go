package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog/log"
)

var simulatedTrains = []struct {
	number string
	name   string
	class  string
	fare   int
}{
	{"12951", "Rajdhani Express", "3A", 2890},
	{"12953", "August Kranti Rajdhani", "2A", 4120},
	{"12909", "Garib Rath Express", "3A", 1560},
	{"22209", "Duronto Express", "SL", 980},
}

// Simulated is a Store that answers every query from deterministic fixture rows after a fixed
// delay. It stands in for the backing database in local runs and load tests.
type Simulated struct {
	latency time.Duration
}

var _ Store = (*Simulated)(nil)

func NewSimulated(latency time.Duration) *Simulated {
	return &Simulated{latency: latency}
}

func (s *Simulated) Query(ctx context.Context, q Query) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if s.latency > 0 {
		t := time.NewTimer(s.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("simulated query %s %s: %w", q.Route(), q.TravelDate, ctx.Err())
		case <-t.C:
		}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(q.Route() + ":" + q.TravelDate))
	seed := h.Sum32()

	n := 1 + int(seed%3)
	rows := make([]Row, 0, n)
	for i := 0; i < n && i < RowLimit; i++ {
		tr := simulatedTrains[(int(seed)+i)%len(simulatedTrains)]
		rows = append(rows, Row{
			TrainNumber:  tr.number,
			TrainName:    tr.name,
			Class:        tr.class,
			Availability: availabilityStatus(seed >> uint(i*4)),
			Departure:    fmt.Sprintf("%02d:%02d", 6+(i*5)%18, (int(seed>>8)+i*15)%60),
			Fare:         tr.fare,
		})
	}
	log.Debug().Str("route", q.Route()).Str("date", q.TravelDate).Int("rows", len(rows)).Msg("store: simulated query")
	return rows, nil
}

func (s *Simulated) Ping(context.Context) error { return nil }

func availabilityStatus(v uint32) string {
	switch v % 3 {
	case 0:
		return fmt.Sprintf("AVAILABLE-%03d", v%200)
	case 1:
		return fmt.Sprintf("RAC/%d", v%40+1)
	default:
		return fmt.Sprintf("WL/%d", v%90+1)
	}
}
