// Package store is the source of truth for seat availability.
package store

import (
	"context"
	"errors"
)

// RowLimit bounds every query result.
const RowLimit = 10

var ErrInvalidQuery = errors.New("store: origin and destination are required")

// Query selects availability by route and travel date.
type Query struct {
	Origin      string
	Destination string
	TravelDate  string // YYYY-MM-DD
}

// Route is the partition value, e.g. "DEL-MUM".
func (q Query) Route() string {
	return q.Origin + "-" + q.Destination
}

func (q Query) Validate() error {
	if q.Origin == "" || q.Destination == "" {
		return ErrInvalidQuery
	}
	return nil
}

// Row is one train's availability on the queried route and date.
type Row struct {
	TrainNumber  string `json:"train"`
	TrainName    string `json:"trainName"`
	Class        string `json:"class"`
	Availability string `json:"availability"`
	Departure    string `json:"departure"`
	Fare         int    `json:"fare"`
}

type Store interface {
	Query(ctx context.Context, q Query) ([]Row, error)
	Ping(ctx context.Context) error
}
