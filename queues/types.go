package queues

import (
	"context"
	"errors"
	"time"

	"tatkal-search/store"
)

const (
	EnvelopeVersion        = "1.0"
	TypeAvailabilityChange = "availability-changed"
)

// ErrInvalidEvent marks a message that can never be applied and should be dropped, not retried.
var ErrInvalidEvent = errors.New("queues: invalid invalidation event")

// InvalidationEvent announces that availability for a route and date changed in the store.
type InvalidationEvent struct {
	EnvelopeVersion string `json:"envelopeVersion"`
	Type            string `json:"type"`
	Origin          string `json:"from"`
	Destination     string `json:"to"`
	TravelDate      string `json:"date"`
}

func NewInvalidationEvent(q store.Query) *InvalidationEvent {
	return &InvalidationEvent{
		EnvelopeVersion: EnvelopeVersion,
		Type:            TypeAvailabilityChange,
		Origin:          q.Origin,
		Destination:     q.Destination,
		TravelDate:      q.TravelDate,
	}
}

func (e *InvalidationEvent) Query() store.Query {
	return store.Query{Origin: e.Origin, Destination: e.Destination, TravelDate: e.TravelDate}
}

func (e *InvalidationEvent) Validate() error {
	if e.Type != "" && e.Type != TypeAvailabilityChange {
		return ErrInvalidEvent
	}
	if e.Origin == "" || e.Destination == "" {
		return ErrInvalidEvent
	}
	if _, err := time.Parse("2006-01-02", e.TravelDate); err != nil {
		return ErrInvalidEvent
	}
	return nil
}

type Handler func(context.Context, *InvalidationEvent) error

type Subscriber interface {
	Start(ctx context.Context, handler Handler) error
}

type Publisher interface {
	PublishInvalidation(ctx context.Context, ev *InvalidationEvent) error
}
