// Package service holds the booking marketplace use cases. Services validate
// input, delegate atomic work to the repository and publish events after
// commit.
package service

import (
	"barberbook/internal/domain"
	"barberbook/internal/logging"

	"github.com/rs/zerolog"
)

type nopPublisher struct{}

func (nopPublisher) PublishJSON(string, interface{}) error { return nil }

func publisherOr(p domain.EventPublisher) domain.EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func loggerOr(l *zerolog.Logger, component string) *zerolog.Logger {
	child := logging.Component(l, component)
	return &child
}
