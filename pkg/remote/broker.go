package remote

import (
	"context"
	"time"

	"github.com/jwalitptl/lifepulse/internal/model"
	apperrors "github.com/jwalitptl/lifepulse/pkg/errors"
	"github.com/jwalitptl/lifepulse/pkg/messaging"
)

const EventEmergencyRequestCreated = "emergency_request.created"

// BrokerSubmitter hands requests to a message broker channel read by the
// dispatch service.
type BrokerSubmitter struct {
	broker  messaging.Broker
	channel string
	timeout time.Duration
}

func NewBrokerSubmitter(broker messaging.Broker, channel string, timeout time.Duration) *BrokerSubmitter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BrokerSubmitter{
		broker:  broker,
		channel: channel,
		timeout: timeout,
	}
}

func (s *BrokerSubmitter) Submit(ctx context.Context, req *model.EmergencyRequest) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.broker.Publish(ctx, s.channel, messaging.Message{
		Type:    EventEmergencyRequestCreated,
		ID:      req.ID,
		Payload: req,
	})
	if err != nil {
		return apperrors.NewSubmission(req.ID, err)
	}
	return nil
}
