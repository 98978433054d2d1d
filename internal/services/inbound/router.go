package inbound

import (
	"github.com/sirupsen/logrus"

	"wagate/internal/domain"
	"wagate/internal/phone"
)

// Router normalizes live inbound messages and republishes them.
type Router struct {
	plan      phone.Plan
	publisher domain.EventPublisher
	log       *logrus.Entry
}

// New constructs a Router. publisher may be nil, in which case Route only
// returns the normalized messages.
func New(plan phone.Plan, publisher domain.EventPublisher, log *logrus.Entry) *Router {
	if log == nil {
		log = logrus.WithField("component", "inbound")
	}
	return &Router{plan: plan, publisher: publisher, log: log}
}

// Route handles one batch. History replays produce nothing; live messages
// are published in arrival order as domain.MessageReceived, skipping the
// ones this session sent itself.
func (r *Router) Route(batch domain.MessageBatch) []domain.InboundMessage {
	if !batch.Live {
		r.log.WithField("count", len(batch.Messages)).Debug("Skipping history batch")
		return nil
	}

	out := make([]domain.InboundMessage, 0, len(batch.Messages))
	for _, raw := range batch.Messages {
		if raw.FromMe {
			continue
		}
		msg := domain.InboundMessage{
			ID:        raw.ID,
			SenderID:  r.plan.Canonicalize(raw.RemoteID),
			Body:      raw.Text,
			Timestamp: raw.Timestamp,
		}
		out = append(out, msg)
		r.log.WithFields(logrus.Fields{
			"from": msg.SenderID,
			"id":   msg.ID,
		}).Info("Message received")
		if r.publisher != nil {
			r.publisher.Publish(domain.MessageReceived{Message: msg})
		}
	}
	return out
}
