package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/opsline/helpdesk-core/internal/events"
)

// EventLogService writes every published domain event to the structured log,
// giving operators a single feed of ticket lifecycle activity.
type EventLogService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewEventLogService creates the service.
func NewEventLogService(dispatcher events.Dispatcher, logger *zap.Logger) *EventLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLogService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes the log handler to every event type.
func (s *EventLogService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	for _, t := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketPriorityChanged,
		events.EventTicketEscalated,
		events.EventWorkflowStepAdvanced,
		events.EventFeedbackProcessed,
	} {
		s.dispatcher.Subscribe(t, s.logEvent)
	}
}

func (s *EventLogService) logEvent(_ context.Context, event events.Event) error {
	s.logger.Info("domain event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor", string(event.Actor)),
		zap.Any("payload", event.Payload),
	)
	return nil
}
