/**
 * @description
 * Event listings and member registration. Every registration change goes
 * through EventRepository.UpdateEvent so the registrant set and the attendee
 * counter are written in one atomic step.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/store"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/pkg/rabbitmq"
)

type EventService struct {
	repo      store.EventRepository
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewEventService(repo store.EventRepository, publisher EventPublisher, logger *slog.Logger) *EventService {
	return &EventService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Now is the clock registration decisions are made against.
func (s *EventService) Now() time.Time {
	return s.now()
}

// CreateEvent stores a new event with an empty registrant list.
func (s *EventService) CreateEvent(ctx context.Context, in domain.Event) (*domain.Event, error) {
	now := s.now()
	event := in
	event.ID = strings.TrimSpace(event.ID)
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Title = strings.TrimSpace(event.Title)
	event.Registrants = []string{}
	event.CurrentAttendees = 0
	if event.Status == "" {
		event.Status = domain.EventScheduled
	}
	event.CreatedAt = now
	event.UpdatedAt = now

	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	s.logger.Info("event created", "event_id", event.ID, "title", event.Title, "registration_required", event.RegistrationRequired)
	return &event, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return s.repo.GetEvent(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx)
}

// Register adds memberID to the event. A refusal is a *domain.RegistrationError
// naming the reason.
func (s *EventService) Register(ctx context.Context, eventID, memberID string) (*domain.Event, error) {
	updated, err := s.repo.UpdateEvent(ctx, eventID, func(e domain.Event) (domain.Event, error) {
		return domain.Register(e, memberID, s.now())
	})
	if err != nil {
		s.recordOutcome("register", err)
		return nil, err
	}
	s.recordOutcome("register", nil)
	s.logger.Info("member registered for event", "event_id", eventID, "member_id", memberID, "current_attendees", updated.CurrentAttendees)
	s.publish(ctx, rabbitmq.RoutingEventRegistered, *updated, memberID)
	return updated, nil
}

// Unregister removes memberID. domain.ErrNotRegistered when absent.
func (s *EventService) Unregister(ctx context.Context, eventID, memberID string) (*domain.Event, error) {
	updated, err := s.repo.UpdateEvent(ctx, eventID, func(e domain.Event) (domain.Event, error) {
		return domain.Unregister(e, memberID, s.now())
	})
	if err != nil {
		s.recordOutcome("unregister", err)
		return nil, err
	}
	s.recordOutcome("unregister", nil)
	s.logger.Info("member unregistered from event", "event_id", eventID, "member_id", memberID, "current_attendees", updated.CurrentAttendees)
	s.publish(ctx, rabbitmq.RoutingEventUnregistered, *updated, memberID)
	return updated, nil
}

// CancelEvent closes an open event to further registration changes.
func (s *EventService) CancelEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	updated, err := s.repo.UpdateEvent(ctx, eventID, func(e domain.Event) (domain.Event, error) {
		if !e.Status.Open() {
			return e, &domain.RegistrationError{Reason: domain.ReasonEventClosed}
		}
		e.Status = domain.EventCancelled
		e.UpdatedAt = s.now()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("event cancelled", "event_id", eventID, "registrants", len(updated.Registrants))
	s.publish(ctx, rabbitmq.RoutingEventCancelled, *updated, "")
	return updated, nil
}

// CompletePastEvents marks open events whose end (or start, when no end is
// set) has passed as completed. It returns how many were closed.
func (s *EventService) CompletePastEvents(ctx context.Context) (int, error) {
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, candidate := range events {
		if !eventOver(candidate, s.now()) {
			continue
		}
		_, err := s.repo.UpdateEvent(ctx, candidate.ID, func(e domain.Event) (domain.Event, error) {
			now := s.now()
			if !eventOver(e, now) {
				return e, errNoChange
			}
			e.Status = domain.EventCompleted
			e.UpdatedAt = now
			return e, nil
		})
		if errors.Is(err, errNoChange) {
			continue
		}
		if err != nil {
			s.logger.Error("failed to complete event", "event_id", candidate.ID, "error", err)
			continue
		}
		completed++
	}
	if completed > 0 {
		s.logger.Info("completed past events", "count", completed)
	}
	return completed, nil
}

func eventOver(e domain.Event, now time.Time) bool {
	if !e.Status.Open() {
		return false
	}
	end := e.StartsAt
	if e.EndsAt != nil {
		end = *e.EndsAt
	}
	return !end.IsZero() && now.After(end)
}

func (s *EventService) recordOutcome(operation string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotRegistered):
		outcome = "not_registered"
	case errors.Is(err, domain.ErrEventNotFound):
		outcome = "not_found"
	default:
		if reason := domain.RegistrationReasonOf(err); reason != domain.ReasonNone {
			outcome = string(reason)
		} else {
			outcome = "error"
		}
	}
	eventRegistrations.WithLabelValues(operation, outcome).Inc()
}

type registrationEvent struct {
	EventID          string    `json:"event_id"`
	Title            string    `json:"title"`
	MemberID         string    `json:"member_id,omitempty"`
	Status           string    `json:"status"`
	CurrentAttendees int       `json:"current_attendees"`
	Capacity         *int      `json:"capacity,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

func (s *EventService) publish(ctx context.Context, routingKey string, e domain.Event, memberID string) {
	if s.publisher == nil {
		return
	}
	payload := registrationEvent{
		EventID:          e.ID,
		Title:            e.Title,
		MemberID:         memberID,
		Status:           string(e.Status),
		CurrentAttendees: e.CurrentAttendees,
		Capacity:         e.Capacity,
		Timestamp:        s.now(),
	}
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		s.logger.Warn("failed to publish event registration message", "routing_key", routingKey, "event_id", e.ID, "error", err)
	}
}
