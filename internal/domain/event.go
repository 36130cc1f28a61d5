/**
 * @description
 * Event listings and the registration state machine.
 *
 * @notes
 * - Register and Unregister are pure: they return a new Event and leave the
 *   input untouched. Persisting the result atomically is the repository's job.
 * - The registrant set and the attendee counter only ever move together.
 */
package domain

import (
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Open reports whether the event still accepts registration changes.
func (s EventStatus) Open() bool {
	return s == "" || s == EventScheduled || s == EventOngoing
}

type Event struct {
	ID                   string      `json:"id"`
	Title                string      `json:"title"`
	Description          string      `json:"description,omitempty"`
	Location             string      `json:"location,omitempty"`
	StartsAt             time.Time   `json:"starts_at"`
	EndsAt               *time.Time  `json:"ends_at,omitempty"`
	Capacity             *int        `json:"capacity,omitempty"`
	CurrentAttendees     int         `json:"current_attendees"`
	RegistrationDeadline *time.Time  `json:"registration_deadline,omitempty"`
	RegistrationRequired bool        `json:"registration_required"`
	Registrants          []string    `json:"registrants"`
	Status               EventStatus `json:"status"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Validate checks an organizer-supplied event before it is stored.
func (e Event) Validate() error {
	return AsValidationError(validation.ValidateStruct(&e,
		validation.Field(&e.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.StartsAt, validation.Required),
		validation.Field(&e.Capacity, validation.NilOrNotEmpty, validation.Min(1)),
		validation.Field(&e.CurrentAttendees, validation.Min(0)),
		validation.Field(&e.EndsAt, validation.By(func(interface{}) error {
			if e.EndsAt != nil && e.EndsAt.Before(e.StartsAt) {
				return validation.NewError("validation_ends_before_start", "must not be before starts_at")
			}
			return nil
		})),
	))
}

// IsRegistered reports membership in the registrant set.
func (e Event) IsRegistered(memberID string) bool {
	return slices.Contains(e.Registrants, normalizeMemberID(memberID))
}

func normalizeMemberID(id string) string {
	return strings.TrimSpace(id)
}

// SpotsLeft is -1 for unlimited events.
func (e Event) SpotsLeft() int {
	if e.Capacity == nil {
		return -1
	}
	left := *e.Capacity - e.CurrentAttendees
	if left < 0 {
		return 0
	}
	return left
}

func (e Event) clone() Event {
	out := e
	out.Registrants = slices.Clone(e.Registrants)
	if e.Capacity != nil {
		c := *e.Capacity
		out.Capacity = &c
	}
	if e.RegistrationDeadline != nil {
		d := *e.RegistrationDeadline
		out.RegistrationDeadline = &d
	}
	if e.EndsAt != nil {
		end := *e.EndsAt
		out.EndsAt = &end
	}
	return out
}

// RegistrationBlock returns why memberID cannot register at now, or ReasonNone.
// A passed deadline is reported ahead of a full event.
func RegistrationBlock(e Event, memberID string, now time.Time) RegistrationReason {
	switch {
	case !e.RegistrationRequired:
		return ReasonNotRequired
	case !e.Status.Open():
		return ReasonEventClosed
	case e.IsRegistered(memberID):
		return ReasonAlreadyRegistered
	case e.RegistrationDeadline != nil && now.After(*e.RegistrationDeadline):
		return ReasonDeadlinePassed
	case e.Capacity != nil && e.CurrentAttendees >= *e.Capacity:
		return ReasonFull
	}
	return ReasonNone
}

func CanRegister(e Event, memberID string, now time.Time) bool {
	return RegistrationBlock(e, memberID, now) == ReasonNone
}

// Register adds memberID and bumps the attendee count by one.
func Register(e Event, memberID string, now time.Time) (Event, error) {
	memberID = normalizeMemberID(memberID)
	if memberID == "" {
		return e, NewValidationError("member_id", "is required")
	}
	if reason := RegistrationBlock(e, memberID, now); reason != ReasonNone {
		return e, &RegistrationError{Reason: reason}
	}
	out := e.clone()
	out.Registrants = append(out.Registrants, memberID)
	out.CurrentAttendees++
	out.UpdatedAt = now
	return out, nil
}

// Unregister removes memberID. The counter never drops below zero.
func Unregister(e Event, memberID string, now time.Time) (Event, error) {
	memberID = normalizeMemberID(memberID)
	if memberID == "" {
		return e, NewValidationError("member_id", "is required")
	}
	if !e.RegistrationRequired {
		return e, &RegistrationError{Reason: ReasonNotRequired}
	}
	if !e.Status.Open() {
		return e, &RegistrationError{Reason: ReasonEventClosed}
	}
	idx := slices.Index(e.Registrants, memberID)
	if idx < 0 {
		return e, ErrNotRegistered
	}
	out := e.clone()
	out.Registrants = slices.Delete(out.Registrants, idx, idx+1)
	if out.CurrentAttendees > 0 {
		out.CurrentAttendees--
	}
	out.UpdatedAt = now
	return out, nil
}
