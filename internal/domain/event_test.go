package domain

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func openEvent(capacity *int) Event {
	return Event{
		ID:                   "evt-1",
		Title:                "Youth Retreat",
		StartsAt:             testNow.Add(72 * time.Hour),
		Capacity:             capacity,
		RegistrationRequired: true,
		Status:               EventScheduled,
	}
}

func TestRegister_FullEventScenario(t *testing.T) {
	event := openEvent(intPtr(2))
	event.CurrentAttendees = 2
	event.Registrants = []string{"a", "b"}

	if CanRegister(event, "c", testNow) {
		t.Fatal("expected full event to block registration")
	}
	got, err := Register(event, "c", testNow)
	if !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("expected ErrRegistrationClosed, got %v", err)
	}
	if reason := RegistrationReasonOf(err); reason != ReasonFull {
		t.Fatalf("expected reason %q, got %q", ReasonFull, reason)
	}
	if got.CurrentAttendees != 2 || len(got.Registrants) != 2 {
		t.Fatalf("expected unchanged state, got %+v", got)
	}
	if len(event.Registrants) != 2 {
		t.Fatal("input event must not be mutated")
	}
}

func TestRegister_TwiceFailsAlreadyRegistered(t *testing.T) {
	event := openEvent(intPtr(10))
	first, err := Register(event, "m1", testNow)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if first.CurrentAttendees != 1 || !first.IsRegistered("m1") {
		t.Fatalf("expected m1 registered once, got %+v", first)
	}
	second, err := Register(first, "m1", testNow)
	if RegistrationReasonOf(err) != ReasonAlreadyRegistered {
		t.Fatalf("expected already_registered, got %v", err)
	}
	if second.CurrentAttendees != 1 {
		t.Fatalf("expected attendee count unchanged, got %d", second.CurrentAttendees)
	}
}

func TestRegister_DeadlinePassedRegardlessOfCapacity(t *testing.T) {
	for _, capacity := range []*int{nil, intPtr(100)} {
		event := openEvent(capacity)
		event.RegistrationDeadline = timePtr(testNow.Add(-time.Minute))

		if CanRegister(event, "m1", testNow) {
			t.Fatal("expected deadline to close registration")
		}
		_, err := Register(event, "m1", testNow)
		if RegistrationReasonOf(err) != ReasonDeadlinePassed {
			t.Fatalf("expected deadline_passed, got %v", err)
		}
	}
}

func TestRegister_DeadlineIsInclusive(t *testing.T) {
	event := openEvent(nil)
	event.RegistrationDeadline = timePtr(testNow)
	if !CanRegister(event, "m1", testNow) {
		t.Fatal("expected registration allowed exactly at the deadline")
	}
}

func TestRegister_DeadlineReportedBeforeFull(t *testing.T) {
	event := openEvent(intPtr(1))
	event.CurrentAttendees = 1
	event.Registrants = []string{"a"}
	event.RegistrationDeadline = timePtr(testNow.Add(-time.Hour))
	if reason := RegistrationBlock(event, "b", testNow); reason != ReasonDeadlinePassed {
		t.Fatalf("expected deadline_passed, got %q", reason)
	}
}

func TestRegister_NotRequiredAndClosed(t *testing.T) {
	event := openEvent(nil)
	event.RegistrationRequired = false
	if reason := RegistrationBlock(event, "m1", testNow); reason != ReasonNotRequired {
		t.Fatalf("expected not_required, got %q", reason)
	}
	if _, err := Unregister(event, "m1", testNow); RegistrationReasonOf(err) != ReasonNotRequired {
		t.Fatalf("expected not_required on unregister, got %v", err)
	}

	for _, status := range []EventStatus{EventCompleted, EventCancelled} {
		closed := openEvent(nil)
		closed.Status = status
		if _, err := Register(closed, "m1", testNow); RegistrationReasonOf(err) != ReasonEventClosed {
			t.Fatalf("status %s: expected event_closed, got %v", status, err)
		}
	}
}

func TestUnregister_NotRegistered(t *testing.T) {
	event := openEvent(nil)
	_, err := Unregister(event, "ghost", testNow)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestUnregister_FloorsAtZero(t *testing.T) {
	event := openEvent(nil)
	event.Registrants = []string{"m1"}
	event.CurrentAttendees = 0

	got, err := Unregister(event, "m1", testNow)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.CurrentAttendees != 0 {
		t.Fatalf("expected counter floored at 0, got %d", got.CurrentAttendees)
	}
	if got.IsRegistered("m1") {
		t.Fatal("expected m1 removed")
	}
	if _, err := Unregister(got, "m1", testNow); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected second unregister to fail, got %v", err)
	}
}

func TestUnregister_PaddedMemberID(t *testing.T) {
	event := openEvent(nil)
	registered, err := Register(event, "  m1 ", testNow)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !registered.IsRegistered(" m1") {
		t.Fatal("expected padded id to match the stored registrant")
	}
	got, err := Unregister(registered, "  m1 ", testNow)
	if err != nil {
		t.Fatalf("expected padded id to unregister, got %v", err)
	}
	if got.CurrentAttendees != 0 || len(got.Registrants) != 0 {
		t.Fatalf("expected registrant removed, got %+v", got)
	}
}

func TestRegistrationInvariant_RandomSequences(t *testing.T) {
	const capacity = 5
	rng := rand.New(rand.NewSource(42))
	members := make([]string, 8)
	for i := range members {
		members[i] = fmt.Sprintf("m%d", i)
	}

	event := openEvent(intPtr(capacity))
	for step := 0; step < 2000; step++ {
		member := members[rng.Intn(len(members))]
		var next Event
		var err error
		if rng.Intn(2) == 0 {
			next, err = Register(event, member, testNow)
		} else {
			next, err = Unregister(event, member, testNow)
		}
		if err == nil {
			event = next
		} else if next.CurrentAttendees != event.CurrentAttendees {
			t.Fatalf("step %d: failed operation changed the counter", step)
		}

		if event.CurrentAttendees < 0 || event.CurrentAttendees > capacity {
			t.Fatalf("step %d: counter %d out of bounds", step, event.CurrentAttendees)
		}
		if event.CurrentAttendees != len(event.Registrants) {
			t.Fatalf("step %d: counter %d != registrants %d", step, event.CurrentAttendees, len(event.Registrants))
		}
	}
}

func TestEvent_Validate(t *testing.T) {
	event := openEvent(intPtr(10))
	if err := event.Validate(); err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}

	bad := openEvent(intPtr(0))
	bad.Title = ""
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error")
	}

	backwards := openEvent(nil)
	backwards.EndsAt = timePtr(backwards.StartsAt.Add(-time.Hour))
	if err := backwards.Validate(); err == nil {
		t.Fatal("expected ends-before-start to fail")
	}
}

func TestRole_Capabilities(t *testing.T) {
	role, err := ParseRole(" Leader ")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !role.Can(CapManageEvents) || role.Can(CapViewDonations) {
		t.Fatalf("unexpected capability set for %s", role)
	}
	if RoleMember.Can(CapManageEvents) {
		t.Fatal("member must not manage events")
	}
	if !RoleAdmin.Can(CapManageMembers) {
		t.Fatal("admin must manage members")
	}
	if _, err := ParseRole("deacon"); err == nil {
		t.Fatal("expected unknown role error")
	}
}
