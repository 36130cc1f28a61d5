package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/config"
)

type maintenanceClientStub struct {
	completeCalls int
	expireCalls   int
	err           error
}

func (s *maintenanceClientStub) CompletePastEvents(ctx context.Context) (int, error) {
	s.completeCalls++
	return 1, s.err
}

func (s *maintenanceClientStub) ExpireStaleDonations(ctx context.Context) (int, error) {
	s.expireCalls++
	return 2, s.err
}

func newTestJobs(client MaintenanceClient) *Jobs {
	return NewJobs(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestJobs_CallMaintenanceEndpoints(t *testing.T) {
	client := &maintenanceClientStub{}
	jobs := newTestJobs(client)

	jobs.CompletePastEvents()
	jobs.ExpireStaleDonations()

	if client.completeCalls != 1 || client.expireCalls != 1 {
		t.Fatalf("expected one call each, got %d and %d", client.completeCalls, client.expireCalls)
	}
}

func TestJobs_ErrorsAreSwallowed(t *testing.T) {
	client := &maintenanceClientStub{err: errors.New("giving service returned status 500")}
	jobs := newTestJobs(client)

	jobs.CompletePastEvents()
	jobs.ExpireStaleDonations()

	if client.completeCalls != 1 || client.expireCalls != 1 {
		t.Fatal("expected jobs to run despite errors")
	}
}

func TestScheduler_SkipsInvalidSchedules(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{EventSweepSchedule: "*/15 * * * *", DonationSweepSchedule: "not a schedule", BusinessTimezone: "Africa/Lagos"}
	s := NewScheduler(newTestJobs(&maintenanceClientStub{}), logger, cfg)

	if n := s.Start(); n != 1 {
		t.Fatalf("expected one scheduled job, got %d", n)
	}
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("expected scheduler to stop promptly")
	}
}

func TestRedisRateLimiter_DisabledAlwaysAllows(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, "", 5, time.Minute)
	allowed, retry, err := limiter.Allow(context.Background(), "payments", "203.0.113.7")
	if !allowed || retry != 0 || err != nil {
		t.Fatalf("expected pass-through, got %v %v %v", allowed, retry, err)
	}

	var unset *RedisRateLimiter
	if allowed, _, err := unset.Allow(context.Background(), "payments", "203.0.113.7"); !allowed || err != nil {
		t.Fatalf("expected nil limiter to allow, got %v %v", allowed, err)
	}
}
