package main

import (
	"context"
	"errors"
	"io"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/trywear-labs/storefront-backend/pkg/config"
	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (f *fakeRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return fakePublishResult{}
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}

type fakeGuard struct {
	processed map[uuid.UUID]bool
	deleted   []uuid.UUID
}

func (f *fakeGuard) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if f.processed == nil {
		f.processed = map[uuid.UUID]bool{}
	}
	if f.processed[eventID] {
		return true, nil
	}
	f.processed[eventID] = true
	return false, nil
}

func (f *fakeGuard) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	delete(f.processed, eventID)
	f.deleted = append(f.deleted, eventID)
	return nil
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, guard publishGuard) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 10
	cfg.Outbox.MaxAttempts = 3
	cfg.Outbox.PollIntervalMS = 1
	service, err := NewService(ServiceParams{
		Config:    cfg,
		Logger:    logger.New(logger.Options{Output: io.Discard}),
		Repo:      repo,
		Publisher: pub,
		Guard:     guard,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func saleEvent() models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventSaleCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"order_id":"x"}`),
	}
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	first := saleEvent()
	second := saleEvent()
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{}

	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.published); got != 2 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.published[0] != first.ID || repo.published[1] != second.ID {
		t.Fatalf("events published out of order")
	}
	if got := len(pub.messages); got != 2 {
		t.Fatalf("unexpected number of messages: %d", got)
	}
	if pub.messages[0].Attributes["event_type"] != string(enums.EventSaleCompleted) {
		t.Fatalf("unexpected event_type attribute: %q", pub.messages[0].Attributes["event_type"])
	}
	if pub.messages[0].Attributes["aggregate_id"] != first.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute")
	}
}

func TestProcessBatchContinuesAfterPublishFailure(t *testing.T) {
	first := saleEvent()
	second := saleEvent()
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}

	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 || repo.failed[0] != first.ID {
		t.Fatalf("failed rows wrong: %v", repo.failed)
	}
	if got := len(repo.published); got != 1 || repo.published[0] != second.ID {
		t.Fatalf("published rows wrong: %v", repo.published)
	}
}

func TestProcessBatchEmptyIsIdle(t *testing.T) {
	repo := &fakeRepo{}
	service := newTestService(t, repo, &fakePublisher{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected idle batch")
	}
}

func TestGuardSkipsRepublishButStillMarks(t *testing.T) {
	event := saleEvent()
	guard := &fakeGuard{processed: map[uuid.UUID]bool{event.ID: true}}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}

	service := newTestService(t, repo, pub, guard)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(pub.messages); got != 0 {
		t.Fatalf("expected no republish, got %d messages", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("expected event marked published, got %d", got)
	}
}

func TestGuardReleasedOnPublishFailure(t *testing.T) {
	event := saleEvent()
	guard := &fakeGuard{}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("broker down")}}}

	service := newTestService(t, repo, pub, guard)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(guard.deleted); got != 1 || guard.deleted[0] != event.ID {
		t.Fatalf("expected guard released for failed event, got %v", guard.deleted)
	}
	if guard.processed[event.ID] {
		t.Fatalf("guard entry should be cleared so the retry can publish")
	}
}

func TestFetchErrorSurfaces(t *testing.T) {
	repo := &fakeRepo{fetchErr: errors.New("db down")}
	service := newTestService(t, repo, &fakePublisher{}, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatalf("expected fetch error to surface")
	}
}
