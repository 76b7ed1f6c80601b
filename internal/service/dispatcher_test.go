package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mailburst/internal/events"
	"mailburst/internal/models"
	"mailburst/internal/provider"
	"mailburst/internal/repository"
)

// memStore is an in-memory CampaignRepository + ItemRepository with the
// same conditional-transition semantics as the SQL implementation
type memStore struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
	items     map[string]*models.QueueItem
}

func newMemStore() *memStore {
	return &memStore{
		campaigns: make(map[string]*models.Campaign),
		items:     make(map[string]*models.QueueItem),
	}
}

func (s *memStore) Create(ctx context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", id, repository.ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

func (s *memStore) CreateBatch(ctx context.Context, campaignID string, timestamps []time.Time) ([]*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var created []*models.QueueItem
	for i, ts := range timestamps {
		item := &models.QueueItem{
			ID:          fmt.Sprintf("%s-item-%d", campaignID, i),
			CampaignID:  campaignID,
			ScheduledAt: ts,
			Status:      models.ItemStatusScheduled,
		}
		s.items[item.ID] = item
		created = append(created, item)
	}
	return created, nil
}

func (s *memStore) GetItemByID(ctx context.Context, id string) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("scheduled item %s: %w", id, repository.ErrNotFound)
	}
	copied := *item
	return &copied, nil
}

// GetByID on ItemRepository; shadowed name disambiguated via embedding below

func (s *memStore) FindDue(ctx context.Context, asOf time.Time, limit int) ([]*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*models.QueueItem
	for _, item := range s.items {
		if item.Status == models.ItemStatusScheduled && !item.ScheduledAt.After(asOf) {
			copied := *item
			due = append(due, &copied)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

func (s *memStore) MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false, fmt.Errorf("scheduled item %s: %w", id, repository.ErrNotFound)
	}
	if item.Status != models.ItemStatusScheduled {
		return false, nil
	}
	item.Status = models.ItemStatusSent
	item.SentAt = &sentAt
	return true, nil
}

func (s *memStore) MarkFailed(ctx context.Context, id string, msg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false, fmt.Errorf("scheduled item %s: %w", id, repository.ErrNotFound)
	}
	if item.Status != models.ItemStatusScheduled {
		return false, nil
	}
	truncated := models.TruncateError(msg)
	item.Status = models.ItemStatusFailed
	item.ErrorMessage = &truncated
	return true, nil
}

func (s *memStore) ListScheduled(ctx context.Context) ([]*models.ScheduledItem, error) {
	return nil, nil
}

func (s *memStore) CountByStatus(ctx context.Context, campaignID string) (*models.CampaignStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &models.CampaignStats{}
	for _, item := range s.items {
		if item.CampaignID != campaignID {
			continue
		}
		stats.Total++
		switch item.Status {
		case models.ItemStatusScheduled:
			stats.Scheduled++
		case models.ItemStatusSent:
			stats.Sent++
		case models.ItemStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// itemRepo adapts memStore to repository.ItemRepository
type itemRepo struct{ *memStore }

func (r itemRepo) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	return r.GetItemByID(ctx, id)
}

// fakeProvider delegates to a function so each test controls delivery
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, email *provider.Email) error
}

func (p *fakeProvider) Send(ctx context.Context, email *provider.Email) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.fn != nil {
		return p.fn(ctx, email)
	}
	return nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakePublisher collects outcome events
type fakePublisher struct {
	mu     sync.Mutex
	events []events.OutcomeEvent
}

func (p *fakePublisher) PublishOutcome(event events.OutcomeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Events() []events.OutcomeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.OutcomeEvent(nil), p.events...)
}

func setupDispatcherTest(store *memStore, p provider.Provider, pub OutcomePublisher, cfg DispatcherConfig) *Dispatcher {
	return NewDispatcher(store, itemRepo{store}, p, pub, nil, cfg)
}

func seedCampaign(store *memStore, id string, count int, due time.Time) {
	store.campaigns[id] = &models.Campaign{
		ID:             id,
		RecipientEmail: "user@example.com",
		MessageBody:    "hello\nworld",
		EmailCount:     count,
	}
	timestamps := make([]time.Time, count)
	for i := range timestamps {
		timestamps[i] = due
	}
	store.CreateBatch(context.Background(), id, timestamps)
}

func TestSweep_DeliversDueItems(t *testing.T) {
	store := newMemStore()
	seedCampaign(store, "camp-1", 3, time.Now().Add(-time.Minute))

	pub := &fakePublisher{}
	d := setupDispatcherTest(store, &fakeProvider{}, pub, DispatcherConfig{SendingDomain: "example.org"})

	report, err := d.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Due != 3 || report.Sent != 3 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for id, item := range store.items {
		if item.Status != models.ItemStatusSent {
			t.Errorf("item %s: expected sent, got %s", id, item.Status)
		}
		if item.SentAt == nil {
			t.Errorf("item %s: expected sent_at to be set", id)
		}
	}
	if got := len(pub.Events()); got != 3 {
		t.Errorf("expected 3 outcome events, got %d", got)
	}
}

func TestSweep_EmptyQueueIsSuccess(t *testing.T) {
	d := setupDispatcherTest(newMemStore(), &fakeProvider{}, nil, DispatcherConfig{})

	report, err := d.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Due != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestSweep_ProviderFailureRecordsReason(t *testing.T) {
	store := newMemStore()
	seedCampaign(store, "camp-1", 3, time.Now().Add(-time.Minute))

	p := &fakeProvider{fn: func(ctx context.Context, email *provider.Email) error {
		return errors.New("mailbox unavailable")
	}}
	d := setupDispatcherTest(store, p, nil, DispatcherConfig{})

	report, err := d.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Failed != 3 || report.Sent != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for id, item := range store.items {
		if item.Status != models.ItemStatusFailed {
			t.Errorf("item %s: expected failed, got %s", id, item.Status)
		}
		if item.ErrorMessage == nil || !strings.Contains(*item.ErrorMessage, "mailbox unavailable") {
			t.Errorf("item %s: expected provider reason, got %v", id, item.ErrorMessage)
		}
	}

	// The campaign record itself is untouched
	campaign, err := store.GetByID(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("campaign should still exist: %v", err)
	}
	if campaign.MessageBody != "hello\nworld" {
		t.Error("campaign record was modified")
	}
}

func TestSweep_MissingCampaignIsIsolated(t *testing.T) {
	store := newMemStore()
	seedCampaign(store, "camp-1", 1, time.Now().Add(-time.Minute))

	// An item whose campaign was never committed
	store.items["orphan"] = &models.QueueItem{
		ID:          "orphan",
		CampaignID:  "ghost",
		ScheduledAt: time.Now().Add(-time.Minute),
		Status:      models.ItemStatusScheduled,
	}

	d := setupDispatcherTest(store, &fakeProvider{}, nil, DispatcherConfig{})

	report, err := d.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Sent != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	orphan := store.items["orphan"]
	if orphan.Status != models.ItemStatusFailed {
		t.Fatalf("expected orphan failed, got %s", orphan.Status)
	}
	if orphan.ErrorMessage == nil || !strings.HasPrefix(*orphan.ErrorMessage, CampaignMissingPrefix) {
		t.Errorf("expected integrity tag, got %v", orphan.ErrorMessage)
	}
}

func TestSweep_SendTimeoutFailsItem(t *testing.T) {
	store := newMemStore()
	seedCampaign(store, "camp-1", 1, time.Now().Add(-time.Minute))

	p := &fakeProvider{fn: func(ctx context.Context, email *provider.Email) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	d := setupDispatcherTest(store, p, nil, DispatcherConfig{SendTimeout: 20 * time.Millisecond})

	report, err := d.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	item := store.items["camp-1-item-0"]
	if item.ErrorMessage == nil || !strings.Contains(*item.ErrorMessage, "timed out") {
		t.Errorf("expected timeout reason, got %v", item.ErrorMessage)
	}
}

func TestSweep_CancellationLeavesItemsScheduled(t *testing.T) {
	store := newMemStore()
	seedCampaign(store, "camp-1", 2, time.Now().Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := setupDispatcherTest(store, &fakeProvider{}, nil, DispatcherConfig{})

	report, err := d.Sweep(ctx, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Skipped != 2 {
		t.Fatalf("expected both items skipped, got %+v", report)
	}
	for id, item := range store.items {
		if item.Status != models.ItemStatusScheduled {
			t.Errorf("item %s: expected still scheduled, got %s", id, item.Status)
		}
	}
}

func TestSweep_ConcurrentSweepsSingleDelivery(t *testing.T) {
	store := newMemStore()
	seedCampaign(store, "camp-1", 1, time.Now().Add(-time.Minute))

	p := &fakeProvider{}
	d := setupDispatcherTest(store, p, nil, DispatcherConfig{})

	var wg sync.WaitGroup
	reports := make([]*Report, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			report, err := d.Sweep(context.Background(), time.Now())
			if err != nil {
				t.Errorf("sweep %d failed: %v", i, err)
				return
			}
			reports[i] = report
		}(i)
	}
	wg.Wait()

	totalSent := reports[0].Sent + reports[1].Sent
	if totalSent != 1 {
		t.Fatalf("expected exactly one recorded delivery, got %d", totalSent)
	}
	if store.items["camp-1-item-0"].Status != models.ItemStatusSent {
		t.Fatalf("expected item sent, got %s", store.items["camp-1-item-0"].Status)
	}

	// Marking is exactly-once; the send itself is not. Overlapping sweeps
	// that both pick up the item each call the provider, and the loser only
	// finds out at MarkSent.
	if calls := p.Calls(); calls < 1 || calls > 2 {
		t.Fatalf("expected 1 or 2 provider calls, got %d", calls)
	}
}

func TestMarkTransition_ExactlyOneWinner(t *testing.T) {
	store := newMemStore()
	seedCampaign(store, "camp-1", 1, time.Now().Add(-time.Minute))
	repo := itemRepo{store}

	var wg sync.WaitGroup
	results := make([]bool, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		claimed, err := repo.MarkSent(context.Background(), "camp-1-item-0", time.Now())
		if err != nil {
			t.Errorf("MarkSent failed: %v", err)
		}
		results[0] = claimed
	}()
	go func() {
		defer wg.Done()
		claimed, err := repo.MarkFailed(context.Background(), "camp-1-item-0", "boom")
		if err != nil {
			t.Errorf("MarkFailed failed: %v", err)
		}
		results[1] = claimed
	}()
	wg.Wait()

	if results[0] == results[1] {
		t.Fatalf("expected exactly one winner, got sent=%v failed=%v", results[0], results[1])
	}

	// Repeating the winning outcome is a quiet no-op
	item := store.items["camp-1-item-0"]
	if item.Status == models.ItemStatusSent {
		claimed, err := repo.MarkSent(context.Background(), "camp-1-item-0", time.Now())
		if err != nil || claimed {
			t.Errorf("repeat MarkSent: expected no-op, got claimed=%v err=%v", claimed, err)
		}
	}
}

func TestSweep_PanicIsContainedToItem(t *testing.T) {
	store := newMemStore()
	seedCampaign(store, "camp-1", 2, time.Now().Add(-time.Minute))

	var once sync.Once
	p := &fakeProvider{fn: func(ctx context.Context, email *provider.Email) error {
		var bad error
		once.Do(func() { panic("provider blew up") })
		return bad
	}}
	d := setupDispatcherTest(store, p, nil, DispatcherConfig{Concurrency: 1})

	report, err := d.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Sent != 1 || report.Failed != 1 {
		t.Fatalf("expected one sent and one failed, got %+v", report)
	}
}
