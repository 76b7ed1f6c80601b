package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mailburst/internal/events"
	"mailburst/internal/metrics"
	"mailburst/internal/models"
	"mailburst/internal/provider"
	"mailburst/internal/repository"
)

// CampaignMissingPrefix tags integrity failures so operators can tell a
// dangling campaign reference apart from a provider refusal
const CampaignMissingPrefix = "campaign missing"

// OutcomePublisher receives the final state of each resolved item
type OutcomePublisher interface {
	PublishOutcome(event events.OutcomeEvent) error
}

// DispatcherConfig tunes a Dispatcher
type DispatcherConfig struct {
	SendTimeout   time.Duration
	Concurrency   int
	BatchLimit    int
	SendingDomain string
	FromAddress   string
	FromName      string
}

// Report summarizes one sweep. Skipped items stay scheduled and are picked
// up again by a later sweep.
type Report struct {
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Dispatcher runs the recurring due-item sweep. It is the only component
// that talks to the mail provider.
type Dispatcher struct {
	campaigns repository.CampaignRepository
	items     repository.ItemRepository
	provider  provider.Provider
	publisher OutcomePublisher
	metrics   *metrics.Metrics
	cfg       DispatcherConfig

	mu   sync.Mutex
	rand *rand.Rand
}

// NewDispatcher creates a dispatcher. publisher and m may be nil.
func NewDispatcher(
	campaigns repository.CampaignRepository,
	items repository.ItemRepository,
	p provider.Provider,
	publisher OutcomePublisher,
	m *metrics.Metrics,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 200
	}
	if cfg.FromName == "" {
		cfg.FromName = "Campaign Sender"
	}

	return &Dispatcher{
		campaigns: campaigns,
		items:     items,
		provider:  p,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sweep finds due items and resolves each one independently. An empty queue
// is a successful sweep. Item failures never abort the sweep; only a failure
// to read the queue itself is returned as an error.
func (d *Dispatcher) Sweep(ctx context.Context, now time.Time) (*Report, error) {
	start := time.Now()

	due, err := d.items.FindDue(ctx, now, d.cfg.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to find due items: %w", err)
	}

	report := &Report{Due: len(due)}
	if d.metrics != nil {
		d.metrics.SweepsTotal.Inc()
		d.metrics.SweepDueItems.Set(float64(len(due)))
		defer func() { d.metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()
	}

	if len(due) == 0 {
		return report, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, d.cfg.Concurrency)
	)

	for _, item := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(item *models.QueueItem) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := d.processItem(ctx, item)

			mu.Lock()
			switch outcome {
			case models.ItemStatusSent:
				report.Sent++
			case models.ItemStatusFailed:
				report.Failed++
			default:
				report.Skipped++
				if d.metrics != nil {
					d.metrics.ItemsSkippedTotal.Inc()
				}
			}
			mu.Unlock()
		}(item)
	}

	wg.Wait()

	logrus.WithFields(logrus.Fields{
		"due":     report.Due,
		"sent":    report.Sent,
		"failed":  report.Failed,
		"skipped": report.Skipped,
	}).Info("Sweep completed")

	return report, nil
}

// processItem resolves a single item and returns the status it ended up in,
// or ItemStatusScheduled when it was left for a later sweep. Any panic is
// converted into a failed item so siblings keep going.
func (d *Dispatcher) processItem(ctx context.Context, item *models.QueueItem) (outcome models.ItemStatus) {
	outcome = models.ItemStatusScheduled

	log := logrus.WithFields(logrus.Fields{
		"item_id":     item.ID,
		"campaign_id": item.CampaignID,
	})

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic while processing item: %v", r)
			if d.fail(ctx, item, fmt.Sprintf("internal error: %v", r), metrics.ReasonProvider) {
				outcome = models.ItemStatusFailed
			}
		}
	}()

	// Shutdown before the provider call: leave the item scheduled
	if ctx.Err() != nil {
		return outcome
	}

	campaign, err := d.campaigns.GetByID(ctx, item.CampaignID)
	if errors.Is(err, repository.ErrNotFound) {
		// Data-integrity fault, not a delivery fault
		log.Warn("Campaign does not exist, failing item")
		if d.fail(ctx, item, fmt.Sprintf("%s: %s", CampaignMissingPrefix, item.CampaignID), metrics.ReasonMissing) {
			outcome = models.ItemStatusFailed
		}
		return outcome
	}
	if err != nil {
		// Transient store trouble: retry on a later sweep
		log.WithError(err).Error("Failed to resolve campaign, leaving item scheduled")
		return outcome
	}

	email := &provider.Email{
		From:     d.fromAddress(campaign),
		To:       campaign.RecipientEmail,
		Subject:  campaign.SubjectOrDefault(provider.DefaultSubject),
		HTMLBody: provider.RenderHTML(campaign.MessageBody),
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	sendErr := d.provider.Send(sendCtx, email)
	cancel()

	if sendErr != nil {
		// The sweep was cancelled mid-call: the provider may or may not
		// have acted, but the item must stay claimable, so do not mark it.
		if ctx.Err() != nil && errors.Is(sendErr, context.Canceled) {
			log.Warn("Sweep cancelled during send, leaving item scheduled")
			return outcome
		}

		reason := metrics.ReasonProvider
		msg := sendErr.Error()
		if errors.Is(sendErr, context.DeadlineExceeded) {
			reason = metrics.ReasonTimeout
			msg = fmt.Sprintf("send timed out after %s", d.cfg.SendTimeout)
		}

		log.WithError(sendErr).Warn("Delivery failed")
		if d.fail(ctx, item, msg, reason) {
			outcome = models.ItemStatusFailed
		}
		return outcome
	}

	sentAt := time.Now().UTC()
	claimed, err := d.items.MarkSent(ctx, item.ID, sentAt)
	if err != nil {
		log.WithError(err).Error("Failed to record sent item")
		return outcome
	}
	if !claimed {
		// Another sweep resolved it first
		log.Debug("Item already terminal, skipping")
		return outcome
	}

	log.Info("Item delivered")
	if d.metrics != nil {
		d.metrics.ItemsSentTotal.Inc()
	}
	d.publish(events.OutcomeEvent{
		ItemID:     item.ID,
		CampaignID: item.CampaignID,
		Status:     models.ItemStatusSent,
		ResolvedAt: sentAt,
	})

	return models.ItemStatusSent
}

// fail records a failed item; returns whether this caller won the transition
func (d *Dispatcher) fail(ctx context.Context, item *models.QueueItem, msg, reason string) bool {
	claimed, err := d.items.MarkFailed(ctx, item.ID, msg)
	if err != nil {
		logrus.WithError(err).WithField("item_id", item.ID).Error("Failed to record failed item")
		return false
	}
	if !claimed {
		return false
	}

	if d.metrics != nil {
		d.metrics.ItemsFailedTotal.WithLabelValues(reason).Inc()
	}
	d.publish(events.OutcomeEvent{
		ItemID:     item.ID,
		CampaignID: item.CampaignID,
		Status:     models.ItemStatusFailed,
		Error:      msg,
		ResolvedAt: time.Now().UTC(),
	})

	return true
}

// publish sends an outcome event, best-effort
func (d *Dispatcher) publish(event events.OutcomeEvent) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishOutcome(event); err != nil {
		logrus.WithError(err).WithField("item_id", event.ItemID).Warn("Failed to publish outcome event")
	}
}

// fromAddress synthesizes the sender for one campaign
func (d *Dispatcher) fromAddress(campaign *models.Campaign) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return provider.BuildFrom(
		campaign.FromNameOrDefault(d.cfg.FromName),
		d.cfg.SendingDomain,
		d.cfg.FromAddress,
		d.rand,
	)
}
