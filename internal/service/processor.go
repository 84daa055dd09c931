package service

import (
	"context"
	"fmt"
	"time"

	"pass-service/internal/models"
	"pass-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IssuanceStore is the persistence surface for scheduled issuances. The
// conditional claim is the only mutation path for existing records.
type IssuanceStore interface {
	CreateScheduledIssuance(ctx context.Context, si *models.ScheduledIssuance) error
	GetScheduledIssuance(ctx context.Context, id int64) (*models.ScheduledIssuance, error)
	ClaimScheduledIssuance(ctx context.Context, id int64, now time.Time) (bool, error)
	FinalizeScheduledIssuance(ctx context.Context, id, passID int64) error
	ListOverdueUnprocessed(ctx context.Context, now time.Time) ([]models.ScheduledIssuance, error)
	ListClaimedWithoutPass(ctx context.Context) ([]models.ScheduledIssuance, error)
}

// ConfigStore reads seller configurations
type ConfigStore interface {
	GetPassConfig(ctx context.Context, id string) (*models.PassConfig, error)
	GetPassConfigBySellerID(ctx context.Context, sellerID string) (*models.PassConfig, error)
}

// AnalyticsStore updates the delivery flags on the analytics snapshot
type AnalyticsStore interface {
	MarkWelcomeEmailSent(ctx context.Context, passID int64) error
}

// EventPublisher publishes pipeline lifecycle events. Publish failures are
// never fatal to the pipeline.
type EventPublisher interface {
	PublishOrderReconciled(ctx context.Context, event *models.OrderReconciledEvent) error
	PublishIssuanceScheduled(ctx context.Context, event *models.IssuanceScheduledEvent) error
	PublishPassIssued(ctx context.Context, event *models.PassIssuedEvent) error
	PublishNotificationSent(ctx context.Context, event *models.NotificationSentEvent) error
}

// Processor drives the scheduled issuance pipeline: storing future
// activations, handling push triggers from the dispatch service, and
// sweeping for overdue records the push path missed.
type Processor struct {
	issuances IssuanceStore
	configs   ConfigStore
	analytics AnalyticsStore
	issuer    *Issuer
	notifier  *Notifier
	dispatch  DispatchClient
	publisher EventPublisher
	logger    *zap.Logger
}

// NewProcessor creates a new issuance processor
func NewProcessor(
	issuances IssuanceStore,
	configs ConfigStore,
	analytics AnalyticsStore,
	issuer *Issuer,
	notifier *Notifier,
	dispatch DispatchClient,
	publisher EventPublisher,
) *Processor {
	return &Processor{
		issuances: issuances,
		configs:   configs,
		analytics: analytics,
		issuer:    issuer,
		notifier:  notifier,
		dispatch:  dispatch,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// ScheduleRequest asks for a pass to be activated at a future instant
type ScheduleRequest struct {
	ScheduledFor   time.Time
	ClientName     string
	ClientEmail    string
	Guests         int
	Days           int
	SellerID       string
	ConfigID       string
	DeliveryMethod string
}

// ScheduleIssuance validates and stores a future activation, then enqueues
// the push trigger on the delayed-dispatch service. An enqueue failure is
// non-fatal: the fallback sweep picks the record up.
func (p *Processor) ScheduleIssuance(ctx context.Context, req *ScheduleRequest) (*models.ScheduledIssuance, error) {
	ctx, span := util.StartSpan(ctx, "Processor.ScheduleIssuance")
	defer span.End()

	cfg, err := p.resolveConfig(ctx, req.SellerID, req.ConfigID)
	if err != nil {
		return nil, err
	}
	if req.Guests < cfg.MinGuests || req.Guests > cfg.MaxGuests ||
		req.Days < cfg.MinDays || req.Days > cfg.MaxDays {
		return nil, fmt.Errorf("%w: guests=%d days=%d", ErrInvalidGuestsOrDays, req.Guests, req.Days)
	}

	si := &models.ScheduledIssuance{
		ScheduledFor:   req.ScheduledFor,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		Guests:         req.Guests,
		Days:           req.Days,
		SellerID:       req.SellerID,
		ConfigID:       req.ConfigID,
		DeliveryMethod: req.DeliveryMethod,
	}
	if err := p.issuances.CreateScheduledIssuance(ctx, si); err != nil {
		return nil, fmt.Errorf("failed to create scheduled issuance: %w", err)
	}

	util.IssuancesScheduledTotal.Inc()
	p.logger.Info("Issuance scheduled",
		zap.Int64("issuance_id", si.ID),
		zap.Time("scheduled_for", si.ScheduledFor))

	delay := time.Until(req.ScheduledFor)
	if delay < 0 {
		delay = 0
	}
	if p.dispatch != nil {
		if err := p.dispatch.EnqueueIssuanceTrigger(ctx, delay, si.ID); err != nil {
			util.DispatchEnqueueFailedTotal.Inc()
			p.logger.Warn("Dispatch enqueue failed, sweep will pick this up",
				zap.Int64("issuance_id", si.ID),
				zap.Error(err))
		}
	}

	if p.publisher != nil {
		event := &models.IssuanceScheduledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeIssuanceScheduled,
				Timestamp: time.Now(),
			},
			ScheduledIssuanceID: si.ID,
			ScheduledFor:        si.ScheduledFor,
			SellerID:            si.SellerID,
		}
		if err := p.publisher.PublishIssuanceScheduled(ctx, event); err != nil {
			p.logger.Error("Failed to publish IssuanceScheduled event", zap.Error(err))
		}
	}

	return si, nil
}

// HandleScheduledTrigger is the push path, invoked by the dispatch service
// at roughly the scheduled time. Losing the claim to a concurrent attempt is
// a success no-op; the dispatch service may deliver the trigger more than
// once.
func (p *Processor) HandleScheduledTrigger(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "Processor.HandleScheduledTrigger")
	defer span.End()

	rec, err := p.issuances.GetScheduledIssuance(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load scheduled issuance %d: %w", id, err)
	}
	if rec == nil {
		return ErrIssuanceNotFound
	}

	claimed, err := p.issuances.ClaimScheduledIssuance(ctx, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to claim scheduled issuance %d: %w", id, err)
	}
	if !claimed {
		util.ClaimConflictsTotal.Inc()
		p.logger.Info("Scheduled issuance already claimed",
			zap.Int64("issuance_id", id))
		return nil
	}

	return p.processClaimed(ctx, rec)
}

// SweepResult summarizes one fallback sweep
type SweepResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// SweepOverdue claims and processes every overdue unclaimed record, oldest
// first. One record's failure never stops the sweep; it is counted and the
// sweep moves on.
func (p *Processor) SweepOverdue(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx, span := util.StartSpan(ctx, "Processor.SweepOverdue")
	defer span.End()

	util.SweepRunsTotal.Inc()

	var result SweepResult
	records, err := p.issuances.ListOverdueUnprocessed(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to list overdue issuances: %w", err)
	}

	for i := range records {
		rec := records[i]

		claimed, err := p.issuances.ClaimScheduledIssuance(ctx, rec.ID, time.Now().UTC())
		if err != nil {
			result.Errors++
			util.SweepErrorsTotal.Inc()
			p.logger.Error("Sweep claim failed",
				zap.Int64("issuance_id", rec.ID),
				zap.Error(err))
			continue
		}
		if !claimed {
			// Lost the race to a push trigger or another sweep. Fine.
			util.ClaimConflictsTotal.Inc()
			continue
		}

		if err := p.processClaimed(ctx, &rec); err != nil {
			result.Errors++
			util.SweepErrorsTotal.Inc()
			continue
		}

		result.Processed++
		util.SweepProcessedTotal.Inc()
	}

	p.refreshAnomalyGauge(ctx)

	p.logger.Info("Sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors))
	return result, nil
}

// IssueImmediate runs the issuance path for orders with no future schedule
func (p *Processor) IssueImmediate(ctx context.Context, ord *models.Order) (*IssueResult, error) {
	ctx, span := util.StartSpan(ctx, "Processor.IssueImmediate")
	defer span.End()

	cfg, err := p.resolveConfig(ctx, models.SellerSystem, models.ConfigDefault)
	if err != nil {
		return nil, err
	}

	req := &IssueRequest{
		CustomerName:   ord.CustomerName,
		CustomerEmail:  ord.CustomerEmail,
		Guests:         ord.Guests,
		Days:           ord.Days,
		SellerID:       models.SellerSystem,
		DeliveryMethod: ord.DeliveryMethod,
		Origin:         OriginCheckout,
		ActivatedAt:    time.Now().UTC(),
	}

	return p.issueAndNotify(ctx, req, cfg, 0)
}

// processClaimed runs the issue-notify sequence for a record this invocation
// just claimed. A failure here leaves the record processed with no pass,
// which is surfaced as a critical anomaly rather than silently retried: a
// blind retry could double-issue against a delayed success.
func (p *Processor) processClaimed(ctx context.Context, rec *models.ScheduledIssuance) error {
	start := time.Now()
	defer func() {
		util.IssuanceProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	cfg, err := p.resolveConfig(ctx, rec.SellerID, rec.ConfigID)
	if err != nil {
		p.recordAnomaly(rec.ID, err)
		return err
	}

	origin := OriginSeller
	if rec.SellerID == models.SellerSystem {
		origin = OriginCheckout
	}

	req := &IssueRequest{
		CustomerName:   rec.ClientName,
		CustomerEmail:  rec.ClientEmail,
		Guests:         rec.Guests,
		Days:           rec.Days,
		SellerID:       rec.SellerID,
		DeliveryMethod: rec.DeliveryMethod,
		Origin:         origin,
		// Expiry runs from the actual activation instant. A record delayed
		// past its scheduled time still gets its full validity.
		ActivatedAt: time.Now().UTC(),
	}

	res, err := p.issueAndNotify(ctx, req, cfg, rec.ID)
	if err != nil {
		p.recordAnomaly(rec.ID, err)
		return err
	}

	if err := p.issuances.FinalizeScheduledIssuance(ctx, rec.ID, res.Pass.ID); err != nil {
		// The pass exists; only the back-link is missing. Log loudly, do
		// not undo anything.
		p.logger.Error("CRITICAL: failed to link scheduled issuance to pass",
			zap.Int64("issuance_id", rec.ID),
			zap.Int64("pass_id", res.Pass.ID),
			zap.Error(err))
	}

	return nil
}

// issueAndNotify mints the pass, publishes the lifecycle event, attempts the
// welcome email, and flips the sent flag only after the send resolved.
func (p *Processor) issueAndNotify(ctx context.Context, req *IssueRequest, cfg *models.PassConfig, issuanceID int64) (*IssueResult, error) {
	res, err := p.issuer.Issue(ctx, req, cfg)
	if err != nil {
		util.IssuanceFailedTotal.WithLabelValues("issue").Inc()
		return nil, err
	}

	if p.publisher != nil {
		event := &models.PassIssuedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePassIssued,
				Timestamp: time.Now(),
			},
			PassID:              res.Pass.ID,
			Code:                res.Pass.Code,
			SellerID:            res.Pass.SellerID,
			CustomerEmail:       res.Pass.CustomerEmail,
			Guests:              res.Pass.Guests,
			Days:                res.Pass.Days,
			Cost:                res.Pass.Cost,
			ExpiresAt:           res.Pass.ExpiresAt,
			ScheduledIssuanceID: issuanceID,
		}
		if err := p.publisher.PublishPassIssued(ctx, event); err != nil {
			p.logger.Error("Failed to publish PassIssued event", zap.Error(err))
		}
	}

	notifyRes := p.notifier.Notify(ctx, res.Pass, res.Credential, cfg)
	if notifyRes.Sent {
		if err := p.analytics.MarkWelcomeEmailSent(ctx, res.Pass.ID); err != nil {
			p.logger.Error("Failed to record welcome email delivery",
				zap.Int64("pass_id", res.Pass.ID),
				zap.Error(err))
		}
	}

	if p.publisher != nil {
		event := &models.NotificationSentEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeNotificationSent,
				Timestamp: time.Now(),
			},
			PassID: res.Pass.ID,
			Sent:   notifyRes.Sent,
		}
		if err := p.publisher.PublishNotificationSent(ctx, event); err != nil {
			p.logger.Error("Failed to publish NotificationSent event", zap.Error(err))
		}
	}

	return res, nil
}

// resolveConfig finds the configuration for a record: by explicit id first,
// then by seller assignment for records created before configs got ids.
func (p *Processor) resolveConfig(ctx context.Context, sellerID, configID string) (*models.PassConfig, error) {
	if configID != "" {
		cfg, err := p.configs.GetPassConfig(ctx, configID)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %q: %w", configID, err)
		}
		if cfg != nil {
			return cfg, nil
		}
	}

	if sellerID != "" && sellerID != models.SellerSystem {
		cfg, err := p.configs.GetPassConfigBySellerID(ctx, sellerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load config for seller %q: %w", sellerID, err)
		}
		if cfg != nil {
			return cfg, nil
		}
	}

	return nil, fmt.Errorf("%w: seller=%q config=%q", ErrConfigurationNotFound, sellerID, configID)
}

// recordAnomaly marks the claimed-but-not-issued state. The record stays
// processed; reissue is a manual operation.
func (p *Processor) recordAnomaly(issuanceID int64, cause error) {
	util.IssuanceFailedTotal.WithLabelValues("claimed_without_pass").Inc()
	util.ClaimedWithoutPass.Inc()
	p.logger.Error("CRITICAL: scheduled issuance claimed but no pass was created, manual reissue required",
		zap.Int64("issuance_id", issuanceID),
		zap.Error(cause))
}

// refreshAnomalyGauge re-reads the authoritative anomaly count so the gauge
// survives restarts and manual repairs.
func (p *Processor) refreshAnomalyGauge(ctx context.Context) {
	records, err := p.issuances.ListClaimedWithoutPass(ctx)
	if err != nil {
		p.logger.Warn("Failed to count claimed-without-pass records", zap.Error(err))
		return
	}
	util.ClaimedWithoutPass.Set(float64(len(records)))
}
