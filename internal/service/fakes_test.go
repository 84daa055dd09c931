package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"pass-service/internal/models"
)

// In-memory stand-ins for the store, transport, and collaborators. They
// mirror the store's nil-on-absent contract and guard everything with a
// mutex so the race tests mean something.

type fakePassStore struct {
	mu             sync.Mutex
	nextID         int64
	passes         []*models.Pass
	creds          []*models.AccessCredential
	analytics      []*models.PassAnalytics
	failCredential bool
	failAnalytics  bool
	welcomeSent    map[int64]bool
}

func newFakePassStore() *fakePassStore {
	return &fakePassStore{welcomeSent: map[int64]bool{}}
}

func (f *fakePassStore) CreatePass(ctx context.Context, pass *models.Pass) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	pass.ID = f.nextID
	pass.CreatedAt = time.Now()
	cp := *pass
	f.passes = append(f.passes, &cp)
	return nil
}

func (f *fakePassStore) CreateAccessCredential(ctx context.Context, cred *models.AccessCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCredential {
		return errors.New("credential insert failed")
	}
	f.nextID++
	cred.ID = f.nextID
	cp := *cred
	f.creds = append(f.creds, &cp)
	return nil
}

func (f *fakePassStore) CreatePassAnalytics(ctx context.Context, pa *models.PassAnalytics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAnalytics {
		return errors.New("analytics insert failed")
	}
	f.nextID++
	pa.ID = f.nextID
	cp := *pa
	f.analytics = append(f.analytics, &cp)
	return nil
}

func (f *fakePassStore) MarkWelcomeEmailSent(ctx context.Context, passID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcomeSent[passID] = true
	return nil
}

func (f *fakePassStore) passCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.passes)
}

type fakeIssuanceStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*models.ScheduledIssuance
}

func newFakeIssuanceStore() *fakeIssuanceStore {
	return &fakeIssuanceStore{records: map[int64]*models.ScheduledIssuance{}}
}

func (f *fakeIssuanceStore) CreateScheduledIssuance(ctx context.Context, si *models.ScheduledIssuance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	si.ID = f.nextID
	si.CreatedAt = time.Now()
	cp := *si
	f.records[si.ID] = &cp
	return nil
}

func (f *fakeIssuanceStore) GetScheduledIssuance(ctx context.Context, id int64) (*models.ScheduledIssuance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeIssuanceStore) ClaimScheduledIssuance(ctx context.Context, id int64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.IsProcessed {
		return false, nil
	}
	rec.IsProcessed = true
	rec.ProcessedAt = &now
	return true, nil
}

func (f *fakeIssuanceStore) FinalizeScheduledIssuance(ctx context.Context, id, passID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return errors.New("no such record")
	}
	rec.CreatedPassID = &passID
	return nil
}

func (f *fakeIssuanceStore) ListOverdueUnprocessed(ctx context.Context, now time.Time) ([]models.ScheduledIssuance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScheduledIssuance
	for _, rec := range f.records {
		if !rec.IsProcessed && !rec.ScheduledFor.After(now) {
			out = append(out, *rec)
		}
	}
	sort := func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) }
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && sort(j, j-1); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeIssuanceStore) ListClaimedWithoutPass(ctx context.Context) ([]models.ScheduledIssuance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScheduledIssuance
	for _, rec := range f.records {
		if rec.IsProcessed && rec.CreatedPassID == nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

type fakeConfigStore struct {
	byID     map[string]*models.PassConfig
	bySeller map[string]*models.PassConfig
}

func newFakeConfigStore(cfgs ...*models.PassConfig) *fakeConfigStore {
	f := &fakeConfigStore{
		byID:     map[string]*models.PassConfig{},
		bySeller: map[string]*models.PassConfig{},
	}
	for _, cfg := range cfgs {
		f.byID[cfg.ID] = cfg
		if cfg.SellerID != "" {
			f.bySeller[cfg.SellerID] = cfg
		}
	}
	return f
}

func (f *fakeConfigStore) GetPassConfig(ctx context.Context, id string) (*models.PassConfig, error) {
	return f.byID[id], nil
}

func (f *fakeConfigStore) GetPassConfigBySellerID(ctx context.Context, sellerID string) (*models.PassConfig, error) {
	return f.bySeller[sellerID], nil
}

type fakeTemplateStore struct {
	tpl *models.EmailTemplate
	err error
}

func (f *fakeTemplateStore) GetDefaultTemplate(ctx context.Context) (*models.EmailTemplate, error) {
	return f.tpl, f.err
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

func (f *fakeTransport) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type fakeDispatch struct {
	mu       sync.Mutex
	triggers []int64
	rebuys   []int64
	err      error
}

func (f *fakeDispatch) EnqueueIssuanceTrigger(ctx context.Context, delay time.Duration, issuanceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.triggers = append(f.triggers, issuanceID)
	return nil
}

func (f *fakeDispatch) EnqueueRebuyReminder(ctx context.Context, delay time.Duration, passID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rebuys = append(f.rebuys, passID)
	return nil
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderReconciled(context.Context, *models.OrderReconciledEvent) error {
	return nil
}
func (noopPublisher) PublishIssuanceScheduled(context.Context, *models.IssuanceScheduledEvent) error {
	return nil
}
func (noopPublisher) PublishPassIssued(context.Context, *models.PassIssuedEvent) error { return nil }
func (noopPublisher) PublishNotificationSent(context.Context, *models.NotificationSentEvent) error {
	return nil
}

func testConfig() *models.PassConfig {
	return &models.PassConfig{
		ID:              models.ConfigDefault,
		SellerID:        "",
		PricingMode:     models.PricingVariable,
		BasePrice:       1000,
		GuestIncrease:   500,
		DayIncrease:     300,
		MinGuests:       1,
		MaxGuests:       10,
		MinDays:         1,
		MaxDays:         30,
		SellerName:      "Checkout",
		LocationName:    "Online",
		DistributorName: "Direct",
	}
}
