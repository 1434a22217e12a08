package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campushq/messaging/internal/config"
	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/provider"
	"github.com/campushq/messaging/internal/repository"
	"github.com/campushq/messaging/internal/settings"
	"go.uber.org/zap"
)

// fakeMessageRepo is an in-memory MessageRepository that records every
// status transition per message.
type fakeMessageRepo struct {
	mu          sync.Mutex
	records     map[string]*domain.Message
	transitions map[string][]domain.Status
	createErr   error
	listErr     error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		records:     make(map[string]*domain.Message),
		transitions: make(map[string][]domain.Status),
	}
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	cp := *m
	f.records[m.ID] = &cp
	f.transitions[m.ID] = append(f.transitions[m.ID], m.Status)
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessageRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.records {
		out = append(out, *m)
	}
	return out, int64(len(out)), nil
}

func (f *fakeMessageRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = status
	f.transitions[id] = append(f.transitions[id], status)
	return nil
}

func (f *fakeMessageRepo) MarkSent(ctx context.Context, id string, providerMessageID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = domain.StatusSent
	m.SentAt = &at
	if providerMessageID != "" {
		m.ProviderMessageID = &providerMessageID
	}
	f.transitions[id] = append(f.transitions[id], domain.StatusSent)
	return nil
}

func (f *fakeMessageRepo) MarkFailed(ctx context.Context, id string, errorCode, errorMessage string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = domain.StatusFailed
	m.FailedAt = &at
	m.LastRetryAt = &at
	m.RetryCount++
	if errorCode != "" {
		m.ErrorCode = &errorCode
	}
	m.ErrorMessage = &errorMessage
	f.transitions[id] = append(f.transitions[id], domain.StatusFailed)
	return nil
}

func (f *fakeMessageRepo) ApplyProviderStatus(
	ctx context.Context,
	providerMessageID string,
	status domain.Status,
	errorCode, errorMessage *string,
	at time.Time,
) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affected int64
	for _, m := range f.records {
		if m.ProviderMessageID == nil || *m.ProviderMessageID != providerMessageID {
			continue
		}
		m.Status = status
		switch status {
		case domain.StatusDelivered:
			m.DeliveredAt = &at
		case domain.StatusBounced:
			m.BouncedAt = &at
		case domain.StatusFailed:
			m.FailedAt = &at
		}
		if errorCode != nil {
			m.ErrorCode = errorCode
		}
		if errorMessage != nil {
			m.ErrorMessage = errorMessage
		}
		affected++
	}
	return affected, nil
}

func (f *fakeMessageRepo) ListFailedForRetry(
	ctx context.Context,
	channel domain.Channel,
	maxRetries, limit int,
) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []domain.Message
	for _, m := range f.records {
		if m.Channel == channel && m.Status == domain.StatusFailed && m.RetryCount < maxRetries {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessageRepo) CountByStatus(ctx context.Context, channel domain.Channel, since time.Time) ([]repository.StatusCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.Status]int64)
	for _, m := range f.records {
		if m.Channel == channel && !m.CreatedAt.Before(since) {
			counts[m.Status]++
		}
	}
	var out []repository.StatusCount
	for status, count := range counts {
		out = append(out, repository.StatusCount{Status: status, Count: count})
	}
	return out, nil
}

func (f *fakeMessageRepo) CountByCategory(ctx context.Context, channel domain.Channel, since time.Time) ([]repository.CategoryCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.Category]int64)
	for _, m := range f.records {
		if m.Channel == channel && !m.CreatedAt.Before(since) {
			counts[m.Category]++
		}
	}
	var out []repository.CategoryCount
	for category, count := range counts {
		out = append(out, repository.CategoryCount{Category: category, Count: count})
	}
	return out, nil
}

func (f *fakeMessageRepo) SumSegments(ctx context.Context, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, m := range f.records {
		if m.Channel == domain.ChannelSMS && !m.CreatedAt.Before(since) {
			total += int64(m.SegmentCount)
		}
	}
	return total, nil
}

func (f *fakeMessageRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeMessageRepo) single(t *testing.T) *domain.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(f.records))
	}
	for _, m := range f.records {
		cp := *m
		return &cp
	}
	return nil
}

func (f *fakeMessageRepo) transitionsFor(id string) []domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Status(nil), f.transitions[id]...)
}

// fakeTemplateRepo is an in-memory TemplateRepository.
type fakeTemplateRepo struct {
	mu        sync.Mutex
	templates map[string]*domain.Template
}

func newFakeTemplateRepo(templates ...*domain.Template) *fakeTemplateRepo {
	repo := &fakeTemplateRepo{templates: make(map[string]*domain.Template)}
	for _, tpl := range templates {
		cp := *tpl
		repo.templates[tpl.ID] = &cp
	}
	return repo
}

func (f *fakeTemplateRepo) Create(ctx context.Context, t *domain.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.templates[t.ID] = &cp
	return nil
}

func (f *fakeTemplateRepo) Update(ctx context.Context, t *domain.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[t.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *t
	f.templates[t.ID] = &cp
	return nil
}

func (f *fakeTemplateRepo) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tpl
	return &cp, nil
}

func (f *fakeTemplateRepo) GetBySlug(ctx context.Context, slug string, channel domain.Channel) (*domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tpl := range f.templates {
		if tpl.Slug == slug && tpl.Channel == channel {
			cp := *tpl
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTemplateRepo) List(ctx context.Context, channel *domain.Channel) ([]domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Template
	for _, tpl := range f.templates {
		if channel == nil || tpl.Channel == *channel {
			out = append(out, *tpl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (f *fakeTemplateRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.templates, id)
	return nil
}

func (f *fakeTemplateRepo) IncrementSentCount(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[id]
	if !ok {
		return domain.ErrNotFound
	}
	tpl.SentCount++
	return nil
}

// fakePreferenceRepo is an in-memory PreferenceRepository.
type fakePreferenceRepo struct {
	mu    sync.Mutex
	prefs map[string]*domain.Preference
}

func newFakePreferenceRepo(prefs ...*domain.Preference) *fakePreferenceRepo {
	repo := &fakePreferenceRepo{prefs: make(map[string]*domain.Preference)}
	for _, p := range prefs {
		cp := *p
		repo.prefs[p.UserID] = &cp
	}
	return repo
}

func (f *fakePreferenceRepo) GetByUserID(ctx context.Context, userID string) (*domain.Preference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prefs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePreferenceRepo) Upsert(ctx context.Context, p *domain.Preference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.prefs[p.UserID] = &cp
	return nil
}

// fakeSettingsRepo backs the resolver in tests.
type fakeSettingsRepo struct {
	settings *domain.Settings
	err      error
}

func (f *fakeSettingsRepo) Get(ctx context.Context) (*domain.Settings, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.settings == nil {
		return nil, domain.ErrNotFound
	}
	return f.settings, nil
}

func (f *fakeSettingsRepo) Upsert(ctx context.Context, s *domain.Settings) error {
	f.settings = s
	return nil
}

// fakeProvider is a scriptable provider.
type fakeProvider struct {
	channel domain.Channel
	sendFn  func(ctx context.Context, msg domain.Message) (*provider.Response, error)
	calls   int
	mu      sync.Mutex
}

func (f *fakeProvider) Channel() domain.Channel { return f.channel }

func (f *fakeProvider) NormalizeDestination(to string) (string, error) {
	if f.channel == domain.ChannelSMS {
		normalized := domain.NormalizePhone(to)
		if normalized == "" {
			return "", domain.ErrValidation
		}
		return normalized, nil
	}
	return strings.ToLower(strings.TrimSpace(to)), nil
}

func (f *fakeProvider) Send(ctx context.Context, msg domain.Message) (*provider.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.Response{MessageID: "provider-" + msg.ID}, nil
}

func (f *fakeProvider) sendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeLimiter is a scriptable rate limiter.
type fakeLimiter struct {
	allow bool
	err   error
}

func (f *fakeLimiter) Allow(ctx context.Context, channel string, limit int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.allow, nil
}

func bothChannelSettings() *domain.Settings {
	return &domain.Settings{
		ID:           domain.SettingsID,
		EmailEnabled: true,
		SMTPHost:     "smtp.campus.example",
		SMTPPort:     587,
		FromAddress:  "noreply@campus.example",
		FromName:     "Campus",

		SMSEnabled:    true,
		SMSAccountSID: "AC-test",
		SMSAuthToken:  "token-test",
		SMSFromNumber: "+15550001111",

		DefaultEmailOptIn: true,
		DefaultSMSOptIn:   false,
	}
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	messages   *fakeMessageRepo
	templates  *fakeTemplateRepo
	prefs      *fakePreferenceRepo
	email      *fakeProvider
	sms        *fakeProvider
	limiter    *fakeLimiter
}

func newDispatcherFixture(t *testing.T, stored *domain.Settings) *dispatcherFixture {
	t.Helper()

	fixture := &dispatcherFixture{
		messages:  newFakeMessageRepo(),
		templates: newFakeTemplateRepo(),
		prefs:     newFakePreferenceRepo(),
		email:     &fakeProvider{channel: domain.ChannelEmail},
		sms:       &fakeProvider{channel: domain.ChannelSMS},
		limiter:   &fakeLimiter{allow: true},
	}

	resolver := settings.NewResolver(&fakeSettingsRepo{settings: stored}, &config.Config{}, zap.NewNop())

	dispatcher, err := NewDispatcher(
		fixture.messages,
		fixture.templates,
		fixture.prefs,
		resolver,
		fixture.email,
		fixture.sms,
		fixture.limiter,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	fixture.dispatcher = dispatcher
	return fixture
}
