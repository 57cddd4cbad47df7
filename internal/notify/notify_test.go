package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/qbcart/internal/config"
	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository/memory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type captureSink struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (c *captureSink) Publish(_ context.Context, _ string, body []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, body)
	return true
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []Message
	calls   map[string]int
	failFor map[string]int // address -> failures before success; -1 always fails
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	to := strings.Join(msg.To, ",")
	f.calls[to]++
	if n, ok := f.failFor[to]; ok && (n < 0 || f.calls[to] <= n) {
		return errors.New("smtp: 421 try later")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) sentTo(addr string) []Message {
	var out []Message
	for _, m := range f.sent {
		for _, to := range m.To {
			if to == addr {
				out = append(out, m)
			}
		}
	}
	return out
}

type fixture struct {
	store   *memory.Store
	buyer   *model.User
	sellerA *model.User
	sellerB *model.User
	orders  []uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.New()}
	f.buyer = &model.User{Username: "bea", Email: "bea@example.com", Role: model.RoleBuyer}
	f.sellerA = &model.User{Username: "sal", Email: "sal@example.com", Role: model.RoleSeller}
	f.sellerB = &model.User{Username: "sue", Email: "sue@example.com", Role: model.RoleSeller}
	for _, u := range []*model.User{f.buyer, f.sellerA, f.sellerB} {
		require.NoError(t, f.store.Users().Create(ctx, u))
	}

	placed := time.Now()
	for i, owner := range []*model.User{f.sellerA, f.sellerA, f.sellerB} {
		p := &model.Product{Name: []string{"Lamp", "Desk", "Book"}[i], Cost: decimal.NewFromInt(10), OwnerID: owner.ID}
		require.NoError(t, f.store.Products().Create(ctx, p))
		o := &model.Order{UserID: f.buyer.ID, ProductID: p.ID, Quantity: 1, Price: p.Cost}
		_, err := f.store.Orders().UpsertDraft(ctx, o)
		require.NoError(t, err)
		require.NoError(t, f.store.Orders().MarkPlaced(ctx, []uuid.UUID{o.ID}, placed))
		f.orders = append(f.orders, o.ID)
	}
	return f
}

func newTestMailer(f *fixture, sender Sender) *Mailer {
	m := NewMailer(f.store, sender,
		config.MailConfig{Admins: []string{"admin@example.com"}, Retries: 3},
		config.ReportConfig{Window: time.Hour}, discard)
	m.backoff = 0
	return m
}

func TestSendConfirmation_GroupsBySeller(t *testing.T) {
	f := newFixture(t)
	sender := &fakeSender{}
	m := newTestMailer(f, sender)

	require.NoError(t, m.SendConfirmation(context.Background(), f.buyer.ID, f.orders))

	assert.Len(t, sender.sent, 4)
	require.Len(t, sender.sentTo("bea@example.com"), 1)
	require.Len(t, sender.sentTo("admin@example.com"), 1)

	sal := sender.sentTo("sal@example.com")
	require.Len(t, sal, 1)
	assert.Contains(t, sal[0].HTML, "Lamp")
	assert.Contains(t, sal[0].HTML, "Desk")
	assert.NotContains(t, sal[0].HTML, "Book")

	sue := sender.sentTo("sue@example.com")
	require.Len(t, sue, 1)
	assert.Contains(t, sue[0].HTML, "Book")
	assert.Equal(t, subjectOrderPlaced, sue[0].Subject)
}

func TestSendConfirmation_OneRecipientFailingDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	sender := &fakeSender{failFor: map[string]int{"admin@example.com": -1}}
	m := newTestMailer(f, sender)

	require.NoError(t, m.SendConfirmation(context.Background(), f.buyer.ID, f.orders))

	assert.Equal(t, 3, sender.calls["admin@example.com"])
	assert.Len(t, sender.sentTo("bea@example.com"), 1)
	assert.Len(t, sender.sentTo("sal@example.com"), 1)
	assert.Len(t, sender.sentTo("sue@example.com"), 1)
}

func TestSendConfirmation_RetriesTransientFailure(t *testing.T) {
	f := newFixture(t)
	sender := &fakeSender{failFor: map[string]int{"bea@example.com": 2}}
	m := newTestMailer(f, sender)

	require.NoError(t, m.SendConfirmation(context.Background(), f.buyer.ID, f.orders))

	assert.Equal(t, 3, sender.calls["bea@example.com"])
	assert.Len(t, sender.sentTo("bea@example.com"), 1)
}

func TestSendConfirmation_UnknownUserOrNoOrders(t *testing.T) {
	f := newFixture(t)
	sender := &fakeSender{}
	m := newTestMailer(f, sender)

	require.NoError(t, m.SendConfirmation(context.Background(), uuid.New(), f.orders))
	require.NoError(t, m.SendConfirmation(context.Background(), f.buyer.ID, nil))
	require.NoError(t, m.SendConfirmation(context.Background(), f.buyer.ID, []uuid.UUID{uuid.New()}))
	assert.Empty(t, sender.sent)
}

func TestSendHourlyReport_WindowFiltersPlacedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// placed two hours ago, outside the window
	p := &model.Product{Name: "Old", Cost: decimal.NewFromInt(1), OwnerID: f.sellerA.ID}
	require.NoError(t, f.store.Products().Create(ctx, p))
	old := &model.Order{UserID: f.buyer.ID, ProductID: p.ID, Quantity: 1, Price: p.Cost}
	_, err := f.store.Orders().UpsertDraft(ctx, old)
	require.NoError(t, err)
	require.NoError(t, f.store.Orders().MarkPlaced(ctx, []uuid.UUID{old.ID}, time.Now().Add(-2*time.Hour)))

	sender := &fakeSender{}
	m := newTestMailer(f, sender)

	require.NoError(t, m.SendHourlyReport(ctx))

	require.Len(t, sender.sent, 1)
	report := sender.sent[0]
	assert.Equal(t, subjectOrdersReport, report.Subject)
	assert.Equal(t, []string{"admin@example.com"}, report.To)
	assert.Contains(t, report.HTML, "Lamp")
	assert.NotContains(t, report.HTML, "Old")
}

func TestHandle_UnknownKind(t *testing.T) {
	m := newTestMailer(newFixture(t), &fakeSender{})
	err := m.Handle(context.Background(), model.TaskMessage{Kind: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidTask)
}

func TestDispatcher_EncodesTasks(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, "qbcart.tasks", discard)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	user := uuid.New()

	d.SendConfirmation(context.Background(), user, ids)
	d.SendHourlyReport(context.Background())

	require.Len(t, sink.bodies, 2)
	task, err := DecodeTask(sink.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, model.TaskSendConfirmation, task.Kind)
	assert.Equal(t, user, task.UserID)
	assert.Equal(t, ids, task.OrderIDs)
	assert.False(t, task.EnqueuedAt.IsZero())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(sink.bodies[1], &raw))
	assert.Equal(t, "send_hourly_report", raw["kind"])

	_, err = DecodeTask([]byte(`{"kind":"nope"}`))
	assert.ErrorIs(t, err, ErrInvalidTask)
}

type countingReports struct {
	mu sync.Mutex
	n  int
}

func (c *countingReports) SendHourlyReport(context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func testReportConfig() config.ReportConfig {
	return config.ReportConfig{ScheduleName: "hourly_mail", Minute: "0", Hour: "*/1", Window: time.Hour, SyncInterval: time.Minute}
}

func TestEnsureSchedule_Idempotent(t *testing.T) {
	store := memory.New()
	s := NewScheduler(store.Schedules(), &countingReports{}, testReportConfig(), discard)
	ctx := context.Background()

	first, err := s.EnsureSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0 */1 * * *", first.CronSpec())

	// an admin edit survives restarts
	first.Minute = "15"
	require.NoError(t, store.Schedules().Update(ctx, first))

	second, err := s.EnsureSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "15", second.Minute)

	all, err := store.Schedules().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestScheduler_SyncFollowsEdits(t *testing.T) {
	store := memory.New()
	s := NewScheduler(store.Schedules(), &countingReports{}, testReportConfig(), discard)
	ctx := context.Background()

	sched, err := s.EnsureSchedule(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, "0 */1 * * *", s.Spec())
	assert.Len(t, s.cron.Entries(), 1)

	sched.Minute = "30"
	require.NoError(t, store.Schedules().Update(ctx, sched))
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, "30 */1 * * *", s.Spec())
	assert.Len(t, s.cron.Entries(), 1)

	sched.Enabled = false
	require.NoError(t, store.Schedules().Update(ctx, sched))
	require.NoError(t, s.Sync(ctx))
	assert.Empty(t, s.Spec())
	assert.Empty(t, s.cron.Entries())
}

func TestValidateSpec(t *testing.T) {
	assert.NoError(t, ValidateSpec("0 */1 * * *"))
	assert.Error(t, ValidateSpec("61 * * * *"))
	assert.Error(t, ValidateSpec("every hour"))
}
