package booking

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/practice-booking/internal/config"
	"github.com/iliyamo/practice-booking/internal/database"
	"github.com/iliyamo/practice-booking/internal/model"
	"github.com/iliyamo/practice-booking/internal/repository"
	"github.com/iliyamo/practice-booking/internal/sessiontype"
)

// Monday 2026-10-12 08:00 UTC; Wednesday 2026-10-14 is the default
// booking day in these tests.
var monday = time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fakeCalendar struct {
	mu        sync.Mutex
	created   []EventRequest
	cancelled []string
	busy      []model.Interval
	failWith  error
}

func (f *fakeCalendar) CreateEvent(_ context.Context, ev EventRequest) (EventInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return EventInfo{}, f.failWith
	}
	f.created = append(f.created, ev)
	n := len(f.created)
	return EventInfo{EventID: fmt.Sprintf("evt-%d", n), MeetingURL: fmt.Sprintf("https://meet.example/%d", n)}, nil
}

func (f *fakeCalendar) CancelEvent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeCalendar) BusyIntervals(_ context.Context, from, to time.Time) ([]model.Interval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []model.Interval
	for _, iv := range f.busy {
		if iv.End.After(from) && iv.Start.Before(to) {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (f *fakeCalendar) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []Notification
}

func (f *fakeDispatcher) Send(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeDispatcher) templates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, n := range f.sent {
		out[i] = n.Template + ":" + n.Recipient
	}
	return out
}

type harness struct {
	engine   *Engine
	clock    *clock
	calendar *fakeCalendar
	notes    *fakeDispatcher
	clients  *repository.ClientRepo
	credits  *repository.CreditRepo
}

func newHarness(t *testing.T, mutate func(*config.Policy)) *harness {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	p := config.DefaultPolicy()
	if mutate != nil {
		mutate(&p)
	}
	types, err := sessiontype.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		clock:    &clock{t: monday},
		calendar: &fakeCalendar{},
		notes:    &fakeDispatcher{},
		clients:  repository.NewClientRepo(db),
		credits:  repository.NewCreditRepo(db),
	}
	h.engine = New(Options{
		Bookings:          repository.NewBookingRepo(db),
		Credits:           h.credits,
		Clients:           h.clients,
		Types:             types,
		Policy:            p,
		Calendar:          h.calendar,
		Notifier:          h.notes,
		SideEffectTimeout: time.Second,
		PracticeEmail:     "practice@example.com",
		Now:               h.clock.Now,
	})
	return h
}

func (h *harness) client(t *testing.T, email string, credits int) uint64 {
	t.Helper()
	id, err := h.clients.Create(context.Background(), email, "Client "+email)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if credits > 0 {
		if _, err := h.engine.GrantCredits(context.Background(), id, credits, "pack"); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}
	return id
}

func (h *harness) balance(t *testing.T, clientID uint64) int {
	t.Helper()
	cb, err := h.engine.Balance(context.Background(), clientID)
	if err != nil {
		t.Fatal(err)
	}
	return cb.Balance
}

func (h *harness) assertLedger(t *testing.T, clientID uint64) {
	t.Helper()
	c, err := h.engine.Verify(context.Background(), clientID)
	if err != nil {
		t.Fatal(err)
	}
	if !c.OK {
		t.Fatalf("ledger mismatch: %+v", c)
	}
}

func individual(clientID uint64, date, start string) CreateInput {
	return CreateInput{SessionType: "individual", Date: date, StartTime: start, ClientID: clientID, UseCredit: true}
}

func TestCreateDeductsCreditAndSyncsCalendar(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := h.client(t, "a@example.com", 3)

	b, err := h.engine.Create(ctx, individual(c, "2026-10-14", "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != model.StatusConfirmed || b.EndTime != "11:00" || !b.PaidWithCredit {
		t.Fatalf("unexpected booking %+v", b)
	}
	if b.PriceCents != 9000 || b.Currency != "EUR" {
		t.Fatalf("price = %d %s", b.PriceCents, b.Currency)
	}
	if b.MeetingURL == nil || b.CalendarEventID == nil {
		t.Fatal("calendar info not attached")
	}
	if got := h.balance(t, c); got != 2 {
		t.Fatalf("balance = %d, want 2", got)
	}
	h.assertLedger(t, c)

	stored, err := h.engine.GetByConfirmationToken(ctx, b.ConfirmationToken)
	if err != nil {
		t.Fatal(err)
	}
	if stored.MeetingURL == nil || *stored.MeetingURL != *b.MeetingURL {
		t.Fatalf("meeting url not persisted: %+v", stored.MeetingURL)
	}
	want := []string{
		"booking_confirmed:a@example.com",
		"booking_confirmed:practice@example.com",
	}
	if got := h.notes.templates(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("notifications = %v", got)
	}

	slots, err := h.engine.ListSlots(ctx, "2026-10-14", "individual")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range slots {
		if s.Start == "10:00" || s.Start == "09:30" || s.Start == "10:30" {
			t.Fatalf("slot %s should be blocked by the booking and its buffer", s.Start)
		}
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, nil)
	c := h.client(t, "a@example.com", 1)
	cases := map[string]CreateInput{
		"unknown type": {SessionType: "group", Date: "2026-10-14", StartTime: "10:00", ClientID: c},
		"bad date":     {SessionType: "individual", Date: "14.10.2026", StartTime: "10:00", ClientID: c},
		"bad time":     {SessionType: "individual", Date: "2026-10-14", StartTime: "10h", ClientID: c},
		"short time":   {SessionType: "individual", Date: "2026-10-14", StartTime: "9:00", ClientID: c},
		"no client":    {SessionType: "individual", Date: "2026-10-14", StartTime: "10:00"},
		"no price":     {SessionType: "individual", Date: "2026-10-14", StartTime: "10:00", ClientID: c, Currency: "USD"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := h.engine.Create(context.Background(), in); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
	if _, err := h.engine.Create(context.Background(), individual(999, "2026-10-14", "10:00")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown client: err = %v", err)
	}
}

func TestCreateUnavailableSlot(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.client(t, "a@example.com", 2)
	b := h.client(t, "b@example.com", 2)

	if _, err := h.engine.Create(ctx, individual(a, "2026-10-14", "10:00")); err != nil {
		t.Fatal(err)
	}
	for _, start := range []string{"10:00", "10:30", "09:30", "16:30"} {
		if _, err := h.engine.Create(ctx, individual(b, "2026-10-14", start)); !errors.Is(err, ErrSlotUnavailable) {
			t.Fatalf("%s: err = %v, want slot unavailable", start, err)
		}
	}
	if _, err := h.engine.Create(ctx, individual(b, "2026-10-17", "10:00")); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("weekend: err = %v", err)
	}
	if got := h.balance(t, b); got != 2 {
		t.Fatalf("failed attempts must not touch credits, balance = %d", got)
	}
}

func TestCreateExcludesCalendarBusyTime(t *testing.T) {
	h := newHarness(t, nil)
	h.calendar.busy = []model.Interval{{
		Start: time.Date(2026, 10, 14, 13, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC),
	}}
	c := h.client(t, "a@example.com", 1)
	if _, err := h.engine.Create(context.Background(), individual(c, "2026-10-14", "13:00")); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want slot unavailable", err)
	}
}

func TestCreateSurvivesCalendarFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.calendar.failWith = errors.New("calendar down")
	c := h.client(t, "a@example.com", 1)

	b, err := h.engine.Create(context.Background(), individual(c, "2026-10-14", "10:00"))
	if err != nil {
		t.Fatalf("calendar failure must not fail the booking: %v", err)
	}
	if b.MeetingURL != nil || b.CalendarEventID != nil {
		t.Fatal("no meeting link expected when the calendar failed")
	}
	if len(h.notes.templates()) != 2 {
		t.Fatal("notifications must still be sent")
	}
}

func TestCreateInsufficientCredit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := h.client(t, "a@example.com", 0)

	_, err := h.engine.Create(ctx, individual(c, "2026-10-14", "10:00"))
	if !errors.Is(err, ErrInsufficientCredit) {
		t.Fatalf("err = %v, want insufficient credit", err)
	}
	list, err := h.engine.ListByClient(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("booking must not persist, got %d", len(list))
	}
	if h.calendar.createdCount() != 0 {
		t.Fatal("no calendar event expected")
	}
	if _, err := h.engine.Create(ctx, individual(h.client(t, "b@example.com", 1), "2026-10-14", "10:00")); err != nil {
		t.Fatalf("slot must still be free: %v", err)
	}
}

func TestFreeSessionOncePerClient(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := h.client(t, "a@example.com", 0)
	free := CreateInput{SessionType: "free_consultation", Date: "2026-10-14", StartTime: "10:00", ClientID: c, UseCredit: true}

	first, err := h.engine.Create(ctx, free)
	if err != nil {
		t.Fatal(err)
	}
	if first.PaidWithCredit || first.PriceCents != 0 {
		t.Fatalf("free session must not use credit: %+v", first)
	}
	if _, err := h.engine.Cancel(ctx, CancelInput{BookingID: first.ID, Actor: model.ActorClient, ClientID: c}); err != nil {
		t.Fatal(err)
	}

	calendarCalls := h.calendar.createdCount()
	free.StartTime = "14:00"
	_, err = h.engine.Create(ctx, free)
	if !errors.Is(err, ErrPolicyViolation) || ReasonOf(err) != "free_session_already_used" {
		t.Fatalf("err = %v, want free_session_already_used", err)
	}
	if h.calendar.createdCount() != calendarCalls {
		t.Fatal("rejected free booking must not reach the calendar")
	}
	h.assertLedger(t, c)
}

func TestConcurrentCreateSameSlot(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	clients := []uint64{h.client(t, "a@example.com", 1), h.client(t, "b@example.com", 1)}

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(clients))
	)
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c uint64) {
			defer wg.Done()
			_, errs[i] = h.engine.Create(ctx, individual(c, "2026-10-14", "10:00"))
		}(i, c)
	}
	wg.Wait()

	ok, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSlotUnavailable):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || lost != 1 {
		t.Fatalf("ok=%d lost=%d, want exactly one winner", ok, lost)
	}
	total := h.balance(t, clients[0]) + h.balance(t, clients[1])
	if total != 1 {
		t.Fatalf("exactly one credit should be spent, remaining %d", total)
	}
	for _, c := range clients {
		h.assertLedger(t, c)
	}
}

func TestConcurrentCreditDeduction(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := h.client(t, "a@example.com", 1)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, start := range []string{"10:00", "14:00"} {
		wg.Add(1)
		go func(i int, start string) {
			defer wg.Done()
			_, errs[i] = h.engine.Create(ctx, individual(c, "2026-10-14", start))
		}(i, start)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrInsufficientCredit) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d bookings succeeded on one credit", ok)
	}
	if got := h.balance(t, c); got != 0 {
		t.Fatalf("balance = %d", got)
	}
	h.assertLedger(t, c)
}

func TestCancelNormalRefunds(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := h.client(t, "a@example.com", 3)
	b, err := h.engine.Create(ctx, individual(c, "2026-10-14", "10:00"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.engine.Cancel(ctx, CancelInput{BookingID: b.ID, Actor: model.ActorClient, ClientID: c, Reason: "travel"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != "normal" || !res.CreditRefunded {
		t.Fatalf("result = %+v", res)
	}
	if res.Booking.Status != model.StatusCancelled || res.Booking.IsLateCancel {
		t.Fatalf("booking = %+v", res.Booking)
	}
	if res.Booking.CancelledBy == nil || *res.Booking.CancelledBy != model.ActorClient {
		t.Fatal("cancelled_by not recorded")
	}
	if res.Booking.CancellationReason == nil || *res.Booking.CancellationReason != "travel" {
		t.Fatal("cancellation reason not recorded")
	}
	if got := h.balance(t, c); got != 3 {
		t.Fatalf("balance = %d, want 3", got)
	}
	if len(h.calendar.cancelled) != 1 {
		t.Fatal("calendar event should be cancelled")
	}
	h.assertLedger(t, c)

	_, err = h.engine.Cancel(ctx, CancelInput{BookingID: b.ID, Actor: model.ActorClient, ClientID: c})
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("second cancel: err = %v", err)
	}
	if got := h.balance(t, c); got != 3 {
		t.Fatalf("second cancel changed balance to %d", got)
	}

	other := h.client(t, "b@example.com", 1)
	if _, err := h.engine.Create(ctx, individual(other, "2026-10-14", "10:00")); err != nil {
		t.Fatalf("cancelled slot must be bookable again: %v", err)
	}
}

func TestCancelLateKeepsCredit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := h.client(t, "a@example.com", 3)
	b, err := h.engine.Create(ctx, individual(c, "2026-10-14", "10:00"))
	if err != nil {
		t.Fatal(err)
	}
	if got := h.balance(t, c); got != 2 {
		t.Fatalf("balance after booking = %d", got)
	}

	h.clock.Set(time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	res, err := h.engine.Cancel(ctx, CancelInput{BookingID: b.ID, Actor: model.ActorClient, ClientID: c})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != "late" || res.CreditRefunded || !res.Booking.IsLateCancel {
		t.Fatalf("result = %+v", res)
	}
	if got := h.balance(t, c); got != 2 {
		t.Fatalf("balance = %d, want 2", got)
	}
	txs, err := h.engine.Transactions(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	last := txs[len(txs)-1]
	if last.Kind != model.CreditForfeit || last.Delta != 0 || last.BookingID == nil || *last.BookingID != b.ID {
		t.Fatalf("last ledger entry = %+v", last)
	}
	h.assertLedger(t, c)
}

func TestCancelOtherClientsBookingForbidden(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.client(t, "a@example.com", 1)
	b := h.client(t, "b@example.com", 0)
	bk, err := h.engine.Create(ctx, individual(a, "2026-10-14", "10:00"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.Cancel(ctx, CancelInput{BookingID: bk.ID, Actor: model.ActorClient, ClientID: b}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if _, err := h.engine.Cancel(ctx, CancelInput{BookingID: 4242, Actor: model.ActorAdmin}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestAntiAbuseForfeitsAfterReschedule(t *testing.T) {
	h := newHarness(t, func(p *config.Policy) {
		p.CancelNoticeHours = 48
		p.RescheduleNoticeHours = 12
	})
	ctx := context.Background()
	c := h.client(t, "a@example.com", 2)
	b, err := h.engine.Create(ctx, individual(c, "2026-10-14", "10:00"))
	if err != nil {
		t.Fatal(err)
	}

	// 26 hours before the session: late for cancelling, fine for moving.
	h.clock.Set(time.Date(2026, 10, 13, 8, 0, 0, 0, time.UTC))
	moved, err := h.engine.Reschedule(ctx, RescheduleInput{
		BookingID: b.ID, Actor: model.ActorClient, ClientID: c,
		NewDate: "2026-10-23", NewStartTime: "10:00",
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.OriginalDate == nil || *moved.OriginalDate != "2026-10-14" {
		t.Fatalf("original date = %v", moved.OriginalDate)
	}

	res, err := h.engine.Cancel(ctx, CancelInput{BookingID: b.ID, Actor: model.ActorClient, ClientID: c})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != "anti_abuse" || res.CreditRefunded || !res.Booking.IsLateCancel {
		t.Fatalf("result = %+v", res)
	}
	if got := h.balance(t, c); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}
	h.assertLedger(t, c)
}

func TestSecondRescheduleAfterOriginalPassedIsNotAbuse(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := h.client(t, "a@example.com", 1)
	b, err := h.engine.Create(ctx, individual(c, "2026-10-14", "10:00"))
	if err != nil {
		t.Fatal(err)
	}
	first := h.clock.Now()
	if _, err := h.engine.Reschedule(ctx, RescheduleInput{
		BookingID: b.ID, Actor: model.ActorClient, ClientID: c,
		NewDate: "2026-10-19", NewStartTime: "10:00",
	}); err != nil {
		t.Fatalf("first reschedule: %v", err)
	}

	// The original Wednesday slot is now in the past.
	h.clock.Set(time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC))
	moved, err := h.engine.Reschedule(ctx, RescheduleInput{
		BookingID: b.ID, Actor: model.ActorClient, ClientID: c,
		NewDate: "2026-10-23", NewStartTime: "10:00",
	})
	if err != nil {
		t.Fatalf("second reschedule: %v", err)
	}
	if moved.FirstRescheduledAt == nil || !moved.FirstRescheduledAt.Equal(first) {
		t.Fatalf("first rescheduled at = %v, want %s", moved.FirstRescheduledAt, first)
	}
	if moved.RescheduledAt == nil || !moved.RescheduledAt.Equal(h.clock.Now()) {
		t.Fatalf("rescheduled at = %v", moved.RescheduledAt)
	}

	res, err := h.engine.Cancel(ctx, CancelInput{BookingID: b.ID, Actor: model.ActorClient, ClientID: c})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != "normal" || !res.CreditRefunded || res.Booking.IsLateCancel {
		t.Fatalf("result = %+v", res)
	}
	if got := h.balance(t, c); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}
	txs, err := h.engine.Transactions(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	refund := txs[len(txs)-1]
	if refund.Kind != model.CreditRefund || !refund.CreatedAt.Equal(h.clock.Now()) {
		t.Fatalf("refund row = %+v, want stamped %s", refund, h.clock.Now())
	}
	if res.Booking.CancelledAt == nil || !res.Booking.CancelledAt.Equal(refund.CreatedAt) {
		t.Fatalf("cancelled at %s, refund at %s", res.Booking.CancelledAt, refund.CreatedAt)
	}
	h.assertLedger(t, c)
}

func TestRescheduleLimitAndOverride(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := h.client(t, "a@example.com", 1)
	b, err := h.engine.Create(ctx, individual(c, "2026-10-14", "10:00"))
	if err != nil {
		t.Fatal(err)
	}
	eventsBefore := h.calendar.createdCount()

	moves := []struct{ date, start string }{{"2026-10-15", "11:00"}, {"2026-10-16", "14:00"}}
	for _, m := range moves {
		if _, err := h.engine.Reschedule(ctx, RescheduleInput{
			BookingID: b.ID, Actor: model.ActorClient, ClientID: c, NewDate: m.date, NewStartTime: m.start,
		}); err != nil {
			t.Fatalf("reschedule to %s %s: %v", m.date, m.start, err)
		}
	}
	got, err := h.engine.Get(ctx, b.ID, model.ActorClient, c)
	if err != nil {
		t.Fatal(err)
	}
	if got.RescheduleCount != 2 || got.Date != "2026-10-16" || got.EndTime != "15:00" {
		t.Fatalf("booking = %+v", got)
	}
	if *got.OriginalDate != "2026-10-14" || *got.OriginalStartTime != "10:00" {
		t.Fatalf("original slot overwritten: %s %s", *got.OriginalDate, *got.OriginalStartTime)
	}
	if got.Status != model.StatusConfirmed {
		t.Fatalf("status = %s", got.Status)
	}
	if h.calendar.createdCount() != eventsBefore+2 || len(h.calendar.cancelled) != 2 {
		t.Fatalf("calendar events not replaced: created %d cancelled %d", h.calendar.createdCount(), len(h.calendar.cancelled))
	}

	third := RescheduleInput{BookingID: b.ID, Actor: model.ActorClient, ClientID: c, NewDate: "2026-10-19", NewStartTime: "09:00"}
	_, err = h.engine.Reschedule(ctx, third)
	if !errors.Is(err, ErrPolicyViolation) || ReasonOf(err) != "max_reschedules_reached" {
		t.Fatalf("err = %v, want max_reschedules_reached", err)
	}

	if _, err := h.engine.SetPolicyOverride(ctx, b.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.Reschedule(ctx, third); err != nil {
		t.Fatalf("override should lift the limit: %v", err)
	}
}

func TestRescheduleValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := h.client(t, "a@example.com", 2)
	b, err := h.engine.Create(ctx, individual(c, "2026-10-14", "10:00"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.Create(ctx, individual(c, "2026-10-15", "10:00")); err != nil {
		t.Fatal(err)
	}

	base := RescheduleInput{BookingID: b.ID, Actor: model.ActorClient, ClientID: c}
	wrongEnd := base
	wrongEnd.NewDate, wrongEnd.NewStartTime, wrongEnd.NewEndTime = "2026-10-16", "10:00", "10:30"
	if _, err := h.engine.Reschedule(ctx, wrongEnd); !errors.Is(err, ErrValidation) {
		t.Fatalf("wrong end: err = %v", err)
	}
	same := base
	same.NewDate, same.NewStartTime = "2026-10-14", "10:00"
	if _, err := h.engine.Reschedule(ctx, same); !errors.Is(err, ErrValidation) {
		t.Fatalf("same slot: err = %v", err)
	}
	taken := base
	taken.NewDate, taken.NewStartTime = "2026-10-15", "10:00"
	if _, err := h.engine.Reschedule(ctx, taken); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("taken slot: err = %v", err)
	}
	shifted := base
	shifted.NewDate, shifted.NewStartTime, shifted.NewEndTime = "2026-10-14", "10:30", "11:30"
	if _, err := h.engine.Reschedule(ctx, shifted); err != nil {
		t.Fatalf("moving within its own buffer must be allowed: %v", err)
	}

	h.clock.Set(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC))
	late := base
	late.NewDate, late.NewStartTime = "2026-10-20", "10:00"
	_, err = h.engine.Reschedule(ctx, late)
	if !errors.Is(err, ErrPolicyViolation) || ReasonOf(err) != "inside_reschedule_notice_window" {
		t.Fatalf("inside notice: err = %v", err)
	}
}

func TestMarkOutcome(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := h.client(t, "a@example.com", 1)
	b, err := h.engine.Create(ctx, individual(c, "2026-10-14", "10:00"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.MarkOutcome(ctx, b.ID, model.StatusCompleted); !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("before the session: err = %v", err)
	}
	if _, err := h.engine.MarkOutcome(ctx, b.ID, model.StatusCancelled); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad status: err = %v", err)
	}
	h.clock.Set(time.Date(2026, 10, 14, 11, 0, 0, 0, time.UTC))
	done, err := h.engine.MarkOutcome(ctx, b.ID, model.StatusNoShow)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != model.StatusNoShow {
		t.Fatalf("status = %s", done.Status)
	}
	_, err = h.engine.Cancel(ctx, CancelInput{BookingID: b.ID, Actor: model.ActorAdmin})
	if !errors.Is(err, ErrPolicyViolation) || ReasonOf(err) != "booking_already_terminal" {
		t.Fatalf("cancel after outcome: err = %v", err)
	}
}

func TestVerifyAll(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a := h.client(t, "a@example.com", 2)
	h.client(t, "b@example.com", 5)
	if _, err := h.engine.Create(ctx, individual(a, "2026-10-14", "10:00")); err != nil {
		t.Fatal(err)
	}
	checks, err := h.engine.VerifyAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(checks) != 2 {
		t.Fatalf("checks = %+v", checks)
	}
	for _, c := range checks {
		if !c.OK {
			t.Fatalf("mismatch: %+v", c)
		}
	}
	if _, err := h.engine.GrantCredits(ctx, a, 0, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero grant: err = %v", err)
	}
	if _, err := h.engine.GrantCredits(ctx, 999, 1, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown client: err = %v", err)
	}
}
