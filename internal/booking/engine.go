// Package booking is the allocation and credit policy engine: it creates,
// cancels and reschedules bookings, keeps the credit ledger consistent
// with them, and schedules calendar and notification side effects after
// each committed change.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/practice-booking/internal/availability"
	"github.com/iliyamo/practice-booking/internal/config"
	"github.com/iliyamo/practice-booking/internal/metrics"
	"github.com/iliyamo/practice-booking/internal/model"
	"github.com/iliyamo/practice-booking/internal/repository"
	"github.com/iliyamo/practice-booking/internal/sessiontype"
)

// Options wires an Engine.  Calendar and Notifier may be nil, in which
// case the corresponding side effects are skipped.
type Options struct {
	Bookings          *repository.BookingRepo
	Credits           *repository.CreditRepo
	Clients           *repository.ClientRepo
	Types             *sessiontype.Registry
	Policy            config.Policy
	Calendar          CalendarSync
	Notifier          Dispatcher
	Logger            *zap.Logger
	SideEffectTimeout time.Duration
	PracticeEmail     string
	Now               func() time.Time
}

// Engine implements the booking API.  It is safe for concurrent use;
// correctness between concurrent requests rests on the store's unique
// keys and guarded updates, not on in-process locks.
type Engine struct {
	bookings      *repository.BookingRepo
	credits       *repository.CreditRepo
	clients       *repository.ClientRepo
	types         *sessiontype.Registry
	policy        config.Policy
	calendar      CalendarSync
	notifier      Dispatcher
	log           *zap.Logger
	timeout       time.Duration
	practiceEmail string
	now           func() time.Time
}

// New returns an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		bookings:      opts.Bookings,
		credits:       opts.Credits,
		clients:       opts.Clients,
		types:         opts.Types,
		policy:        opts.Policy,
		calendar:      opts.Calendar,
		notifier:      opts.Notifier,
		log:           opts.Logger,
		timeout:       opts.SideEffectTimeout,
		practiceEmail: opts.PracticeEmail,
		now:           opts.Now,
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.timeout <= 0 {
		e.timeout = 5 * time.Second
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Policy returns the policy the engine was built with.
func (e *Engine) Policy() config.Policy { return e.policy }

// SessionTypes lists the bookable session types.
func (e *Engine) SessionTypes() []model.SessionType { return e.types.List() }

// ListSlots returns the slots of date that can hold sessionType.
func (e *Engine) ListSlots(ctx context.Context, date, sessionType string) ([]model.Slot, error) {
	st, ok := e.types.Get(sessionType)
	if !ok {
		return nil, validation("unknown session type %q", sessionType)
	}
	if _, err := model.ParseDate(date, e.policy.Location); err != nil {
		return nil, validation("date must be YYYY-MM-DD, got %q", date)
	}
	return e.slots(ctx, date, st.DurationMinutes, 0)
}

// slots loads what occupies date and runs the calculator.  Bookings and
// calendar busy intervals are fetched concurrently.  A calendar failure
// is logged and treated as "no busy intervals".
func (e *Engine) slots(ctx context.Context, date string, duration int, excludeID uint64) ([]model.Slot, error) {
	started := time.Now()
	defer func() { metrics.AvailabilitySeconds.Observe(time.Since(started).Seconds()) }()

	day, err := model.ParseDate(date, e.policy.Location)
	if err != nil {
		return nil, validation("date must be YYYY-MM-DD, got %q", date)
	}
	var (
		occupying []model.Booking
		busy      []model.Interval
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		occupying, err = e.bookings.ListOccupying(gctx, date, excludeID)
		return err
	})
	if e.calendar != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, e.timeout)
			defer cancel()
			iv, err := e.calendar.BusyIntervals(cctx, day, day.AddDate(0, 0, 1))
			if err != nil {
				metrics.SideEffectFailures.WithLabelValues("calendar.busy").Inc()
				e.log.Warn("calendar busy lookup failed", zap.String("date", date), zap.Error(err))
				return nil
			}
			busy = iv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load occupancy: %w", err)
	}
	return availability.Calculate(e.policy, availability.Input{
		Date:            date,
		DurationMinutes: duration,
		Now:             e.now(),
		Bookings:        occupying,
		Busy:            busy,
	})
}

// isFree reports whether b is a free session.  Types removed from the
// catalogue fall back to what the booking recorded.
func (e *Engine) isFree(b *model.Booking) bool {
	if st, ok := e.types.Get(b.SessionType); ok {
		return st.IsFree
	}
	return b.PriceCents == 0 && !b.PaidWithCredit
}

func (e *Engine) slotKey(date, start string) string {
	return fmt.Sprintf("%s|%s|%s", e.policy.Resource, date, start)
}

func freeClaimKey(clientID uint64, sessionType string) string {
	return fmt.Sprintf("%d|%s", clientID, sessionType)
}

// parseSlotInput validates a date and start time and returns the start
// in minutes after midnight.
func (e *Engine) parseSlotInput(date, start string) (int, error) {
	if _, err := model.ParseDate(date, e.policy.Location); err != nil {
		return 0, validation("date must be YYYY-MM-DD, got %q", date)
	}
	m, err := model.ParseClock(start)
	if err != nil || model.FormatClock(m) != start {
		return 0, validation("start time must be HH:MM, got %q", start)
	}
	return m, nil
}

// load fetches a booking and enforces ownership for client actors.
func (e *Engine) load(ctx context.Context, id uint64, actor model.Actor, clientID uint64) (*model.Booking, error) {
	if id == 0 {
		return nil, validation("booking id is required")
	}
	b, err := e.bookings.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("booking")
	}
	if err != nil {
		return nil, err
	}
	if actor == model.ActorClient && b.ClientID != clientID {
		return nil, &Error{Kind: KindForbidden, Message: "booking belongs to another client"}
	}
	return b, nil
}

// reject counts a typed failure before handing it back.
func reject(op string, err error) error {
	if k := KindOf(err); k != "" {
		metrics.Rejections.WithLabelValues(op, string(k)).Inc()
	}
	return err
}

// sessionData is the notification payload shared by every template.
func sessionData(b *model.Booking) map[string]any {
	data := map[string]any{
		"session_type":       b.SessionType,
		"date":               b.Date,
		"start_time":         b.StartTime,
		"end_time":           b.EndTime,
		"confirmation_token": b.ConfirmationToken,
	}
	if b.MeetingURL != nil {
		data["meeting_url"] = *b.MeetingURL
	}
	return data
}

// notify queues one notification per recipient: the client and, when
// configured, the practice.
func (e *Engine) notify(tasks *postCommit, template string, client model.Client, b *model.Booking, extra map[string]any) {
	if e.notifier == nil {
		return
	}
	var recipients []string
	if client.Email != "" {
		recipients = append(recipients, client.Email)
	}
	if e.practiceEmail != "" {
		recipients = append(recipients, e.practiceEmail)
	}
	for _, to := range recipients {
		tasks.add("notify."+template, func(ctx context.Context) error {
			data := sessionData(b)
			data["client_name"] = client.Name
			for k, v := range extra {
				data[k] = v
			}
			return e.notifier.Send(ctx, Notification{
				Template:  template,
				Recipient: to,
				BookingID: b.ID,
				Data:      data,
			})
		})
	}
}

// attachEvent queues creation of the calendar event for b and stores the
// returned id and meeting link on success.
func (e *Engine) attachEvent(tasks *postCommit, client model.Client, b *model.Booking) {
	if e.calendar == nil {
		return
	}
	tasks.add("calendar.create", func(ctx context.Context) error {
		start, err := b.StartsAt(e.policy.Location)
		if err != nil {
			return err
		}
		end, err := b.EndsAt(e.policy.Location)
		if err != nil {
			return err
		}
		subject := b.SessionType
		if st, ok := e.types.Get(b.SessionType); ok {
			subject = st.Label
		}
		if client.Name != "" {
			subject += " with " + client.Name
		}
		info, err := e.calendar.CreateEvent(ctx, EventRequest{
			BookingID:     b.ID,
			Subject:       subject,
			Start:         start,
			End:           end,
			AttendeeEmail: client.Email,
			AttendeeName:  client.Name,
		})
		if err != nil {
			return err
		}
		eventID, meetingURL := optional(info.EventID), optional(info.MeetingURL)
		if err := e.bookings.SetCalendarInfo(ctx, b.ID, eventID, meetingURL, e.now()); err != nil {
			return fmt.Errorf("store calendar info: %w", err)
		}
		b.CalendarEventID, b.MeetingURL = eventID, meetingURL
		return nil
	})
}

// dropEvent queues deletion of an existing calendar event.
func (e *Engine) dropEvent(tasks *postCommit, eventID *string) {
	if e.calendar == nil || eventID == nil || *eventID == "" {
		return
	}
	id := *eventID
	tasks.add("calendar.cancel", func(ctx context.Context) error {
		return e.calendar.CancelEvent(ctx, id)
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// clientFor loads the booking owner for side effects.  A missing client
// only degrades notifications, so the error is logged.
func (e *Engine) clientFor(ctx context.Context, id uint64) model.Client {
	c, err := e.clients.GetByID(ctx, id)
	if err != nil {
		e.log.Warn("client lookup for side effects failed", zap.Uint64("client_id", id), zap.Error(err))
		return model.Client{ID: id}
	}
	return c
}
