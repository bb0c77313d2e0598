// Package calendar implements the therapist calendar used by the booking
// engine: a Google Calendar synchronizer and a no-op stand-in.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/iliyamo/practice-booking/internal/booking"
	"github.com/iliyamo/practice-booking/internal/model"
)

// Google talks to one Google calendar through a service account.  Calls
// are throttled client-side to stay inside the API's per-user quota.
type Google struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewGoogle builds a synchronizer from a service-account credentials file.
func NewGoogle(ctx context.Context, credentialsFile, calendarID string, loc *time.Location, log *zap.Logger) (*Google, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return &Google{
		svc:        svc,
		calendarID: calendarID,
		loc:        loc,
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		log:        log,
	}, nil
}

// CreateEvent inserts an event with a Meet conference and invites the
// client.  Events are transparent so they do not show up again in the
// free/busy answer; bookings are already tracked by the engine.
func (g *Google) CreateEvent(ctx context.Context, ev booking.EventRequest) (booking.EventInfo, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return booking.EventInfo{}, err
	}
	event := &gcal.Event{
		Summary:      ev.Subject,
		Start:        &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: g.loc.String()},
		End:          &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: g.loc.String()},
		Transparency: "transparent",
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{"booking_id": strconv.FormatUint(ev.BookingID, 10)},
		},
	}
	if ev.AttendeeEmail != "" {
		event.Attendees = []*gcal.EventAttendee{{Email: ev.AttendeeEmail, DisplayName: ev.AttendeeName}}
	}
	created, err := g.svc.Events.Insert(g.calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return booking.EventInfo{}, fmt.Errorf("insert event: %w", err)
	}
	info := booking.EventInfo{EventID: created.Id, MeetingURL: created.HangoutLink}
	if info.MeetingURL == "" && created.ConferenceData != nil {
		for _, ep := range created.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				info.MeetingURL = ep.Uri
				break
			}
		}
	}
	g.log.Debug("calendar event created", zap.Uint64("booking_id", ev.BookingID), zap.String("event_id", info.EventID))
	return info, nil
}

// CancelEvent deletes the event.  An event that is already gone counts
// as cancelled.
func (g *Google) CancelEvent(ctx context.Context, eventID string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	err := g.svc.Events.Delete(g.calendarID, eventID).SendUpdates("all").Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

// BusyIntervals asks the free/busy endpoint for the calendar's busy
// periods in [from, to).
func (g *Google) BusyIntervals(ctx context.Context, from, to time.Time) ([]model.Interval, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := g.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin:  from.Format(time.RFC3339),
		TimeMax:  to.Format(time.RFC3339),
		TimeZone: g.loc.String(),
		Items:    []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy: %w", err)
	}
	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("freebusy %s: %s", g.calendarID, cal.Errors[0].Reason)
	}
	return parsePeriods(cal.Busy)
}

func parsePeriods(periods []*gcal.TimePeriod) ([]model.Interval, error) {
	out := make([]model.Interval, 0, len(periods))
	for _, p := range periods {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("busy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("busy end %q: %w", p.End, err)
		}
		out = append(out, model.Interval{Start: start, End: end})
	}
	return out, nil
}
