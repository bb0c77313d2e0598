package policy

import (
	"testing"
	"time"

	"github.com/iliyamo/practice-booking/internal/config"
	"github.com/iliyamo/practice-booking/internal/model"
)

var now = time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func timep(t time.Time) *time.Time { return &t }

func confirmed(date, start string) *model.Booking {
	return &model.Booking{ID: 7, Date: date, StartTime: start, EndTime: "23:00", Status: model.StatusConfirmed}
}

func TestEvaluateCancel(t *testing.T) {
	p := config.DefaultPolicy()

	rescheduledFromLate := confirmed("2026-10-30", "10:00")
	rescheduledFromLate.RescheduleCount = 1
	rescheduledFromLate.OriginalDate = strp("2026-10-12")
	rescheduledFromLate.OriginalStartTime = strp("10:00")
	rescheduledFromLate.RescheduledAt = timep(time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC))

	rescheduledEarly := confirmed("2026-10-30", "10:00")
	rescheduledEarly.RescheduleCount = 1
	rescheduledEarly.OriginalDate = strp("2026-10-20")
	rescheduledEarly.OriginalStartTime = strp("10:00")
	rescheduledEarly.RescheduledAt = timep(time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC))

	// First move made 50h ahead of the original slot; the second, later
	// move happened after that slot had passed.
	movedTwiceEarly := confirmed("2026-10-23", "10:00")
	movedTwiceEarly.RescheduleCount = 2
	movedTwiceEarly.OriginalDate = strp("2026-10-14")
	movedTwiceEarly.OriginalStartTime = strp("10:00")
	movedTwiceEarly.FirstRescheduledAt = timep(time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC))
	movedTwiceEarly.RescheduledAt = timep(time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC))

	// First move dodged the late fee; a later move does not wash it out.
	movedTwiceLate := confirmed("2026-10-30", "10:00")
	movedTwiceLate.RescheduleCount = 2
	movedTwiceLate.OriginalDate = strp("2026-10-12")
	movedTwiceLate.OriginalStartTime = strp("10:00")
	movedTwiceLate.FirstRescheduledAt = timep(time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC))
	movedTwiceLate.RescheduledAt = timep(time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC))

	movedAtNotice := confirmed("2026-10-30", "10:00")
	movedAtNotice.RescheduleCount = 1
	movedAtNotice.OriginalDate = strp("2026-10-13")
	movedAtNotice.OriginalStartTime = strp("06:00")
	movedAtNotice.RescheduledAt = timep(time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC))

	movedAfterOriginal := confirmed("2026-10-30", "10:00")
	movedAfterOriginal.RescheduleCount = 1
	movedAfterOriginal.OriginalDate = strp("2026-10-10")
	movedAfterOriginal.OriginalStartTime = strp("10:00")
	movedAfterOriginal.RescheduledAt = timep(time.Date(2026, 10, 11, 6, 0, 0, 0, time.UTC))

	pending := confirmed("2026-10-20", "10:00")
	pending.Status = model.StatusPending

	overridden := confirmed("2026-10-12", "10:00")
	overridden.PolicyOverride = true

	overriddenAbuse := *rescheduledFromLate
	overriddenAbuse.PolicyOverride = true

	cancelled := confirmed("2026-10-20", "10:00")
	cancelled.Status = model.StatusCancelled
	cancelled.PolicyOverride = true

	completed := confirmed("2026-10-01", "10:00")
	completed.Status = model.StatusCompleted

	cases := []struct {
		name    string
		booking *model.Booking
		free    bool
		want    CancelType
		allowed bool
	}{
		{"well ahead", confirmed("2026-10-14", "10:00"), false, CancelNormal, true},
		{"exactly at notice", confirmed("2026-10-13", "08:00"), false, CancelNormal, true},
		{"two hours before", confirmed("2026-10-12", "10:00"), false, CancelLate, true},
		{"free inside notice", confirmed("2026-10-12", "10:00"), true, CancelNormal, true},
		{"override inside notice", overridden, false, CancelNormal, true},
		{"reschedule dodged late fee", rescheduledFromLate, false, CancelAntiAbuse, true},
		{"override beats anti-abuse", &overriddenAbuse, false, CancelNormal, true},
		{"rescheduled in good time", rescheduledEarly, false, CancelNormal, true},
		{"moved twice, first move early", movedTwiceEarly, false, CancelNormal, true},
		{"moved twice, first move late", movedTwiceLate, false, CancelAntiAbuse, true},
		{"moved exactly at notice", movedAtNotice, false, CancelNormal, true},
		{"moved after original passed", movedAfterOriginal, false, CancelNormal, true},
		{"pending", pending, false, CancelBlocked, false},
		{"already cancelled", cancelled, false, CancelBlocked, false},
		{"completed", completed, false, CancelBlocked, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := EvaluateCancel(p, tc.booking, tc.free, now)
			if err != nil {
				t.Fatal(err)
			}
			if d.Type != tc.want || d.Allowed != tc.allowed {
				t.Fatalf("decision = %+v, want type %s allowed %v", d, tc.want, tc.allowed)
			}
			if d.Charged() != (tc.want == CancelLate || tc.want == CancelAntiAbuse) {
				t.Fatalf("Charged() = %v for %s", d.Charged(), d.Type)
			}
		})
	}
}

func TestEvaluateReschedule(t *testing.T) {
	p := config.DefaultPolicy()

	exhausted := confirmed("2026-10-20", "10:00")
	exhausted.RescheduleCount = p.MaxReschedules

	exhaustedOverride := *exhausted
	exhaustedOverride.PolicyOverride = true

	exhaustedFree := *exhausted

	cancelled := confirmed("2026-10-20", "10:00")
	cancelled.Status = model.StatusCancelled

	cases := []struct {
		name    string
		booking *model.Booking
		free    bool
		allowed bool
		reason  string
	}{
		{"well ahead", confirmed("2026-10-20", "10:00"), false, true, ""},
		{"inside notice", confirmed("2026-10-12", "20:00"), false, false, ReasonInsideReschedule},
		{"free inside notice", confirmed("2026-10-12", "20:00"), true, true, ""},
		{"max reached", exhausted, false, false, ReasonMaxReschedules},
		{"max reached free", &exhaustedFree, true, false, ReasonMaxReschedules},
		{"max reached override", &exhaustedOverride, false, true, ""},
		{"cancelled", cancelled, false, false, ReasonBookingNotActive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := EvaluateReschedule(p, tc.booking, tc.free, now)
			if err != nil {
				t.Fatal(err)
			}
			if d.Allowed != tc.allowed || d.Reason != tc.reason {
				t.Fatalf("decision = %+v, want allowed %v reason %q", d, tc.allowed, tc.reason)
			}
		})
	}
}

func TestEvaluateCancelBadStoredTime(t *testing.T) {
	b := confirmed("2026-10-20", "25:99")
	if _, err := EvaluateCancel(config.DefaultPolicy(), b, false, now); err == nil {
		t.Fatal("expected error for unparsable start time")
	}
}
