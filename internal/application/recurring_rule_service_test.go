package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joaosantosg/reserva-salas-uni/internal/holiday"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
	"github.com/joaosantosg/reserva-salas-uni/internal/scheduler"
)

var ruleTestNow = time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC)

type ruleHarness struct {
	svc      *RecurringRuleService
	store    *memoryStore
	catalog  *catalogStub
	notifier *notifierStub
	audit    *auditStub
	now      *time.Time
}

func newRuleHarness(t *testing.T, holidays holiday.Provider, batchSize int) *ruleHarness {
	t.Helper()

	course := "Engenharia"
	h := &ruleHarness{
		store: newMemoryStore(),
		catalog: &catalogStub{
			rooms: map[string]Room{
				"room-r":   {ID: "room-r", BlockID: "block-b", Code: "B101", Capacity: 40},
				"room-lab": {ID: "room-lab", BlockID: "block-b", Code: "LAB3", Capacity: 20, Restricted: true, RestrictedCourse: &course},
			},
			users: map[string]User{
				"user-ana":   {ID: "user-ana", Email: "ana@uni.br", Course: "Direito"},
				"user-bruno": {ID: "user-bruno", Email: "bruno@uni.br", Course: "Engenharia"},
				"admin":      {ID: "admin", Email: "admin@uni.br", IsAdmin: true},
			},
			semesters: map[string]Semester{
				"2025.1": {
					ID:         "sem-1",
					Identifier: "2025.1",
					StartDate:  recurrence.MustDate("2025-02-01"),
					EndDate:    recurrence.MustDate("2025-07-10"),
				},
			},
		},
		notifier: &notifierStub{},
		audit:    &auditStub{},
	}
	now := ruleTestNow
	h.now = &now

	h.svc = NewRecurringRuleService(RecurringRuleServiceDeps{
		Rules:        h.store,
		Reservations: h.store,
		Rooms:        h.catalog,
		Users:        h.catalog,
		Semesters:    h.catalog,
		Engine:       recurrence.NewEngine(time.UTC, holidays),
		Notifier:     h.notifier,
		Audit:        h.audit,
		IDGenerator:  sequentialIDs("id"),
		Now:          func() time.Time { return *h.now },
		BatchSize:    batchSize,
	})
	return h
}

func ana() Principal { return Principal{UserID: "user-ana", Course: "Direito"} }

func weeklyInput(start, end string, days ...int) RuleInput {
	return RuleInput{
		RoomID:    "room-r",
		Purpose:   "Cálculo I",
		Frequency: FrequencyInput{Kind: "WEEKLY", Weekdays: days},
		StartTime: start,
		EndTime:   end,
		StartDate: recurrence.MustDate("2025-01-06"),
		EndDate:   recurrence.MustDate("2025-01-17"),
	}
}

func bookingOn(id, day, start, end string) Reservation {
	d := recurrence.MustDate(day)
	from := recurrence.MustTimeOfDay(start)
	until := recurrence.MustTimeOfDay(end)
	return Reservation{
		ID:     id,
		RoomID: "room-r",
		UserID: "user-bruno",
		Start:  d.Add(time.Duration(from.Minutes()) * time.Minute),
		End:    d.Add(time.Duration(until.Minutes()) * time.Minute),
	}
}

func occurrenceDays(reservations []Reservation) []string {
	out := make([]string, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, r.Start.Format(time.DateOnly))
	}
	return out
}

func TestRecurringRuleService_CreateRegular(t *testing.T) {
	t.Parallel()

	t.Run("weekly rule generates one occurrence per due weekday", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		result, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		require.NoError(t, err)

		assert.Equal(t, "WEEKLY-B101-08H", result.Rule.Identification)
		assert.Equal(t, recurrence.KindRegular, result.Rule.Kind)
		assert.Equal(t, "user-ana", result.Rule.UserID)
		assert.Equal(t, 6, result.Generation.Persisted)

		occ := h.store.activeOccurrences(result.Rule.ID)
		assert.Equal(t,
			[]string{"2025-01-06", "2025-01-08", "2025-01-10", "2025-01-13", "2025-01-15", "2025-01-17"},
			occurrenceDays(occ))
		for _, r := range occ {
			assert.Equal(t, 8, r.Start.Hour())
			assert.Equal(t, 10, r.End.Hour())
			assert.Equal(t, "Cálculo I", r.Purpose)
		}

		assert.Len(t, h.notifier.rules, 1)
		assert.Equal(t, []string{AuditActionCreate}, h.audit.actions())
	})

	t.Run("declared exception is skipped", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		input := weeklyInput("08:00", "10:00", 0, 2, 4)
		input.Exceptions = []time.Time{recurrence.MustDate("2025-01-13")}
		result, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Principal: ana(), Input: input})
		require.NoError(t, err)

		days := occurrenceDays(h.store.activeOccurrences(result.Rule.ID))
		assert.Len(t, days, 5)
		assert.NotContains(t, days, "2025-01-13")
	})

	t.Run("holidays on due days become exceptions", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.NewFixed("2025-01-08", "2025-01-07"), 0)

		result, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		require.NoError(t, err)

		assert.Equal(t, []time.Time{recurrence.MustDate("2025-01-08")}, result.Rule.Exceptions,
			"only holidays on due days are recorded")
		assert.Equal(t, 5, result.Generation.Persisted)
	})

	t.Run("overlapping weekly rule is a conflict", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		first, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		require.NoError(t, err)

		_, err = h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: Principal{UserID: "user-bruno"},
			Input:     weeklyInput("09:00", "09:30", 0),
		})
		require.ErrorIs(t, err, ErrConflict)

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		require.Len(t, conflict.Conflicts, 1)
		assert.Equal(t, first.Rule.ID, conflict.Conflicts[0].WithID)
		assert.Equal(t, scheduler.ConflictTypeSeries, conflict.Conflicts[0].Type)

		page, err := h.svc.ListRules(context.Background(), RuleFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total, "rejected rule must not be stored")
	})

	t.Run("adjacent windows do not conflict", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		_, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		require.NoError(t, err)

		_, err = h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("10:00", "12:00", 0),
		})
		assert.NoError(t, err)
	})

	t.Run("occurrence overlapping a standalone reservation is a conflict", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		require.NoError(t, h.store.CreateReservation(context.Background(), Reservation{
			ID:     "res-1",
			RoomID: "room-r",
			UserID: "user-bruno",
			Start:  time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC),
			End:    time.Date(2025, time.January, 15, 11, 0, 0, 0, time.UTC),
		}, nil))

		_, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "res-1", conflict.Conflicts[0].WithID)
		assert.Equal(t, scheduler.ConflictTypeBooking, conflict.Conflicts[0].Type)
	})

	t.Run("empty weekday set is rejected", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		_, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00"),
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, string(recurrence.CodeMissingWeekdays), vErr.Code("weekdays"))
		assert.Equal(t, "validation", ErrorKind(err))
	})

	t.Run("malformed clock is a format error", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		_, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("8h", "10:00", 0),
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, CodeInvalidFormat, vErr.Code("start_time"))
	})

	t.Run("start date before yesterday is in the past", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		input := weeklyInput("08:00", "10:00", 0, 2, 4)
		input.StartDate = recurrence.MustDate("2024-12-31")
		_, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Principal: ana(), Input: input})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, string(recurrence.CodeStartDateInPast), vErr.Code("start_date"))

		input.StartDate = recurrence.MustDate("2025-01-01")
		_, err = h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Principal: ana(), Input: input})
		assert.NoError(t, err, "yesterday is accepted")
	})

	t.Run("restricted room rejects other courses", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		input := weeklyInput("08:00", "10:00", 0)
		input.RoomID = "room-lab"
		_, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Principal: ana(), Input: input})
		assert.ErrorIs(t, err, ErrBusinessRule)

		_, err = h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: Principal{UserID: "user-bruno"},
			Input:     input,
		})
		assert.NoError(t, err)
	})

	t.Run("unknown room or owner is not found", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		input := weeklyInput("08:00", "10:00", 0)
		input.RoomID = "room-x"
		_, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Principal: ana(), Input: input})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: Principal{UserID: "ghost"},
			Input:     weeklyInput("08:00", "10:00", 0),
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing principal is unauthorized", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		_, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Input: weeklyInput("08:00", "10:00", 0)})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("explicit identification is kept", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		input := weeklyInput("08:00", "10:00", 0)
		input.Identification = "  Monitoria Cálculo  "
		result, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Principal: ana(), Input: input})
		require.NoError(t, err)
		assert.Equal(t, "Monitoria Cálculo", result.Rule.Identification)
	})

	t.Run("notification failure does not undo the rule", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		h.notifier.err = errors.New("broker down")
		h.audit.err = errors.New("audit down")

		result, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		require.NoError(t, err)
		stored, err := h.svc.GetRule(context.Background(), result.Rule.ID)
		require.NoError(t, err)
		assert.True(t, stored.Active())
	})
}

func TestRecurringRuleService_Generation(t *testing.T) {
	t.Parallel()

	t.Run("batch failure keeps committed batches and reports them", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 2)
		h.store.failInsert = func(call int) error {
			if call == 2 {
				return errStorageDown
			}
			return nil
		}

		result, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		require.ErrorIs(t, err, ErrBusinessRule)
		assert.ErrorIs(t, err, errStorageDown)

		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, 2, genErr.Persisted)
		assert.Equal(t, 2, result.Generation.Persisted)
		assert.Len(t, h.store.activeOccurrences(result.Rule.ID), 2)

		_, getErr := h.svc.GetRule(context.Background(), result.Rule.ID)
		assert.NoError(t, getErr, "the rule itself stays committed")
	})

	t.Run("booking committed before a batch aborts that batch", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 2)
		h.store.failInsert = func(call int) error {
			if call == 2 {
				h.store.putLocked(bookingOn("res-race", "2025-01-13", "08:30", "09:30"))
			}
			return nil
		}

		result, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, 2, genErr.Persisted)
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "res-race", conflict.Conflicts[0].WithID)
		assert.Equal(t, "conflict", ErrorKind(err))
		assert.Equal(t, []string{"2025-01-06", "2025-01-08"}, occurrenceDays(h.store.activeOccurrences(result.Rule.ID)))
	})

	t.Run("cancellation is observed between batches", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 2)

		ctx, cancel := context.WithCancel(context.Background())
		h.store.failInsert = func(call int) error {
			if call == 1 {
				cancel()
			}
			return nil
		}

		_, err := h.svc.CreateRegular(ctx, CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		require.ErrorIs(t, err, context.Canceled)

		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, 2, genErr.Persisted)
		assert.Equal(t, 1, h.store.insertCalls)
	})

	t.Run("daily rule yields one occurrence per day", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 3)

		input := weeklyInput("14:00", "15:00")
		input.Frequency = FrequencyInput{Kind: "daily"}
		result, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Principal: ana(), Input: input})
		require.NoError(t, err)
		assert.Equal(t, 12, result.Generation.Persisted)
		assert.Equal(t, 4, result.Generation.Batches)
		assert.Equal(t, "DAILY-B101-14H", result.Rule.Identification)
	})
}

func TestRecurringRuleService_CreateFromSemester(t *testing.T) {
	t.Parallel()

	t.Run("dates come from the semester", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		input := weeklyInput("08:00", "10:00", 0)
		input.StartDate = time.Time{}
		input.EndDate = time.Time{}
		result, err := h.svc.CreateFromSemester(context.Background(), CreateSemesterRuleParams{
			Principal: ana(),
			Semester:  "2025.1",
			Input:     input,
		})
		require.NoError(t, err)

		assert.Equal(t, recurrence.MustDate("2025-02-01"), result.Rule.StartDate)
		assert.Equal(t, recurrence.MustDate("2025-07-10"), result.Rule.EndDate)
		assert.Equal(t, recurrence.KindSemesterBound, result.Rule.Kind)
		assert.Equal(t, "2025.1", result.Rule.Semester)
		assert.Equal(t, "WEEKLY-B101-08H-2025.1", result.Rule.Identification)
	})

	t.Run("unknown semester is not found", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		_, err := h.svc.CreateFromSemester(context.Background(), CreateSemesterRuleParams{
			Principal: ana(),
			Semester:  "2031.2",
			Input:     weeklyInput("08:00", "10:00", 0),
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRecurringRuleService_UpdateRule(t *testing.T) {
	t.Parallel()

	create := func(t *testing.T, h *ruleHarness, principal Principal, input RuleInput) recurrence.Rule {
		t.Helper()
		result, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Principal: principal, Input: input})
		require.NoError(t, err)
		return result.Rule
	}

	t.Run("moving within its own slot does not conflict with itself", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		rule := create(t, h, ana(), weeklyInput("08:00", "10:00", 0, 2, 4))

		updated, err := h.svc.UpdateRule(context.Background(), UpdateRuleParams{
			Principal: ana(),
			RuleID:    rule.ID,
			Patch:     RulePatch{EndTime: mo.Some("09:00")},
		})
		require.NoError(t, err)
		assert.Equal(t, recurrence.MustTimeOfDay("09:00"), updated.EndTime)
		assert.Equal(t, []string{AuditActionCreate, AuditActionUpdate}, h.audit.actions())
	})

	t.Run("moving onto another rule is a conflict", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		create(t, h, ana(), weeklyInput("08:00", "10:00", 0, 2, 4))
		other := create(t, h, ana(), weeklyInput("08:00", "10:00", 1, 3))

		_, err := h.svc.UpdateRule(context.Background(), UpdateRuleParams{
			Principal: ana(),
			RuleID:    other.ID,
			Patch:     RulePatch{Frequency: mo.Some(FrequencyInput{Kind: "WEEKLY", Weekdays: []int{1, 4}})},
		})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("removing an exception over a booked slot is a conflict", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		input := weeklyInput("08:00", "10:00", 0, 2, 4)
		input.Exceptions = []time.Time{recurrence.MustDate("2025-01-13")}
		rule := create(t, h, ana(), input)
		require.NoError(t, h.store.CreateReservation(context.Background(), bookingOn("res-1", "2025-01-13", "08:30", "09:30"), nil))

		_, err := h.svc.UpdateRule(context.Background(), UpdateRuleParams{
			Principal: ana(),
			RuleID:    rule.ID,
			Patch:     RulePatch{Exceptions: mo.Some([]time.Time{})},
		})
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "res-1", conflict.Conflicts[0].WithID)

		stored, err := h.svc.GetRule(context.Background(), rule.ID)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{recurrence.MustDate("2025-01-13")}, stored.Exceptions)
	})

	t.Run("purpose change skips validation of past dates", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		rule := create(t, h, ana(), weeklyInput("08:00", "10:00", 0, 2, 4))
		*h.now = ruleTestNow.AddDate(0, 1, 0)

		updated, err := h.svc.UpdateRule(context.Background(), UpdateRuleParams{
			Principal: ana(),
			RuleID:    rule.ID,
			Patch:     RulePatch{Purpose: mo.Some("Cálculo II")},
		})
		require.NoError(t, err)
		assert.Equal(t, "Cálculo II", updated.Purpose)
	})

	t.Run("invalid patch is a validation error", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		rule := create(t, h, ana(), weeklyInput("08:00", "10:00", 0, 2, 4))

		_, err := h.svc.UpdateRule(context.Background(), UpdateRuleParams{
			Principal: ana(),
			RuleID:    rule.ID,
			Patch:     RulePatch{EndDate: mo.Some(recurrence.MustDate("2025-01-01"))},
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, string(recurrence.CodeInvalidDateRange), vErr.Code("end_date"))
	})

	t.Run("other users cannot update", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		rule := create(t, h, ana(), weeklyInput("08:00", "10:00", 0))

		_, err := h.svc.UpdateRule(context.Background(), UpdateRuleParams{
			Principal: Principal{UserID: "user-bruno"},
			RuleID:    rule.ID,
			Patch:     RulePatch{Purpose: mo.Some("x")},
		})
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = h.svc.UpdateRule(context.Background(), UpdateRuleParams{
			Principal: Principal{UserID: "admin", IsAdmin: true},
			RuleID:    rule.ID,
			Patch:     RulePatch{Purpose: mo.Some("x")},
		})
		assert.NoError(t, err)
	})

	t.Run("semester-bound dates cannot be patched", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		result, err := h.svc.CreateFromSemester(context.Background(), CreateSemesterRuleParams{
			Principal: ana(),
			Semester:  "2025.1",
			Input:     weeklyInput("08:00", "10:00", 0),
		})
		require.NoError(t, err)

		_, err = h.svc.UpdateRule(context.Background(), UpdateRuleParams{
			Principal: ana(),
			RuleID:    result.Rule.ID,
			Patch:     RulePatch{EndDate: mo.Some(recurrence.MustDate("2025-06-30"))},
		})
		assert.ErrorIs(t, err, ErrBusinessRule)
	})

	t.Run("unknown rule is not found", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)

		_, err := h.svc.UpdateRule(context.Background(), UpdateRuleParams{Principal: ana(), RuleID: "missing"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRecurringRuleService_DeleteRule(t *testing.T) {
	t.Parallel()

	t.Run("future rule is cancelled with its occurrences", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		created, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		require.NoError(t, err)

		reason := "course cancelled"
		deleted, err := h.svc.DeleteRule(context.Background(), DeleteRuleParams{
			Principal: ana(),
			RuleID:    created.Rule.ID,
			Reason:    &reason,
		})
		require.NoError(t, err)
		require.NotNil(t, deleted.DeletedAt)
		assert.Equal(t, ruleTestNow, *deleted.DeletedAt)

		occ := h.store.occurrencesOf(created.Rule.ID)
		require.Len(t, occ, 6)
		for _, r := range occ {
			require.NotNil(t, r.DeletedAt)
			assert.Equal(t, ruleTestNow, *r.DeletedAt)
			assert.Equal(t, "user-ana", *r.DeletedBy)
		}

		last := h.audit.records[len(h.audit.records)-1]
		assert.Equal(t, AuditActionCancel, last.Action)
		assert.Equal(t, &reason, last.Reason)

		_, err = h.svc.DeleteRule(context.Background(), DeleteRuleParams{Principal: ana(), RuleID: created.Rule.ID})
		assert.ErrorIs(t, err, ErrNotFound, "inactive rules cannot be deleted again")
	})

	t.Run("started rule cannot be deleted", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		created, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		require.NoError(t, err)

		*h.now = time.Date(2025, time.January, 6, 7, 0, 0, 0, time.UTC)
		_, err = h.svc.DeleteRule(context.Background(), DeleteRuleParams{Principal: ana(), RuleID: created.Rule.ID})
		assert.ErrorIs(t, err, ErrBusinessRule)
		assert.Len(t, h.store.activeOccurrences(created.Rule.ID), 6)
	})

	t.Run("only owner or admin may delete", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		created, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0),
		})
		require.NoError(t, err)

		_, err = h.svc.DeleteRule(context.Background(), DeleteRuleParams{Principal: Principal{UserID: "user-bruno"}, RuleID: created.Rule.ID})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, "forbidden", ErrorKind(err))
	})
}

func TestRecurringRuleService_RegenerateRule(t *testing.T) {
	t.Parallel()

	t.Run("regeneration yields the same slots", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		created, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0, 2, 4),
		})
		require.NoError(t, err)
		before := h.store.activeOccurrences(created.Rule.ID)

		result, err := h.svc.RegenerateRule(context.Background(), RegenerateRuleParams{Principal: ana(), RuleID: created.Rule.ID})
		require.NoError(t, err)
		assert.Equal(t, 6, result.Generation.Persisted)

		after := h.store.activeOccurrences(created.Rule.ID)
		require.Len(t, after, len(before))
		for i := range before {
			assert.True(t, before[i].Start.Equal(after[i].Start))
			assert.True(t, before[i].End.Equal(after[i].End))
			assert.NotEqual(t, before[i].ID, after[i].ID)
		}
		assert.Len(t, h.store.occurrencesOf(created.Rule.ID), 12, "previous occurrences are soft-deleted, not removed")
	})

	t.Run("removing an exception adds back exactly that day", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		input := weeklyInput("08:00", "10:00", 0, 2, 4)
		input.Exceptions = []time.Time{recurrence.MustDate("2025-01-13")}
		created, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Principal: ana(), Input: input})
		require.NoError(t, err)

		_, err = h.svc.UpdateRule(context.Background(), UpdateRuleParams{
			Principal: ana(),
			RuleID:    created.Rule.ID,
			Patch:     RulePatch{Exceptions: mo.Some([]time.Time{})},
		})
		require.NoError(t, err)

		result, err := h.svc.RegenerateRule(context.Background(), RegenerateRuleParams{Principal: ana(), RuleID: created.Rule.ID})
		require.NoError(t, err)
		assert.Equal(t, 6, result.Generation.Persisted)
		assert.Contains(t, occurrenceDays(h.store.activeOccurrences(created.Rule.ID)), "2025-01-13")
	})

	t.Run("regeneration never double-books the room", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		input := weeklyInput("08:00", "10:00", 0, 2, 4)
		input.Exceptions = []time.Time{recurrence.MustDate("2025-01-13")}
		created, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{Principal: ana(), Input: input})
		require.NoError(t, err)
		require.NoError(t, h.store.CreateReservation(context.Background(), bookingOn("res-1", "2025-01-13", "08:30", "09:30"), nil))

		rule := created.Rule
		rule.Exceptions = nil
		require.NoError(t, h.store.UpdateRule(context.Background(), rule, nil))

		_, err = h.svc.RegenerateRule(context.Background(), RegenerateRuleParams{Principal: ana(), RuleID: rule.ID})
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "res-1", conflict.Conflicts[0].WithID)

		active := h.store.activeOccurrences(rule.ID)
		assert.Len(t, active, 5, "existing occurrences are kept")
		assert.NotContains(t, occurrenceDays(active), "2025-01-13")
	})

	t.Run("inactive rule cannot be regenerated", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		created, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0),
		})
		require.NoError(t, err)
		_, err = h.svc.DeleteRule(context.Background(), DeleteRuleParams{Principal: ana(), RuleID: created.Rule.ID})
		require.NoError(t, err)

		_, err = h.svc.RegenerateRule(context.Background(), RegenerateRuleParams{Principal: ana(), RuleID: created.Rule.ID})
		assert.ErrorIs(t, err, ErrBusinessRule)
	})

	t.Run("others are forbidden", func(t *testing.T) {
		t.Parallel()
		h := newRuleHarness(t, holiday.None{}, 0)
		created, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", 0),
		})
		require.NoError(t, err)

		_, err = h.svc.RegenerateRule(context.Background(), RegenerateRuleParams{Principal: Principal{UserID: "user-bruno"}, RuleID: created.Rule.ID})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestRecurringRuleService_Queries(t *testing.T) {
	t.Parallel()

	h := newRuleHarness(t, holiday.None{}, 0)
	for _, days := range [][]int{{0}, {1}, {2}} {
		_, err := h.svc.CreateRegular(context.Background(), CreateRegularRuleParams{
			Principal: ana(),
			Input:     weeklyInput("08:00", "10:00", days...),
		})
		require.NoError(t, err)
	}

	page, err := h.svc.ListRules(context.Background(), RuleFilter{Pagination: Pagination{Page: 2, Size: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Offset)

	_, err = h.svc.ListRules(context.Background(), RuleFilter{Frequency: "yearly"})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	ruleID := page.Items[0].ID
	occ, err := h.svc.ListOccurrences(context.Background(), ruleID, ReservationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, occ.Total)
	for _, r := range occ.Items {
		assert.Equal(t, ruleID, *r.RuleID)
	}

	_, err = h.svc.ListOccurrences(context.Background(), "missing", ReservationFilter{})
	assert.ErrorIs(t, err, ErrNotFound)
}
