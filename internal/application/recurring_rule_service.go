package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
	"github.com/joaosantosg/reserva-salas-uni/internal/scheduler"
)

// RecurringRuleServiceDeps captures the collaborators of the recurring rule service.
type RecurringRuleServiceDeps struct {
	Rules        RecurringRuleStore
	Reservations ReservationStore
	Rooms        RoomCatalog
	Users        UserDirectory
	Semesters    SemesterCatalog
	Engine       *recurrence.Engine
	Notifier     Notifier
	Audit        AuditSink
	IDGenerator  func() string
	Now          func() time.Time
	BatchSize    int
	Logger       *slog.Logger
}

// RecurringRuleService manages the lifecycle of recurring rules and the
// reservations they generate.
type RecurringRuleService struct {
	rules        RecurringRuleStore
	reservations ReservationStore
	rooms        RoomCatalog
	users        UserDirectory
	semesters    SemesterCatalog
	engine       *recurrence.Engine
	notifier     Notifier
	audit        AuditSink
	idGenerator  func() string
	now          func() time.Time
	batchSize    int
	logger       *slog.Logger
}

// NewRecurringRuleService constructs the service. Notifier and Audit are optional.
func NewRecurringRuleService(deps RecurringRuleServiceDeps) *RecurringRuleService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Engine == nil {
		deps.Engine = recurrence.NewEngine(time.UTC, nil)
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = recurrence.DefaultBatchSize
	}
	return &RecurringRuleService{
		rules:        deps.Rules,
		reservations: deps.Reservations,
		rooms:        deps.Rooms,
		users:        deps.Users,
		semesters:    deps.Semesters,
		engine:       deps.Engine,
		notifier:     deps.Notifier,
		audit:        deps.Audit,
		idGenerator:  deps.IDGenerator,
		now:          deps.Now,
		batchSize:    deps.BatchSize,
		logger:       defaultLogger(deps.Logger),
	}
}

func (s *RecurringRuleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RecurringRuleService", operation, attrs...)
}

// today is the current calendar date in the engine's timezone.
func (s *RecurringRuleService) today() time.Time {
	return recurrence.DateOf(s.now().In(s.engine.Location()))
}

// CreateRegular creates a rule with explicit dates and generates its occurrences.
// When generation fails midway the rule stays persisted and the returned
// result reports what was written alongside a *GenerationError.
func (s *RecurringRuleService) CreateRegular(ctx context.Context, params CreateRegularRuleParams) (result RuleResult, err error) {
	if s == nil {
		err = fmt.Errorf("RecurringRuleService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRegular",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create recurring rule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("rule_id", result.Rule.ID, "occurrences", result.Generation.Persisted).
			InfoContext(ctx, "recurring rule created")
	}()

	result, err = s.create(ctx, logger, params.Principal, params.Input, recurrence.KindRegular, nil)
	return
}

// CreateFromSemester creates a rule whose dates are copied from the named semester.
func (s *RecurringRuleService) CreateFromSemester(ctx context.Context, params CreateSemesterRuleParams) (result RuleResult, err error) {
	if s == nil {
		err = fmt.Errorf("RecurringRuleService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateFromSemester",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
		"semester", params.Semester,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create semester rule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("rule_id", result.Rule.ID, "occurrences", result.Generation.Persisted).
			InfoContext(ctx, "semester rule created")
	}()

	identifier := strings.TrimSpace(params.Semester)
	if identifier == "" {
		vErr := &ValidationError{}
		vErr.add("semester", CodeRequired, "semester is required")
		err = vErr
		return
	}
	if s.semesters == nil {
		err = fmt.Errorf("semester catalog not configured")
		return
	}

	semester, lookupErr := s.semesters.GetSemesterByIdentifier(ctx, identifier)
	if lookupErr != nil {
		err = mapLookupError(lookupErr, "semester", identifier)
		return
	}

	input := params.Input
	input.StartDate = semester.StartDate
	input.EndDate = semester.EndDate
	result, err = s.create(ctx, logger, params.Principal, input, recurrence.KindSemesterBound, &semester)
	return
}

func (s *RecurringRuleService) create(ctx context.Context, logger *slog.Logger, principal Principal, input RuleInput, kind recurrence.Kind, semester *Semester) (RuleResult, error) {
	if principal.UserID == "" {
		return RuleResult{}, ErrUnauthorized
	}
	if s.rules == nil || s.reservations == nil || s.rooms == nil || s.users == nil {
		return RuleResult{}, fmt.Errorf("recurring rule service dependencies not configured")
	}

	room, err := s.rooms.GetRoom(ctx, input.RoomID)
	if err != nil {
		return RuleResult{}, mapLookupError(err, "room", input.RoomID)
	}
	owner, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		return RuleResult{}, mapLookupError(err, "user", principal.UserID)
	}
	if !room.AllowsCourse(owner.Course) {
		return RuleResult{}, businessError("room %s is restricted to course %s", room.Code, *room.RestrictedCourse)
	}

	rule, vErr := buildRule(input)
	today := s.today()
	vErr.merge(validateRule(rule, recurrence.ValidateOptions{Today: &today}))
	if vErr.HasErrors() {
		return RuleResult{}, vErr
	}

	now := s.now()
	rule.ID = s.idGenerator()
	rule.Kind = kind
	rule.RoomID = room.ID
	rule.UserID = owner.ID
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if semester != nil {
		rule.Semester = semester.Identifier
	}
	if rule.Identification == "" {
		rule.Identification = recurrence.Identification(rule, room.Code)
	}

	holidays, err := s.engine.HolidayExceptions(rule)
	if err != nil {
		return RuleResult{}, fmt.Errorf("collect holiday exceptions: %w", err)
	}
	rule.AddExceptions(holidays...)

	if err := s.rules.CreateRule(ctx, rule, s.ruleConflictCheck(rule)); err != nil {
		return RuleResult{}, mapRuleRepoError(err)
	}
	logger.DebugContext(ctx, "recurring rule stored", "rule_id", rule.ID, "holiday_exceptions", len(holidays))

	report, genErr := s.generate(ctx, logger, rule)
	result := RuleResult{Rule: rule, Generation: report}

	recordAudit(ctx, s.audit, logger, AuditRecord{
		Action:   AuditActionCreate,
		Entity:   AuditEntityRule,
		EntityID: rule.ID,
		ActorID:  principal.UserID,
		After:    SnapshotRule(rule),
		At:       now,
	})
	if genErr != nil {
		return result, genErr
	}

	s.notifyRuleCreated(ctx, logger, rule, owner)
	return result, nil
}

// notifyRuleCreated delivers the creation notice after the rule is committed.
// Failures are logged and never undo the rule.
func (s *RecurringRuleService) notifyRuleCreated(ctx context.Context, logger *slog.Logger, rule recurrence.Rule, owner User) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRuleCreated(context.WithoutCancel(ctx), rule, owner); err != nil {
		logger.WarnContext(ctx, "rule notification failed", "rule_id", rule.ID, "error", err)
	}
}

// GetRule returns a rule, including soft-deleted rules.
func (s *RecurringRuleService) GetRule(ctx context.Context, id string) (recurrence.Rule, error) {
	if s == nil || s.rules == nil {
		return recurrence.Rule{}, fmt.Errorf("RecurringRuleService is not configured")
	}
	rule, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return recurrence.Rule{}, mapLookupError(err, "recurring rule", id)
	}
	return rule, nil
}

// ListRules returns a page of rules matching filter.
func (s *RecurringRuleService) ListRules(ctx context.Context, filter RuleFilter) (Page[recurrence.Rule], error) {
	if s == nil || s.rules == nil {
		return Page[recurrence.Rule]{}, fmt.Errorf("RecurringRuleService is not configured")
	}
	if filter.Frequency != "" {
		kind, err := recurrence.ParseFrequencyKind(filter.Frequency)
		if err != nil {
			vErr := &ValidationError{}
			vErr.add("frequency", CodeInvalidValue, err.Error())
			return Page[recurrence.Rule]{}, vErr
		}
		filter.Frequency = string(kind)
	}
	filter.Pagination = filter.Pagination.normalize()

	rules, total, err := s.rules.ListRules(ctx, filter)
	if err != nil {
		return Page[recurrence.Rule]{}, mapRuleRepoError(err)
	}
	return Page[recurrence.Rule]{
		Items:  rules,
		Total:  total,
		Page:   filter.Pagination.Page,
		Size:   filter.Pagination.Size,
		Offset: filter.Pagination.offset(),
	}, nil
}

// ListOccurrences returns the reservations generated by a rule.
func (s *RecurringRuleService) ListOccurrences(ctx context.Context, ruleID string, filter ReservationFilter) (Page[Reservation], error) {
	if s == nil || s.rules == nil || s.reservations == nil {
		return Page[Reservation]{}, fmt.Errorf("RecurringRuleService is not configured")
	}
	if _, err := s.GetRule(ctx, ruleID); err != nil {
		return Page[Reservation]{}, err
	}
	filter.RuleID = ruleID
	filter.Pagination = filter.Pagination.normalize()

	items, total, err := s.reservations.ListReservations(ctx, filter)
	if err != nil {
		return Page[Reservation]{}, mapReservationRepoError(err)
	}
	return Page[Reservation]{
		Items:  items,
		Total:  total,
		Page:   filter.Pagination.Page,
		Size:   filter.Pagination.Size,
		Offset: filter.Pagination.offset(),
	}, nil
}

// UpdateRule merges a patch into an active rule. Validation and conflict checks
// are repeated only when dates, times, frequency or exceptions change. Existing
// occurrences are left alone; RegenerateRule rebuilds them.
func (s *RecurringRuleService) UpdateRule(ctx context.Context, params UpdateRuleParams) (rule recurrence.Rule, err error) {
	if s == nil {
		err = fmt.Errorf("RecurringRuleService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRule",
		"principal_id", params.Principal.UserID,
		"rule_id", params.RuleID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update recurring rule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "recurring rule updated")
	}()

	before, err := s.loadActive(ctx, params.RuleID)
	if err != nil {
		return
	}
	if !params.Principal.CanManage(before.UserID) {
		err = fmt.Errorf("%w: rule %s belongs to another user", ErrForbidden, before.ID)
		return
	}

	updated, scheduleChanged, vErr := applyRulePatch(before, params.Patch)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if scheduleChanged && before.Kind == recurrence.KindSemesterBound &&
		(!updated.StartDate.Equal(before.StartDate) || !updated.EndDate.Equal(before.EndDate)) {
		err = businessError("dates of semester-bound rule %s follow semester %s", before.ID, before.Semester)
		return
	}

	if vErr := validateRule(updated, recurrence.ValidateOptions{}); vErr.HasErrors() {
		err = vErr
		return
	}

	var check RuleConflictCheck
	if scheduleChanged {
		holidays, holidayErr := s.engine.HolidayExceptions(updated)
		if holidayErr != nil {
			err = fmt.Errorf("collect holiday exceptions: %w", holidayErr)
			return
		}
		updated.AddExceptions(holidays...)
		check = s.ruleConflictCheck(updated)
	}
	updated.UpdatedAt = s.now()

	if err = s.rules.UpdateRule(ctx, updated, check); err != nil {
		err = mapRuleRepoError(err)
		return
	}
	rule = updated

	recordAudit(ctx, s.audit, logger, AuditRecord{
		Action:   AuditActionUpdate,
		Entity:   AuditEntityRule,
		EntityID: rule.ID,
		ActorID:  params.Principal.UserID,
		Before:   SnapshotRule(before),
		After:    SnapshotRule(rule),
		At:       rule.UpdatedAt,
	})
	return
}

// DeleteRuleParams wraps the data required to cancel a rule.
type DeleteRuleParams struct {
	Principal Principal
	RuleID    string
	Reason    *string
}

// DeleteRule soft-deletes a rule that has not started yet together with its
// active occurrences.
func (s *RecurringRuleService) DeleteRule(ctx context.Context, params DeleteRuleParams) (rule recurrence.Rule, err error) {
	if s == nil {
		err = fmt.Errorf("RecurringRuleService is nil")
		return
	}

	logger := s.loggerWith(ctx, "DeleteRule",
		"principal_id", params.Principal.UserID,
		"rule_id", params.RuleID,
	)
	var cascaded int64
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete recurring rule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("cancelled_occurrences", cascaded).InfoContext(ctx, "recurring rule deleted")
	}()

	before, err := s.loadActive(ctx, params.RuleID)
	if err != nil {
		return
	}
	if !params.Principal.CanManage(before.UserID) {
		err = fmt.Errorf("%w: rule %s belongs to another user", ErrForbidden, before.ID)
		return
	}
	if today := s.today(); !before.StartDate.After(today) {
		err = businessError("rule %s started on %s and can no longer be deleted",
			before.ID, before.StartDate.Format(time.DateOnly))
		return
	}

	at := s.now()
	cascaded, err = s.rules.SoftDeleteRule(ctx, before.ID, params.Principal.UserID, at)
	if err != nil {
		err = mapRuleRepoError(err)
		return
	}

	rule = before
	actor := params.Principal.UserID
	rule.DeletedAt = &at
	rule.DeletedBy = &actor

	recordAudit(ctx, s.audit, logger, AuditRecord{
		Action:   AuditActionCancel,
		Entity:   AuditEntityRule,
		EntityID: rule.ID,
		ActorID:  actor,
		Reason:   params.Reason,
		Before:   SnapshotRule(before),
		After:    SnapshotRule(rule),
		At:       at,
	})
	return
}

// RegenerateRuleParams wraps the data required to rebuild a rule's occurrences.
type RegenerateRuleParams struct {
	Principal Principal
	RuleID    string
}

// RegenerateRule soft-deletes the active occurrences of a rule and generates a
// fresh set from its current definition.
func (s *RecurringRuleService) RegenerateRule(ctx context.Context, params RegenerateRuleParams) (result RuleResult, err error) {
	if s == nil {
		err = fmt.Errorf("RecurringRuleService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RegenerateRule",
		"principal_id", params.Principal.UserID,
		"rule_id", params.RuleID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to regenerate occurrences", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("occurrences", result.Generation.Persisted).InfoContext(ctx, "occurrences regenerated")
	}()

	rule, err := s.GetRule(ctx, params.RuleID)
	if err != nil {
		return
	}
	if !params.Principal.CanManage(rule.UserID) {
		err = fmt.Errorf("%w: rule %s belongs to another user", ErrForbidden, rule.ID)
		return
	}
	if !rule.Active() {
		err = businessError("rule %s is inactive and cannot be regenerated", rule.ID)
		return
	}

	if err = s.checkOccurrenceConflicts(ctx, rule); err != nil {
		return
	}

	at := s.now()
	removed, err := s.reservations.SoftDeleteRuleReservations(ctx, rule.ID, params.Principal.UserID, at)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}
	logger.DebugContext(ctx, "previous occurrences cancelled", "count", removed)

	report, err := s.generate(ctx, logger, rule)
	result = RuleResult{Rule: rule, Generation: report}

	recordAudit(ctx, s.audit, logger, AuditRecord{
		Action:   AuditActionRegenerate,
		Entity:   AuditEntityRule,
		EntityID: rule.ID,
		ActorID:  params.Principal.UserID,
		After:    SnapshotRule(rule),
		At:       at,
	})
	return
}

// generate writes the occurrences of rule in batches, each in its own
// transaction together with a check against the room's other reservations.
// Cancellation is observed between batches.
func (s *RecurringRuleService) generate(ctx context.Context, logger *slog.Logger, rule recurrence.Rule) (GenerationReport, error) {
	report := GenerationReport{RuleID: rule.ID}

	occurrences, err := s.engine.Occurrences(rule)
	if err != nil {
		return report, &GenerationError{RuleID: rule.ID, Err: err}
	}

	ruleID := rule.ID
	for batch := range recurrence.Batches(occurrences, s.batchSize) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, &GenerationError{RuleID: rule.ID, Persisted: report.Persisted, Err: ctxErr}
		}

		now := s.now()
		records := make([]Reservation, 0, len(batch))
		for _, occ := range batch {
			records = append(records, Reservation{
				ID:        s.idGenerator(),
				RoomID:    occ.RoomID,
				UserID:    occ.UserID,
				RuleID:    &ruleID,
				Purpose:   occ.Purpose,
				Start:     occ.Start,
				End:       occ.End,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}

		if err := s.reservations.InsertReservations(ctx, records, s.batchConflictCheck(rule, records)); err != nil {
			return report, &GenerationError{RuleID: rule.ID, Persisted: report.Persisted, Err: err}
		}
		report.Persisted += len(records)
		report.Batches++
		logger.DebugContext(ctx, "occurrence batch stored", "rule_id", rule.ID, "batch", report.Batches, "size", len(records))
	}
	return report, nil
}

// ruleConflictCheck builds the check run inside the rule's write transaction.
// It rejects candidate when another active rule claims an overlapping slot or
// when one of its occurrences overlaps an active reservation of another owner rule.
func (s *RecurringRuleService) ruleConflictCheck(candidate recurrence.Rule) RuleConflictCheck {
	return func(rules []recurrence.Rule, reservations []Reservation) error {
		series := make([]scheduler.Series, 0, len(rules))
		for _, other := range rules {
			if other.Active() {
				series = append(series, scheduler.SeriesFromRule(other))
			}
		}
		conflicts := scheduler.DetectSeriesConflicts(series, scheduler.SeriesFromRule(candidate))
		if len(conflicts) == 0 {
			var err error
			conflicts, err = s.occurrenceConflicts(candidate, reservations)
			if err != nil {
				return err
			}
		}
		if len(conflicts) > 0 {
			return &ConflictError{
				Subject:   fmt.Sprintf("rule %s in room %s", candidate.Identification, candidate.RoomID),
				Conflicts: conflicts,
			}
		}
		return nil
	}
}

func (s *RecurringRuleService) occurrenceConflicts(candidate recurrence.Rule, reservations []Reservation) ([]scheduler.Conflict, error) {
	if len(reservations) == 0 {
		return nil, nil
	}
	occurrences, err := s.engine.Occurrences(candidate)
	if err != nil {
		return nil, err
	}
	index := newDayIndex(s.engine.Location(), candidate.ID, reservations)
	var conflicts []scheduler.Conflict
	for occ := range occurrences {
		conflicts = append(conflicts, index.conflicts(occ.RoomID, occ.Start, occ.End)...)
	}
	return conflicts, nil
}

// checkOccurrenceConflicts compares the occurrences rule would generate with
// the active reservations already booked in its room.
func (s *RecurringRuleService) checkOccurrenceConflicts(ctx context.Context, rule recurrence.Rule) error {
	from := rule.StartDate.AddDate(0, 0, -1)
	until := rule.EndDate.AddDate(0, 0, 2)
	existing, _, err := s.reservations.ListReservations(ctx, ReservationFilter{RoomID: rule.RoomID, From: &from, Until: &until})
	if err != nil {
		return mapReservationRepoError(err)
	}
	conflicts, err := s.occurrenceConflicts(rule, existing)
	if err != nil {
		return fmt.Errorf("expand occurrences: %w", err)
	}
	if len(conflicts) > 0 {
		return &ConflictError{
			Subject:   fmt.Sprintf("occurrences of rule %s in room %s", rule.Identification, rule.RoomID),
			Conflicts: conflicts,
		}
	}
	return nil
}

// batchConflictCheck builds the check run inside an occurrence batch's write
// transaction.
func (s *RecurringRuleService) batchConflictCheck(rule recurrence.Rule, batch []Reservation) ReservationConflictCheck {
	return func(existing []Reservation) error {
		index := newDayIndex(s.engine.Location(), rule.ID, existing)
		var conflicts []scheduler.Conflict
		for _, r := range batch {
			conflicts = append(conflicts, index.conflicts(r.RoomID, r.Start, r.End)...)
		}
		if len(conflicts) > 0 {
			return &ConflictError{
				Subject:   fmt.Sprintf("occurrences of rule %s in room %s", rule.Identification, rule.RoomID),
				Conflicts: conflicts,
			}
		}
		return nil
	}
}

// dayIndex groups active reservations by the local days they touch so each
// occurrence is compared only with its own day. Every conflicting reservation
// is reported once.
type dayIndex struct {
	loc   *time.Location
	byDay map[time.Time][]scheduler.Booking
	seen  map[string]bool
}

// newDayIndex indexes reservations, skipping inactive ones and those
// generated by ruleID.
func newDayIndex(loc *time.Location, ruleID string, reservations []Reservation) *dayIndex {
	index := &dayIndex{
		loc:   loc,
		byDay: make(map[time.Time][]scheduler.Booking),
		seen:  make(map[string]bool),
	}
	for _, r := range reservations {
		if !r.Active() || (r.RuleID != nil && *r.RuleID == ruleID) {
			continue
		}
		booking := toBooking(r)
		last := recurrence.DateOf(r.End.In(loc))
		for day := recurrence.DateOf(r.Start.In(loc)); !day.After(last); day = day.AddDate(0, 0, 1) {
			index.byDay[day] = append(index.byDay[day], booking)
		}
	}
	return index
}

func (x *dayIndex) conflicts(roomID string, start, end time.Time) []scheduler.Conflict {
	day := recurrence.DateOf(start.In(x.loc))
	found := scheduler.DetectBookingConflicts(x.byDay[day], scheduler.Booking{
		RoomID: roomID,
		Window: scheduler.Window{Start: start, End: end},
	})
	var fresh []scheduler.Conflict
	for _, c := range found {
		if !x.seen[c.WithID] {
			x.seen[c.WithID] = true
			fresh = append(fresh, c)
		}
	}
	return fresh
}

func (s *RecurringRuleService) loadActive(ctx context.Context, id string) (recurrence.Rule, error) {
	if s.rules == nil {
		return recurrence.Rule{}, fmt.Errorf("recurring rule store not configured")
	}
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return recurrence.Rule{}, err
	}
	if !rule.Active() {
		return recurrence.Rule{}, fmt.Errorf("%w: recurring rule %s is inactive", ErrNotFound, id)
	}
	return rule, nil
}

// buildRule converts caller input into a rule draft, collecting format errors.
func buildRule(input RuleInput) (recurrence.Rule, *ValidationError) {
	vErr := &ValidationError{}
	rule := recurrence.Rule{
		Identification: strings.TrimSpace(input.Identification),
		RoomID:         strings.TrimSpace(input.RoomID),
		Purpose:        strings.TrimSpace(input.Purpose),
		Exceptions:     recurrence.NormalizeDates(input.Exceptions),
	}
	if !input.StartDate.IsZero() {
		rule.StartDate = recurrence.DateOf(input.StartDate)
	}
	if !input.EndDate.IsZero() {
		rule.EndDate = recurrence.DateOf(input.EndDate)
	}

	if rule.RoomID == "" {
		vErr.add("room_id", CodeRequired, "room_id is required")
	}
	if start, err := recurrence.ParseTimeOfDay(input.StartTime); err != nil {
		vErr.add("start_time", CodeInvalidFormat, "start_time must use HH:MM")
	} else {
		rule.StartTime = start
	}
	if end, err := recurrence.ParseTimeOfDay(input.EndTime); err != nil {
		vErr.add("end_time", CodeInvalidFormat, "end_time must use HH:MM")
	} else {
		rule.EndTime = end
	}

	freq, err := frequencyFromInput(input.Frequency)
	if err != nil {
		vErr.add("frequency", CodeInvalidValue, err.Error())
	} else {
		rule.Frequency = freq
	}
	return rule, vErr
}

func frequencyFromInput(input FrequencyInput) (recurrence.Frequency, error) {
	if strings.TrimSpace(input.Kind) == "" {
		return nil, nil
	}
	kind, err := recurrence.ParseFrequencyKind(input.Kind)
	if err != nil {
		return nil, fmt.Errorf("frequency must be DAILY, WEEKLY or MONTHLY")
	}
	return recurrence.NewFrequency(kind, input.Weekdays, input.DayOfMonth)
}

// validateRule runs the structural validator, skipping fields that already
// failed to parse.
func validateRule(rule recurrence.Rule, opts recurrence.ValidateOptions) *ValidationError {
	vErr := &ValidationError{}
	for _, v := range recurrence.Validate(rule, opts) {
		vErr.add(v.Field, string(v.Code), v.Message)
	}
	return vErr
}

// applyRulePatch merges patch over rule, reporting whether the dates, times,
// frequency or exceptions changed.
func applyRulePatch(rule recurrence.Rule, patch RulePatch) (recurrence.Rule, bool, *ValidationError) {
	vErr := &ValidationError{}
	updated := rule
	updated.Exceptions = append([]time.Time(nil), rule.Exceptions...)

	if v, ok := patch.Identification.Get(); ok {
		if v = strings.TrimSpace(v); v == "" {
			vErr.add("identification", CodeRequired, "identification cannot be blank")
		} else {
			updated.Identification = v
		}
	}
	if v, ok := patch.Purpose.Get(); ok {
		updated.Purpose = strings.TrimSpace(v)
	}
	if v, ok := patch.StartDate.Get(); ok {
		updated.StartDate = recurrence.DateOf(v)
	}
	if v, ok := patch.EndDate.Get(); ok {
		updated.EndDate = recurrence.DateOf(v)
	}
	if v, ok := patch.StartTime.Get(); ok {
		t, err := recurrence.ParseTimeOfDay(v)
		if err != nil {
			vErr.add("start_time", CodeInvalidFormat, "start_time must use HH:MM")
		} else {
			updated.StartTime = t
		}
	}
	if v, ok := patch.EndTime.Get(); ok {
		t, err := recurrence.ParseTimeOfDay(v)
		if err != nil {
			vErr.add("end_time", CodeInvalidFormat, "end_time must use HH:MM")
		} else {
			updated.EndTime = t
		}
	}
	if v, ok := patch.Frequency.Get(); ok {
		freq, err := frequencyFromInput(v)
		switch {
		case err != nil:
			vErr.add("frequency", CodeInvalidValue, err.Error())
		case freq == nil:
			vErr.add("frequency", CodeRequired, "frequency cannot be cleared")
		default:
			updated.Frequency = freq
		}
	}
	if v, ok := patch.Exceptions.Get(); ok {
		updated.Exceptions = recurrence.NormalizeDates(v)
	}

	changed := !updated.StartDate.Equal(rule.StartDate) ||
		!updated.EndDate.Equal(rule.EndDate) ||
		updated.StartTime != rule.StartTime ||
		updated.EndTime != rule.EndTime ||
		!recurrence.EqualFrequency(updated.Frequency, rule.Frequency) ||
		!slices.EqualFunc(updated.Exceptions, rule.Exceptions, time.Time.Equal)
	return updated, changed, vErr
}

func mapLookupError(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return notFoundError(kind, id)
	}
	return err
}

func mapRuleRepoError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return err
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("%w: recurring rule", ErrNotFound)
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return fmt.Errorf("%w: recurring rule", ErrAlreadyExists)
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return fmt.Errorf("%w: referenced room or user", ErrNotFound)
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return businessError("recurring rule rejected by storage constraints")
	}
	return err
}
