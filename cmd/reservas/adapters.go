package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// UpdateUser keeps the stored hash when passwordHash is nil. Re-enabling a
// locked account clears its failed attempts.
func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User, passwordHash *string) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	hash := current.PasswordHash
	if passwordHash != nil {
		hash = *passwordHash
	}
	updated := toPersistenceUser(user, hash)
	updated.FailedAttempts = current.FailedAttempts
	updated.LastFailedAt = current.LastFailedAt
	if current.Disabled && !user.Disabled {
		updated.FailedAttempts = 0
		updated.LastFailedAt = nil
	}
	if err := a.repo.UpdateUser(ctx, updated); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	stored, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(stored))
	for _, u := range stored {
		users = append(users, toApplicationUser(u))
	}
	return users, nil
}

func (a *userRepositoryAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:           toApplicationUser(stored),
		PasswordHash:   stored.PasswordHash,
		FailedAttempts: stored.FailedAttempts,
	}, nil
}

func (a *userRepositoryAdapter) RecordLoginFailure(ctx context.Context, userID string, at time.Time, disable bool) error {
	return a.repo.RecordLoginFailure(ctx, userID, at, disable)
}

func (a *userRepositoryAdapter) ResetLoginFailures(ctx context.Context, userID string) error {
	return a.repo.ResetLoginFailures(ctx, userID)
}

type blockRepositoryAdapter struct {
	repo persistence.BlockRepository
}

func newBlockRepositoryAdapter(repo persistence.BlockRepository) *blockRepositoryAdapter {
	return &blockRepositoryAdapter{repo: repo}
}

func (a *blockRepositoryAdapter) CreateBlock(ctx context.Context, block application.Block) (application.Block, error) {
	if err := a.repo.CreateBlock(ctx, persistence.Block(block)); err != nil {
		return application.Block{}, err
	}
	return a.GetBlock(ctx, block.ID)
}

func (a *blockRepositoryAdapter) GetBlock(ctx context.Context, id string) (application.Block, error) {
	stored, err := a.repo.GetBlock(ctx, id)
	if err != nil {
		return application.Block{}, err
	}
	return application.Block(stored), nil
}

func (a *blockRepositoryAdapter) UpdateBlock(ctx context.Context, block application.Block) (application.Block, error) {
	if err := a.repo.UpdateBlock(ctx, persistence.Block(block)); err != nil {
		return application.Block{}, err
	}
	return a.GetBlock(ctx, block.ID)
}

func (a *blockRepositoryAdapter) DeleteBlock(ctx context.Context, id string) error {
	return a.repo.DeleteBlock(ctx, id)
}

func (a *blockRepositoryAdapter) ListBlocks(ctx context.Context) ([]application.Block, error) {
	stored, err := a.repo.ListBlocks(ctx)
	if err != nil {
		return nil, err
	}
	blocks := make([]application.Block, 0, len(stored))
	for _, b := range stored {
		blocks = append(blocks, application.Block(b))
	}
	return blocks, nil
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context, blockID string) ([]application.Room, error) {
	stored, err := a.repo.ListRooms(ctx, persistence.RoomFilter{BlockID: blockID})
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(stored))
	for _, r := range stored {
		rooms = append(rooms, toApplicationRoom(r))
	}
	return rooms, nil
}

type semesterRepositoryAdapter struct {
	repo persistence.SemesterRepository
}

func newSemesterRepositoryAdapter(repo persistence.SemesterRepository) *semesterRepositoryAdapter {
	return &semesterRepositoryAdapter{repo: repo}
}

func (a *semesterRepositoryAdapter) CreateSemester(ctx context.Context, semester application.Semester) (application.Semester, error) {
	if err := a.repo.CreateSemester(ctx, persistence.Semester(semester)); err != nil {
		return application.Semester{}, err
	}
	return a.GetSemesterByIdentifier(ctx, semester.Identifier)
}

func (a *semesterRepositoryAdapter) GetSemesterByIdentifier(ctx context.Context, identifier string) (application.Semester, error) {
	stored, err := a.repo.GetSemesterByIdentifier(ctx, identifier)
	if err != nil {
		return application.Semester{}, err
	}
	return application.Semester(stored), nil
}

func (a *semesterRepositoryAdapter) ListSemesters(ctx context.Context) ([]application.Semester, error) {
	stored, err := a.repo.ListSemesters(ctx)
	if err != nil {
		return nil, err
	}
	semesters := make([]application.Semester, 0, len(stored))
	for _, s := range stored {
		semesters = append(semesters, application.Semester(s))
	}
	return semesters, nil
}

type ruleStoreAdapter struct {
	repo persistence.RecurringRuleRepository
}

func newRuleStoreAdapter(repo persistence.RecurringRuleRepository) *ruleStoreAdapter {
	return &ruleStoreAdapter{repo: repo}
}

func (a *ruleStoreAdapter) CreateRule(ctx context.Context, rule recurrence.Rule, check application.RuleConflictCheck) error {
	return a.repo.CreateRecurringRule(ctx, toPersistenceRule(rule), wrapRuleCheck(check))
}

func (a *ruleStoreAdapter) UpdateRule(ctx context.Context, rule recurrence.Rule, check application.RuleConflictCheck) error {
	return a.repo.UpdateRecurringRule(ctx, toPersistenceRule(rule), wrapRuleCheck(check))
}

func (a *ruleStoreAdapter) GetRule(ctx context.Context, id string) (recurrence.Rule, error) {
	stored, err := a.repo.GetRecurringRule(ctx, id)
	if err != nil {
		return recurrence.Rule{}, err
	}
	return toDomainRule(stored)
}

func (a *ruleStoreAdapter) ListRules(ctx context.Context, filter application.RuleFilter) ([]recurrence.Rule, int, error) {
	limit, offset := limitOffset(filter.Pagination)
	stored, total, err := a.repo.ListRecurringRules(ctx, persistence.RuleFilter{
		RoomID:         filter.RoomID,
		UserID:         filter.UserID,
		Frequency:      filter.Frequency,
		From:           filter.From,
		Until:          filter.Until,
		IncludeDeleted: filter.IncludeDeleted,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, 0, err
	}
	rules, err := toDomainRules(stored)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

func (a *ruleStoreAdapter) SoftDeleteRule(ctx context.Context, id, actorID string, at time.Time) (int64, error) {
	return a.repo.SoftDeleteRecurringRule(ctx, id, actorID, at)
}

func wrapRuleCheck(check application.RuleConflictCheck) persistence.RuleConflictCheck {
	if check == nil {
		return nil
	}
	return func(rules []persistence.RecurringRule, reservations []persistence.Reservation) error {
		domainRules, err := toDomainRules(rules)
		if err != nil {
			return err
		}
		return check(domainRules, toApplicationReservations(reservations))
	}
}

type reservationStoreAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationStoreAdapter(repo persistence.ReservationRepository) *reservationStoreAdapter {
	return &reservationStoreAdapter{repo: repo}
}

func (a *reservationStoreAdapter) CreateReservation(ctx context.Context, reservation application.Reservation, check application.ReservationConflictCheck) error {
	return a.repo.CreateReservation(ctx, persistence.Reservation(reservation), wrapReservationCheck(check))
}

func (a *reservationStoreAdapter) UpdateReservation(ctx context.Context, reservation application.Reservation, check application.ReservationConflictCheck) error {
	return a.repo.UpdateReservation(ctx, persistence.Reservation(reservation), wrapReservationCheck(check))
}

func (a *reservationStoreAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return application.Reservation(stored), nil
}

func (a *reservationStoreAdapter) ListReservations(ctx context.Context, filter application.ReservationFilter) ([]application.Reservation, int, error) {
	limit, offset := limitOffset(filter.Pagination)
	stored, total, err := a.repo.ListReservations(ctx, persistence.ReservationFilter{
		RoomID:         filter.RoomID,
		UserID:         filter.UserID,
		RuleID:         filter.RuleID,
		From:           filter.From,
		Until:          filter.Until,
		IncludeDeleted: filter.IncludeDeleted,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, 0, err
	}
	return toApplicationReservations(stored), total, nil
}

func (a *reservationStoreAdapter) InsertReservations(ctx context.Context, batch []application.Reservation, check application.ReservationConflictCheck) error {
	rows := make([]persistence.Reservation, 0, len(batch))
	for _, r := range batch {
		rows = append(rows, persistence.Reservation(r))
	}
	return a.repo.InsertReservations(ctx, rows, wrapReservationCheck(check))
}

func (a *reservationStoreAdapter) SoftDeleteReservation(ctx context.Context, id, actorID string, at time.Time) error {
	return a.repo.SoftDeleteReservation(ctx, id, actorID, at)
}

func (a *reservationStoreAdapter) SoftDeleteRuleReservations(ctx context.Context, ruleID, actorID string, at time.Time) (int64, error) {
	return a.repo.SoftDeleteRuleReservations(ctx, ruleID, actorID, at)
}

func wrapReservationCheck(check application.ReservationConflictCheck) persistence.ReservationConflictCheck {
	if check == nil {
		return nil
	}
	return func(existing []persistence.Reservation) error {
		return check(toApplicationReservations(existing))
	}
}

func limitOffset(p application.Pagination) (int, int) {
	if p.Size <= 0 {
		return 0, 0
	}
	page := max(p.Page, 1)
	return p.Size, (page - 1) * p.Size
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Course:      model.Course,
		IsAdmin:     model.IsAdmin,
		Disabled:    model.Disabled,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Course:       user.Course,
		PasswordHash: passwordHash,
		IsAdmin:      user.IsAdmin,
		Disabled:     user.Disabled,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:               model.ID,
		BlockID:          model.BlockID,
		Code:             model.Code,
		Capacity:         model.Capacity,
		Resources:        slices.Clone(model.Resources),
		Restricted:       model.Restricted,
		RestrictedCourse: cloneString(model.RestrictedCourse),
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:               room.ID,
		BlockID:          room.BlockID,
		Code:             room.Code,
		Capacity:         room.Capacity,
		Resources:        slices.Clone(room.Resources),
		Restricted:       room.Restricted,
		RestrictedCourse: cloneString(room.RestrictedCourse),
		CreatedAt:        room.CreatedAt,
		UpdatedAt:        room.UpdatedAt,
	}
}

func toPersistenceRule(rule recurrence.Rule) persistence.RecurringRule {
	kind, weekdays, dayOfMonth := recurrence.FrequencyParams(rule.Frequency)
	var semester *string
	if rule.Semester != "" {
		semester = &rule.Semester
	}
	return persistence.RecurringRule{
		ID:             rule.ID,
		Identification: rule.Identification,
		Kind:           string(rule.Kind),
		Semester:       semester,
		RoomID:         rule.RoomID,
		UserID:         rule.UserID,
		Purpose:        rule.Purpose,
		Frequency:      string(kind),
		Weekdays:       weekdays,
		DayOfMonth:     dayOfMonth,
		StartTime:      rule.StartTime.String(),
		EndTime:        rule.EndTime.String(),
		StartDate:      rule.StartDate,
		EndDate:        rule.EndDate,
		Exceptions:     slices.Clone(rule.Exceptions),
		CreatedAt:      rule.CreatedAt,
		UpdatedAt:      rule.UpdatedAt,
		DeletedAt:      cloneTime(rule.DeletedAt),
		DeletedBy:      cloneString(rule.DeletedBy),
	}
}

func toDomainRule(model persistence.RecurringRule) (recurrence.Rule, error) {
	frequency, err := recurrence.NewFrequency(recurrence.FrequencyKind(model.Frequency), model.Weekdays, model.DayOfMonth)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("rule %s: %w", model.ID, err)
	}
	start, err := recurrence.ParseTimeOfDay(model.StartTime)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("rule %s start time: %w", model.ID, err)
	}
	end, err := recurrence.ParseTimeOfDay(model.EndTime)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("rule %s end time: %w", model.ID, err)
	}
	rule := recurrence.Rule{
		ID:             model.ID,
		Identification: model.Identification,
		Kind:           recurrence.Kind(model.Kind),
		RoomID:         model.RoomID,
		UserID:         model.UserID,
		Purpose:        model.Purpose,
		Frequency:      frequency,
		StartTime:      start,
		EndTime:        end,
		StartDate:      model.StartDate,
		EndDate:        model.EndDate,
		Exceptions:     slices.Clone(model.Exceptions),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
		DeletedAt:      cloneTime(model.DeletedAt),
		DeletedBy:      cloneString(model.DeletedBy),
	}
	if model.Semester != nil {
		rule.Semester = *model.Semester
	}
	return rule, nil
}

func toDomainRules(models []persistence.RecurringRule) ([]recurrence.Rule, error) {
	rules := make([]recurrence.Rule, 0, len(models))
	for _, m := range models {
		rule, err := toDomainRule(m)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func toApplicationReservations(models []persistence.Reservation) []application.Reservation {
	out := make([]application.Reservation, 0, len(models))
	for _, m := range models {
		out = append(out, application.Reservation(m))
	}
	return out
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
