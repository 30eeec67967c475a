package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

var (
	userCounter        uint64
	blockCounter       uint64
	roomCounter        uint64
	semesterCounter    uint64
	ruleCounter        uint64
	reservationCounter uint64
)

// referenceTime is a Monday.
var referenceTime = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	Course       string
	PasswordHash string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@uni.example.edu", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserCourse sets the course the user is enrolled in.
func WithUserCourse(course string) UserOption {
	return func(f *UserFixture) { f.Course = course }
}

// WithUserAdmin sets the admin flag.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) { f.IsAdmin = isAdmin }
}

// WithUserDisabled marks the account disabled.
func WithUserDisabled() UserOption {
	return func(f *UserFixture) { f.Disabled = true }
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Course:      f.Course,
		IsAdmin:     f.IsAdmin,
		Disabled:    f.Disabled,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsAdmin: f.IsAdmin, Course: f.Course}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Course:       f.Course,
		PasswordHash: f.PasswordHash,
		IsAdmin:      f.IsAdmin,
		Disabled:     f.Disabled,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Block fixtures ----------------------------

// BlockFixture represents a deterministic building block.
type BlockFixture struct {
	ID        string
	Name      string
	Code      string
	CreatedAt time.Time
}

// NewBlockFixture returns a deterministic block fixture.
func NewBlockFixture(opts ...func(*BlockFixture)) BlockFixture {
	idx := atomic.AddUint64(&blockCounter, 1)
	fixture := BlockFixture{
		ID:        fmt.Sprintf("block-%03d", idx),
		Name:      fmt.Sprintf("Bloco %03d", idx),
		Code:      fmt.Sprintf("B%03d", idx),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// Persistence returns the fixture as a persistence.Block value.
func (f BlockFixture) Persistence() persistence.Block {
	return persistence.Block{ID: f.ID, Name: f.Name, Code: f.Code, CreatedAt: f.CreatedAt, UpdatedAt: f.CreatedAt}
}

// Application returns the fixture as an application.Block value.
func (f BlockFixture) Application() application.Block {
	return application.Block(f.Persistence())
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room record.
type RoomFixture struct {
	ID               string
	BlockID          string
	Code             string
	Capacity         int
	Resources        []string
	Restricted       bool
	RestrictedCourse *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		BlockID:   "block-001",
		Code:      fmt.Sprintf("S%03d", idx),
		Capacity:  int(30 + idx%4*10),
		Resources: []string{"projector"},
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

// WithRoomBlock places the room in block.
func WithRoomBlock(blockID string) RoomOption {
	return func(f *RoomFixture) { f.BlockID = blockID }
}

// WithRoomCode overrides the generated room code.
func WithRoomCode(code string) RoomOption {
	return func(f *RoomFixture) { f.Code = code }
}

// WithRoomRestrictedTo restricts the room to course.
func WithRoomRestrictedTo(course string) RoomOption {
	return func(f *RoomFixture) {
		f.Restricted = true
		f.RestrictedCourse = copyStringPtr(&course)
	}
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:               f.ID,
		BlockID:          f.BlockID,
		Code:             f.Code,
		Capacity:         f.Capacity,
		Resources:        append([]string(nil), f.Resources...),
		Restricted:       f.Restricted,
		RestrictedCourse: copyStringPtr(f.RestrictedCourse),
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room(f.Application())
}

// --------------------------- Semester fixtures ---------------------------

// SemesterFixture represents an academic period.
type SemesterFixture struct {
	ID         string
	Identifier string
	StartDate  time.Time
	EndDate    time.Time
	Active     bool
}

// NewSemesterFixture returns a semester spanning March to early July of the
// reference year.
func NewSemesterFixture(opts ...func(*SemesterFixture)) SemesterFixture {
	idx := atomic.AddUint64(&semesterCounter, 1)
	fixture := SemesterFixture{
		ID:         fmt.Sprintf("semester-%03d", idx),
		Identifier: fmt.Sprintf("2025.%d", idx),
		StartDate:  Date(2025, time.March, 3),
		EndDate:    Date(2025, time.July, 4),
		Active:     true,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// Persistence returns the fixture as a persistence.Semester value.
func (f SemesterFixture) Persistence() persistence.Semester {
	return persistence.Semester{
		ID:         f.ID,
		Identifier: f.Identifier,
		StartDate:  f.StartDate,
		EndDate:    f.EndDate,
		Active:     f.Active,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}

// ----------------------------- Rule fixtures -----------------------------

// RuleFixture represents a stored recurring rule. The default is a weekly
// Monday and Wednesday rule from 08:00 to 10:00 over two weeks.
type RuleFixture struct {
	ID             string
	Identification string
	Semester       *string
	RoomID         string
	UserID         string
	Frequency      string
	Weekdays       []int
	DayOfMonth     int
	StartTime      string
	EndTime        string
	StartDate      time.Time
	EndDate        time.Time
	Exceptions     []time.Time
}

// RuleOption configures the generated rule fixture.
type RuleOption func(*RuleFixture)

// NewRuleFixture returns a deterministic rule fixture with optional overrides.
func NewRuleFixture(opts ...RuleOption) RuleFixture {
	idx := atomic.AddUint64(&ruleCounter, 1)
	fixture := RuleFixture{
		ID:             fmt.Sprintf("rule-%03d", idx),
		Identification: fmt.Sprintf("Disciplina %03d", idx),
		RoomID:         "room-001",
		UserID:         "user-001",
		Frequency:      "WEEKLY",
		Weekdays:       []int{0, 2},
		StartTime:      "08:00",
		EndTime:        "10:00",
		StartDate:      Date(2025, time.March, 3),
		EndDate:        Date(2025, time.March, 14),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRuleID overrides the generated rule ID.
func WithRuleID(id string) RuleOption {
	return func(f *RuleFixture) { f.ID = id }
}

// WithRuleRoom sets the room and owner of the rule.
func WithRuleRoom(roomID, userID string) RuleOption {
	return func(f *RuleFixture) {
		f.RoomID = roomID
		f.UserID = userID
	}
}

// WithRuleDates overrides the date range.
func WithRuleDates(start, end time.Time) RuleOption {
	return func(f *RuleFixture) {
		f.StartDate = start
		f.EndDate = end
	}
}

// WithRuleTimes overrides the daily window, formatted HH:MM.
func WithRuleTimes(start, end string) RuleOption {
	return func(f *RuleFixture) {
		f.StartTime = start
		f.EndTime = end
	}
}

// WithRuleDaily switches the rule to a daily frequency.
func WithRuleDaily() RuleOption {
	return func(f *RuleFixture) {
		f.Frequency = "DAILY"
		f.Weekdays = nil
	}
}

// WithRuleSemester binds the rule to a semester identifier.
func WithRuleSemester(identifier string) RuleOption {
	return func(f *RuleFixture) { f.Semester = copyStringPtr(&identifier) }
}

// WithRuleExceptions sets the excluded dates.
func WithRuleExceptions(days ...time.Time) RuleOption {
	return func(f *RuleFixture) { f.Exceptions = append([]time.Time(nil), days...) }
}

// Persistence returns the fixture as a persistence.RecurringRule value.
func (f RuleFixture) Persistence() persistence.RecurringRule {
	kind := "REGULAR"
	if f.Semester != nil {
		kind = "SEMESTER"
	}
	return persistence.RecurringRule{
		ID:             f.ID,
		Identification: f.Identification,
		Kind:           kind,
		Semester:       copyStringPtr(f.Semester),
		RoomID:         f.RoomID,
		UserID:         f.UserID,
		Purpose:        "Aula",
		Frequency:      f.Frequency,
		Weekdays:       append([]int(nil), f.Weekdays...),
		DayOfMonth:     f.DayOfMonth,
		StartTime:      f.StartTime,
		EndTime:        f.EndTime,
		StartDate:      f.StartDate,
		EndDate:        f.EndDate,
		Exceptions:     append([]time.Time(nil), f.Exceptions...),
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
}

// -------------------------- Reservation fixtures -------------------------

// ReservationFixture represents a booked window.
type ReservationFixture struct {
	ID      string
	RoomID  string
	UserID  string
	RuleID  *string
	Purpose string
	Start   time.Time
	End     time.Time
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a two hour reservation starting idx days after
// the reference time.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	start := referenceTime.AddDate(0, 0, int(idx))
	fixture := ReservationFixture{
		ID:      fmt.Sprintf("reservation-%03d", idx),
		RoomID:  "room-001",
		UserID:  "user-001",
		Purpose: "Reunião",
		Start:   start,
		End:     start.Add(2 * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) { f.ID = id }
}

// WithReservationRoom sets the room and owner.
func WithReservationRoom(roomID, userID string) ReservationOption {
	return func(f *ReservationFixture) {
		f.RoomID = roomID
		f.UserID = userID
	}
}

// WithReservationWindow overrides the booked window.
func WithReservationWindow(start, end time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.Start = start
		f.End = end
	}
}

// WithReservationRule marks the reservation as an occurrence of ruleID.
func WithReservationRule(ruleID string) ReservationOption {
	return func(f *ReservationFixture) { f.RuleID = copyStringPtr(&ruleID) }
}

// Application returns the fixture as an application.Reservation value.
func (f ReservationFixture) Application() application.Reservation {
	return application.Reservation{
		ID:        f.ID,
		RoomID:    f.RoomID,
		UserID:    f.UserID,
		RuleID:    copyStringPtr(f.RuleID),
		Purpose:   f.Purpose,
		Start:     f.Start,
		End:       f.End,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// Persistence returns the fixture as a persistence.Reservation value.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation(f.Application())
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
