package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

// memoryStore is an in-memory RecurringRuleStore and ReservationStore whose
// conflict-checked writes mirror the SQL repositories.
type memoryStore struct {
	mu           sync.Mutex
	rules        map[string]recurrence.Rule
	reservations map[string]Reservation
	order        []string

	insertCalls int
	failInsert  func(call int) error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rules:        make(map[string]recurrence.Rule),
		reservations: make(map[string]Reservation),
	}
}

func (m *memoryStore) CreateRule(ctx context.Context, rule recurrence.Rule, check RuleConflictCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[rule.ID]; exists {
		return fmt.Errorf("duplicate rule %s", rule.ID)
	}
	if err := m.runRuleCheckLocked(rule, check); err != nil {
		return err
	}
	m.rules[rule.ID] = rule
	return nil
}

func (m *memoryStore) UpdateRule(ctx context.Context, rule recurrence.Rule, check RuleConflictCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rules[rule.ID]
	if !ok || !existing.Active() {
		return ErrNotFound
	}
	if check != nil {
		if err := m.runRuleCheckLocked(rule, check); err != nil {
			return err
		}
	}
	m.rules[rule.ID] = rule
	return nil
}

func (m *memoryStore) runRuleCheckLocked(rule recurrence.Rule, check RuleConflictCheck) error {
	if check == nil {
		return nil
	}
	var rules []recurrence.Rule
	for _, other := range m.rules {
		if other.ID == rule.ID || !other.Active() || other.RoomID != rule.RoomID {
			continue
		}
		if other.EndDate.Before(rule.StartDate) || other.StartDate.After(rule.EndDate) {
			continue
		}
		rules = append(rules, other)
	}
	from := rule.StartDate.AddDate(0, 0, -1)
	until := rule.EndDate.AddDate(0, 0, 2)
	var reservations []Reservation
	for _, r := range m.reservations {
		if !r.Active() || r.RoomID != rule.RoomID {
			continue
		}
		if r.RuleID != nil && *r.RuleID == rule.ID {
			continue
		}
		if r.End.After(from) && r.Start.Before(until) {
			reservations = append(reservations, r)
		}
	}
	return check(rules, reservations)
}

func (m *memoryStore) GetRule(ctx context.Context, id string) (recurrence.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return recurrence.Rule{}, ErrNotFound
	}
	return rule, nil
}

func (m *memoryStore) ListRules(ctx context.Context, filter RuleFilter) ([]recurrence.Rule, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recurrence.Rule
	for _, rule := range m.rules {
		if !filter.IncludeDeleted && !rule.Active() {
			continue
		}
		if filter.RoomID != "" && rule.RoomID != filter.RoomID {
			continue
		}
		if filter.UserID != "" && rule.UserID != filter.UserID {
			continue
		}
		if filter.Frequency != "" && (rule.Frequency == nil || string(rule.Frequency.Kind()) != filter.Frequency) {
			continue
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	offset := filter.Pagination.offset()
	if offset >= len(out) {
		return nil, total, nil
	}
	end := min(offset+filter.Pagination.Size, len(out))
	return out[offset:end], total, nil
}

func (m *memoryStore) SoftDeleteRule(ctx context.Context, id, actorID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok || !rule.Active() {
		return 0, ErrNotFound
	}
	rule.DeletedAt = &at
	rule.DeletedBy = &actorID
	m.rules[id] = rule
	return m.softDeleteRuleReservationsLocked(id, actorID, at), nil
}

func (m *memoryStore) CreateReservation(ctx context.Context, reservation Reservation, check ReservationConflictCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if check != nil {
		if err := check(m.sameDayLocked(reservation)); err != nil {
			return err
		}
	}
	m.putLocked(reservation)
	return nil
}

func (m *memoryStore) UpdateReservation(ctx context.Context, reservation Reservation, check ReservationConflictCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[reservation.ID]; !ok {
		return ErrNotFound
	}
	if check != nil {
		if err := check(m.sameDayLocked(reservation)); err != nil {
			return err
		}
	}
	m.reservations[reservation.ID] = reservation
	return nil
}

func (m *memoryStore) sameDayLocked(candidate Reservation) []Reservation {
	from := candidate.Start.AddDate(0, 0, -1)
	until := candidate.End.AddDate(0, 0, 1)
	var out []Reservation
	for _, r := range m.reservations {
		if r.RoomID == candidate.RoomID && r.Active() && r.End.After(from) && r.Start.Before(until) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memoryStore) putLocked(reservation Reservation) {
	if _, exists := m.reservations[reservation.ID]; !exists {
		m.order = append(m.order, reservation.ID)
	}
	m.reservations[reservation.ID] = reservation
}

func (m *memoryStore) GetReservation(ctx context.Context, id string) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryStore) ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, id := range m.order {
		r := m.reservations[id]
		if !filter.IncludeDeleted && !r.Active() {
			continue
		}
		if filter.RoomID != "" && r.RoomID != filter.RoomID {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.RuleID != "" && (r.RuleID == nil || *r.RuleID != filter.RuleID) {
			continue
		}
		if filter.From != nil && !r.End.After(*filter.From) {
			continue
		}
		if filter.Until != nil && !r.Start.Before(*filter.Until) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	total := len(out)
	size := filter.Pagination.Size
	if size == 0 {
		return out, total, nil
	}
	offset := filter.Pagination.offset()
	if offset >= len(out) {
		return nil, total, nil
	}
	return out[offset:min(offset+size, len(out))], total, nil
}

func (m *memoryStore) InsertReservations(ctx context.Context, batch []Reservation, check ReservationConflictCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.failInsert != nil {
		if err := m.failInsert(m.insertCalls); err != nil {
			return err
		}
	}
	if check != nil && len(batch) > 0 {
		var competing []Reservation
		for _, r := range m.reservations {
			if r.RoomID != batch[0].RoomID || !r.Active() {
				continue
			}
			if r.RuleID != nil && batch[0].RuleID != nil && *r.RuleID == *batch[0].RuleID {
				continue
			}
			competing = append(competing, r)
		}
		if err := check(competing); err != nil {
			return err
		}
	}
	for _, r := range batch {
		m.putLocked(r)
	}
	return nil
}

func (m *memoryStore) SoftDeleteReservation(ctx context.Context, id, actorID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || !r.Active() {
		return ErrNotFound
	}
	r.DeletedAt = &at
	r.DeletedBy = &actorID
	m.reservations[id] = r
	return nil
}

func (m *memoryStore) SoftDeleteRuleReservations(ctx context.Context, ruleID, actorID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.softDeleteRuleReservationsLocked(ruleID, actorID, at), nil
}

func (m *memoryStore) softDeleteRuleReservationsLocked(ruleID, actorID string, at time.Time) int64 {
	var n int64
	for id, r := range m.reservations {
		if r.RuleID == nil || *r.RuleID != ruleID || !r.Active() {
			continue
		}
		r.DeletedAt = &at
		r.DeletedBy = &actorID
		m.reservations[id] = r
		n++
	}
	return n
}

// activeOccurrences returns the active reservations of ruleID ordered by start.
func (m *memoryStore) activeOccurrences(ruleID string) []Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, r := range m.reservations {
		if r.RuleID != nil && *r.RuleID == ruleID && r.Active() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (m *memoryStore) occurrencesOf(ruleID string) []Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, r := range m.reservations {
		if r.RuleID != nil && *r.RuleID == ruleID {
			out = append(out, r)
		}
	}
	return out
}

type catalogStub struct {
	rooms     map[string]Room
	users     map[string]User
	semesters map[string]Semester
}

func (c *catalogStub) GetRoom(ctx context.Context, id string) (Room, error) {
	room, ok := c.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (c *catalogStub) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := c.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (c *catalogStub) GetSemesterByIdentifier(ctx context.Context, identifier string) (Semester, error) {
	semester, ok := c.semesters[identifier]
	if !ok {
		return Semester{}, ErrNotFound
	}
	return semester, nil
}

type notifierStub struct {
	mu           sync.Mutex
	rules        []recurrence.Rule
	reservations []Reservation
	err          error
}

func (n *notifierStub) NotifyRuleCreated(ctx context.Context, rule recurrence.Rule, owner User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rules = append(n.rules, rule)
	return n.err
}

func (n *notifierStub) NotifyReservationCreated(ctx context.Context, reservation Reservation, owner User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reservations = append(n.reservations, reservation)
	return n.err
}

type auditStub struct {
	mu      sync.Mutex
	records []AuditRecord
	err     error
}

func (a *auditStub) Record(ctx context.Context, record AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return a.err
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r.Action)
	}
	return out
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%04d", prefix, n)
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var errStorageDown = errors.New("storage unavailable")
