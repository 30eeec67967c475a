package sqlstore

// Repositories bundles every repository backed by one Store.
type Repositories struct {
	Users        *UserRepository
	Blocks       *BlockRepository
	Rooms        *RoomRepository
	Semesters    *SemesterRepository
	Rules        *RecurringRuleRepository
	Reservations *ReservationRepository
	Audit        *AuditRepository
}

// NewRepositories wires every repository to store.
func NewRepositories(store *Store) Repositories {
	return Repositories{
		Users:        NewUserRepository(store),
		Blocks:       NewBlockRepository(store),
		Rooms:        NewRoomRepository(store),
		Semesters:    NewSemesterRepository(store),
		Rules:        NewRecurringRuleRepository(store),
		Reservations: NewReservationRepository(store),
		Audit:        NewAuditRepository(store),
	}
}
