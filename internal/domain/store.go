package domain

import "context"

// Store is the persistence boundary of the board aggregate.
type Store interface {
	Boards() BoardRepository
	Lists() ListRepository
	Tasks() TaskRepository
	Activity() ActivityRepository
	Users() UserRepository

	// WithinTx runs fn against a transactional view of the store. The writes
	// made through tx commit together when fn returns nil and are discarded
	// otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
