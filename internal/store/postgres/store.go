package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/kanban/internal/domain"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the repositories use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool // nil inside a transaction
	db   querier
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{pool: pool, db: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres.Store.Ping: %w", err)
	}
	return nil
}

func (s *Store) Boards() domain.BoardRepository      { return &BoardRepo{db: s.db} }
func (s *Store) Lists() domain.ListRepository        { return &ListRepo{db: s.db} }
func (s *Store) Tasks() domain.TaskRepository        { return &TaskRepo{db: s.db} }
func (s *Store) Activity() domain.ActivityRepository { return &ActivityRepo{db: s.db} }
func (s *Store) Users() domain.UserRepository        { return &UserRepo{db: s.db} }

// WithinTx runs fn in a read-committed transaction. Calls made on the
// transactional store join the enclosing transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&Store{db: tx})
	})
	if err != nil {
		return fmt.Errorf("postgres.Store.WithinTx: %w", translate(err))
	}
	return nil
}

// Postgres error codes the repositories translate into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// translate maps constraint violations to domain sentinels and leaves every
// other error untouched.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrConflict)
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrNotFound)
	case codeCheckViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrValidation)
	}
	return err
}
