package repository

import (
	"context"
	"errors"
	"fmt"

	"weatherbot/database"
	"weatherbot/events"
	"weatherbot/service"

	"github.com/jackc/pgx/v5"
)

// txRepositories are the repositories bound to one open transaction
type txRepositories struct {
	users        *UserRepository
	observations *ObservationRepository
	dailyPoints  *DailyPointsRepository
	scores       *RunningScoreRepository
	awards       *AwardRepository
}

func newTxRepositories(tx pgx.Tx) *txRepositories {
	return &txRepositories{
		users:        newUserRepositoryWithTx(tx),
		observations: newObservationRepositoryWithTx(tx),
		dailyPoints:  newDailyPointsRepositoryWithTx(tx),
		scores:       newRunningScoreRepositoryWithTx(tx),
		awards:       newAwardRepositoryWithTx(tx),
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

// NewUnitOfWorkFactory creates units of work over db that flush their
// events to eventBus after commit
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{db: db, eventBus: eventBus}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:  f.db,
		bus: events.NewTransactionalBus(f.eventBus),
	}
}

// unitOfWork scopes every repository call of one scoring or admin action
// to a single pgx transaction
type unitOfWork struct {
	db  *database.DB
	bus *events.TransactionalBus

	ctx   context.Context
	tx    pgx.Tx
	repos *txRepositories
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.ctx = ctx
	u.tx = tx
	u.repos = newTxRepositories(tx)
	return nil
}

// Commit commits the transaction, then releases its queued events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		u.finish()
		u.bus.Discard()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.finish()

	return u.bus.Flush(u.ctx)
}

// Rollback discards the transaction and its queued events. Calling it after
// Commit is a no-op, so callers can always defer it.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.finish()
	u.bus.Discard()
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) finish() {
	u.tx = nil
}

func (u *unitOfWork) started() *txRepositories {
	if u.repos == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.repos
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	return u.started().users
}

func (u *unitOfWork) ObservationRepository() service.ObservationRepository {
	return u.started().observations
}

func (u *unitOfWork) DailyPointsRepository() service.DailyPointsRepository {
	return u.started().dailyPoints
}

func (u *unitOfWork) RunningScoreRepository() service.RunningScoreRepository {
	return u.started().scores
}

func (u *unitOfWork) AwardRepository() service.AwardRepository {
	return u.started().awards
}

// EventBus returns the bus whose events wait for Commit
func (u *unitOfWork) EventBus() service.EventPublisher {
	u.started()
	return u.bus
}
