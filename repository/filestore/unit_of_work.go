package filestore

import (
	"context"
	"fmt"

	"weatherbot/events"
	"weatherbot/service"
)

type unitOfWorkFactory struct {
	store *Store
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	uow := &unitOfWork{store: f.store}
	if f.store.eventBus != nil {
		uow.transactionalBus = events.NewTransactionalBus(f.store.eventBus)
	}
	return uow
}

// unitOfWork holds the store lock and a private copy of the state until
// Commit swaps the copy in or Rollback drops it
type unitOfWork struct {
	store            *Store
	ctx              context.Context
	working          *state
	transactionalBus *events.TransactionalBus

	userRepo         *userRepository
	observationRepo  *observationRepository
	dailyPointsRepo  *dailyPointsRepository
	runningScoreRepo *runningScoreRepository
	awardRepo        *awardRepository
}

// Begin acquires the store lock
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.working != nil {
		return fmt.Errorf("transaction already started")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.store.mu.Lock()
	working, err := u.store.state.clone()
	if err != nil {
		u.store.mu.Unlock()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.ctx = ctx
	u.working = working
	u.userRepo = &userRepository{st: working, now: u.store.now}
	u.observationRepo = &observationRepository{st: working, now: u.store.now}
	u.dailyPointsRepo = &dailyPointsRepository{st: working, now: u.store.now}
	u.runningScoreRepo = &runningScoreRepository{st: working, now: u.store.now}
	u.awardRepo = &awardRepository{st: working, maxAwards: u.store.maxAwards}
	return nil
}

// Commit writes the working copy to disk and releases the lock
func (u *unitOfWork) Commit() error {
	if u.working == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.store.persist(u.working); err != nil {
		u.release()
		if u.transactionalBus != nil {
			u.transactionalBus.Discard()
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.store.state = u.working
	u.release()

	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}
	return nil
}

// Rollback drops the working copy; it is a no-op after Commit
func (u *unitOfWork) Rollback() error {
	if u.working == nil {
		return nil
	}
	u.release()
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}
	return nil
}

func (u *unitOfWork) release() {
	u.working = nil
	u.store.mu.Unlock()
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

func (u *unitOfWork) ObservationRepository() service.ObservationRepository {
	if u.observationRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.observationRepo
}

func (u *unitOfWork) DailyPointsRepository() service.DailyPointsRepository {
	if u.dailyPointsRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.dailyPointsRepo
}

func (u *unitOfWork) RunningScoreRepository() service.RunningScoreRepository {
	if u.runningScoreRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.runningScoreRepo
}

func (u *unitOfWork) AwardRepository() service.AwardRepository {
	if u.awardRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.awardRepo
}

// EventBus returns the transactional event bus, or a discarding publisher
// when the store has no bus
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		return discardPublisher{}
	}
	return u.transactionalBus
}

type discardPublisher struct{}

func (discardPublisher) Publish(events.Event) {}
