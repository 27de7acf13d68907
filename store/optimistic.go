package store

import (
	"context"
	"errors"
	"time"

	"vasilala/logger"
)

// remoteWriteTimeout bounds a fire-and-forget gateway write.
const remoteWriteTimeout = 15 * time.Second

// Mutation is a speculative local change paired with its remote write
// and its rollback. All three parts are required: an optimistic mutation
// without a compensation path cannot be expressed, so rollback-on-failure
// is uniform across every store.
//
// Apply runs under the store lock and may reject the mutation by
// returning an error; a rejected mutation must leave the entity
// unchanged, and no remote write is issued for it.
type Mutation[E any] struct {
	ID         string
	Apply      func(*E) error
	Compensate func(*E)
	Remote     func(context.Context) error
}

// ErrIncompleteMutation is returned when a mutation is missing one of
// its required parts.
var ErrIncompleteMutation = errors.New("optimistic mutation requires apply, compensate and remote")

// Optimistic applies the local change synchronously, then issues the
// remote write in the background and returns. An Apply rejection aborts
// the whole mutation: nothing changed locally and nothing is written. If
// the remote write fails, the compensation is applied and the failure
// logged; the caller has already moved on. The remote write is detached
// from the caller's context so an unmounted caller cannot cancel a write
// that was already promised to the user, but it still carries a timeout.
func (s *Store[E]) Optimistic(ctx context.Context, op string, m Mutation[E]) error {
	if m.Apply == nil || m.Compensate == nil || m.Remote == nil {
		return ErrIncompleteMutation
	}
	if err := s.apply(m.ID, m.Apply); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteWriteTimeout)
		defer cancel()

		if err := m.Remote(wctx); err != nil {
			logger.Warn("remote write failed, compensating",
				logger.String("store", s.name),
				logger.String("op", op),
				logger.String("id", m.ID),
				logger.ErrorField(err))
			if !s.Update(m.ID, m.Compensate) {
				logger.Warn("compensation target no longer in snapshot",
					logger.String("store", s.name),
					logger.String("op", op),
					logger.String("id", m.ID))
			}
		}
	}()
	return nil
}

// ToggleCounter flips a boolean-flag-plus-counter pair in place: set
// flag increments, clear flag decrements. The counter is clamped at zero
// so a decrement can never make it negative on screen.
func ToggleCounter(flag *bool, counter *int64) {
	if *flag {
		*flag = false
		*counter--
		if *counter < 0 {
			*counter = 0
		}
	} else {
		*flag = true
		*counter++
	}
}
