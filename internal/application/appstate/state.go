// Package appstate holds the client state shared by the payment and wallet
// services: the signed-in user, cached balances and the pending reservation.
package appstate

import (
	"sync"

	"github.com/tuncanbit/qrpay/internal/domain"
)

type State struct {
	mu          sync.RWMutex
	user        *domain.UserInfo
	balance     domain.BalanceSnapshot
	reservation *domain.Reservation
}

func New() *State {
	return &State{}
}

func (s *State) User() *domain.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetUser stores the user and replaces the cached balance with theirs.
func (s *State) SetUser(u *domain.UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.user = nil
		return
	}
	cp := *u
	s.user = &cp
	s.balance = u.Snapshot()
}

func (s *State) Balance() domain.BalanceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

// SetSolBalance overrides the cached SOL balance, e.g. with the frozen balance
// reported after a payment is confirmed.
func (s *State) SetSolBalance(sol float64) domain.BalanceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance.SolBalance = sol
	if s.user != nil {
		s.user.BalanceSol = sol
	}
	return s.balance
}

func (s *State) Reservation() *domain.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reservation == nil {
		return nil
	}
	r := *s.reservation
	return &r
}

// SetReservation stores r and returns the reservation it replaced, if any.
func (s *State) SetReservation(r *domain.Reservation) *domain.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.reservation
	if r == nil {
		s.reservation = nil
	} else {
		cp := *r
		s.reservation = &cp
	}
	return prev
}

// TakeReservation clears the reservation and returns it.
func (s *State) TakeReservation() *domain.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reservation
	s.reservation = nil
	return r
}

func (s *State) ClearReservation() {
	s.mu.Lock()
	s.reservation = nil
	s.mu.Unlock()
}

// Reset forgets everything; used on logout and on 401.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.balance = domain.BalanceSnapshot{}
	s.reservation = nil
}
