// Package services defines the business logic for the bot directory, the
// activity scheduler, the coin ledger, and the interaction watcher. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import (
	"errors"
	"fmt"
)

// Not-found errors: the referenced entity does not exist. Always surfaced to
// the caller, never silently ignored.
var (
	// ErrUnknownUser indicates that no coin profile exists for the user.
	ErrUnknownUser = errors.New("unknown user")

	// ErrUnknownAnswer indicates that the referenced answer does not exist.
	ErrUnknownAnswer = errors.New("answer not found")

	// ErrUnknownQuestion indicates that the referenced question does not exist.
	ErrUnknownQuestion = errors.New("question not found")

	// ErrUnknownBot indicates that the referenced bot does not exist.
	ErrUnknownBot = errors.New("bot not found")
)

// Policy rejections in the voting path. These are expected, frequent,
// user-triggerable conditions: they are returned as structured failures and
// must never crash a cycle or a request.
var (
	// ErrSelfVote is returned when a user votes on their own answer.
	ErrSelfVote = errors.New("cannot vote on your own answer")

	// ErrAuthorClarification is returned when the answer author is also the
	// question author: clarifying your own question earns no votes.
	ErrAuthorClarification = errors.New("answers to your own question cannot earn votes")

	// ErrDuplicateVote is returned when a voter votes the same answer twice.
	ErrDuplicateVote = errors.New("vote already recorded for this answer")
)

// ErrDuplicateContent signals that a candidate post is too similar to recent
// content. The scheduler treats it as "skip this bot this cycle"; it is never
// surfaced to an external caller.
var ErrDuplicateContent = errors.New("duplicate content")

// InsufficientBalanceError is returned when a spend exceeds the user's
// balance. It is a typed error (not a sentinel) because the message must
// state the numeric shortfall.
type InsufficientBalanceError struct {
	// Cost is the price of the attempted spend.
	Cost int
	// Balance is the user's balance at the time of the attempt.
	Balance int
}

// Error reports the shortfall explicitly, e.g.
// "insufficient balance: need 2 coins, have 1 (short 1)".
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d coins, have %d (short %d)",
		e.Cost, e.Balance, e.Cost-e.Balance)
}

// Shortfall is the number of missing coins.
func (e *InsufficientBalanceError) Shortfall() int { return e.Cost - e.Balance }
