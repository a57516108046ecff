package service

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/AdamBeresnev/poolbracket/internal/bracket"
)

const (
	msgTournamentNotFound = "Tournament not found."
	msgTemplateNotFound   = "Payout template not found."
	msgMatchNotFound      = "Match not found."
)

// ConflictError is returned when a match changed between the caller's read
// and its write. Latest is the current state to retry from.
type ConflictError struct {
	Latest *bracket.Match
}

func (e *ConflictError) Error() string {
	return "The match was updated by someone else. Reload it and try again."
}

func (e *ConflictError) Is(target error) bool {
	return target == apperr.ErrConcurrencyConflict
}

func (e *ConflictError) LatestValue() any {
	return e.Latest
}

// lookup turns a missing row into a NotFound business error and wraps
// everything else.
func lookup(err error, notFoundMsg, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(notFoundMsg)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
