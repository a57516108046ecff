// Package actor identifies who is making a scoring request: a signed-in
// organizer or a scoring device holding a table token.
package actor

import (
	"context"
	"strings"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/AdamBeresnev/poolbracket/internal/token"
	"github.com/google/uuid"
)

// Actor is either User or Table.
type Actor interface {
	// HolderID names the actor as a lease holder.
	HolderID() string
	isActor()
}

type User struct {
	ID uuid.UUID
}

func (u User) HolderID() string { return "user:" + u.ID.String() }
func (User) isActor()           {}

type Table struct {
	TournamentID uuid.UUID
	TableID      int
	TokenID      string
}

func (t Table) HolderID() string { return "table:" + t.TokenID }
func (Table) isActor()           {}

// Credentials is what the transport layer extracted from the request.
type Credentials struct {
	// UserID is set when the request carries an organizer identity.
	UserID *uuid.UUID
	// TableScoped marks requests authenticated as a table device.
	TableScoped bool
	BearerToken string
}

type TableValidator interface {
	ValidateTable(raw string) (*token.TableGrant, error)
}

// Resolve prefers an organizer identity. Anything else needs a valid table
// token.
func Resolve(ctx context.Context, creds Credentials, validator TableValidator) (Actor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if creds.UserID != nil && !creds.TableScoped {
		return User{ID: *creds.UserID}, nil
	}

	raw := strings.TrimSpace(creds.BearerToken)
	if raw == "" {
		return nil, apperr.Unauthorized("Authentication required.")
	}

	grant, err := validator.ValidateTable(raw)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired table token.")
	}

	return Table{TournamentID: grant.TournamentID, TableID: grant.TableID, TokenID: grant.TokenID}, nil
}
