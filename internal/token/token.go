// Package token issues and checks the bearer tokens used by organizers'
// API clients and by the scoring devices placed at each table.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeTable Scope = "table"
)

const (
	DefaultTableTTL = 12 * time.Hour
	userTokenTTL    = 24 * time.Hour
	issuer          = "poolbracket"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Scope        Scope      `json:"scope"`
	TournamentID *uuid.UUID `json:"tid,omitempty"`
	TableID      *int       `json:"tbl,omitempty"`
	jwt.RegisteredClaims
}

// TableGrant is what a valid table token allows: scoring matches of one
// table in one tournament.
type TableGrant struct {
	TournamentID uuid.UUID
	TableID      int
	TokenID      string
	ExpiresAt    time.Time
}

type Service struct {
	secret   []byte
	tableTTL time.Duration
	now      func() time.Time
}

func NewService(secret string, tableTTL time.Duration) *Service {
	if tableTTL <= 0 {
		tableTTL = DefaultTableTTL
	}
	return &Service{secret: []byte(secret), tableTTL: tableTTL, now: time.Now}
}

func (s *Service) sign(claims Claims, subject string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *Service) IssueTableToken(tournamentID uuid.UUID, tableID int) (string, time.Time, error) {
	return s.sign(Claims{Scope: ScopeTable, TournamentID: &tournamentID, TableID: &tableID}, "", s.tableTTL)
}

func (s *Service) IssueUserToken(userID uuid.UUID) (string, time.Time, error) {
	return s.sign(Claims{Scope: ScopeUser}, userID.String(), userTokenTTL)
}

// Parse checks signature and expiry and returns the claims.
func (s *Service) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Issuer != issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	return claims, nil
}

func (s *Service) ValidateTable(raw string) (*TableGrant, error) {
	claims, err := s.Parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Scope != ScopeTable || claims.TournamentID == nil || claims.TableID == nil {
		return nil, fmt.Errorf("%w: not a table token", ErrInvalidToken)
	}

	grant := &TableGrant{
		TournamentID: *claims.TournamentID,
		TableID:      *claims.TableID,
		TokenID:      claims.ID,
	}
	if claims.ExpiresAt != nil {
		grant.ExpiresAt = claims.ExpiresAt.Time
	}
	return grant, nil
}

func (s *Service) ValidateUser(raw string) (uuid.UUID, error) {
	claims, err := s.Parse(raw)
	if err != nil {
		return uuid.Nil, err
	}
	if claims.Scope != ScopeUser {
		return uuid.Nil, fmt.Errorf("%w: not a user token", ErrInvalidToken)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}
