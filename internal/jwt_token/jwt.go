// Package jwttoken signs and validates the HS256 access tokens that carry
// an actor's identity, role, and organization scope.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"courseflow/internal/identity"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
)

// Claims are the courseflow access token claims. The actor ID rides in the
// registered Subject claim.
type Claims struct {
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
	jwt.RegisteredClaims
}

// Service handles token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewService(signingKey, issuer, audience string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateAccessToken signs a token for the actor.
func (s *Service) GenerateAccessToken(actor identity.Actor, expiresIn time.Duration) (string, error) {
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	}
	if !actor.OrganizationID.IsNil() {
		claims.OrganizationID = actor.OrganizationID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token and reconstructs the actor.
func (s *Service) ValidateToken(tokenString string) (identity.Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Actor{}, dErrors.New(dErrors.CodeNotAuthenticated, "token has expired")
		}
		return identity.Actor{}, dErrors.New(dErrors.CodeNotAuthenticated, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return identity.Actor{}, dErrors.New(dErrors.CodeNotAuthenticated, "invalid token claims")
	}

	actorID, err := domain.ParseActorID(claims.Subject)
	if err != nil {
		return identity.Actor{}, dErrors.New(dErrors.CodeNotAuthenticated, "invalid actor id in token")
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return identity.Actor{}, dErrors.New(dErrors.CodeNotAuthenticated, "invalid role in token")
	}

	actor := identity.Actor{ID: actorID, Role: role}
	if claims.OrganizationID != "" {
		orgID, err := domain.ParseOrganizationID(claims.OrganizationID)
		if err != nil {
			return identity.Actor{}, dErrors.New(dErrors.CodeNotAuthenticated, "invalid organization id in token")
		}
		actor.OrganizationID = orgID
	}
	return actor, nil
}
