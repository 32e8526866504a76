// Package jwttoken signs and validates the two token shapes the HTTP surface
// carries: caller identity tokens (Bearer) and capability tokens.
//
// A capability token is the wire form of a CreatorCapability. It is minted
// exactly once, when the creator account is created, and carries only the
// tagged pair {capability_id, account_id}. The HMAC signature is what makes
// the pair unforgeable in transit; there is no server-side registry of valid
// capabilities, and validation never touches storage.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "subvault/pkg/domain"
	dErrors "subvault/pkg/domain-errors"
)

// IdentityClaims are the claims of a caller identity token. Subject is the
// opaque principal.
type IdentityClaims struct {
	jwt.RegisteredClaims
}

// CapabilityClaims are the claims of a capability token.
type CapabilityClaims struct {
	CapabilityID string `json:"capability_id"`
	AccountID    string `json:"account_id"`
	jwt.RegisteredClaims
}

// JWTService handles token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey string, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// GenerateIdentityToken mints a caller identity token for the given
// principal. Development convenience: production deployments are expected to
// plug an external identity provider in front of RequireAuth instead.
func (s *JWTService) GenerateIdentityToken(principal id.Principal, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(principal),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// GenerateCapabilityToken serializes a capability as a signed token. The
// token never expires: a capability lives exactly as long as its account.
func (s *JWTService) GenerateCapabilityToken(capabilityID id.CapabilityID, accountID id.AccountID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, CapabilityClaims{
		CapabilityID: capabilityID.String(),
		AccountID:    accountID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer:   s.issuer,
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateIdentityToken checks the signature and expiry of a caller identity
// token and returns its claims.
func (s *JWTService) ValidateIdentityToken(tokenString string) (*IdentityClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*IdentityClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ParseCapability validates a capability token and reconstructs the
// CreatorCapability pair it carries. A bad signature or malformed pair is an
// invalid capability, not an identity failure.
func (s *JWTService) ParseCapability(tokenString string) (id.CapabilityID, id.AccountID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &CapabilityClaims{}, s.keyFunc)
	if err != nil || !parsed.Valid {
		return id.CapabilityID{}, id.AccountID{}, dErrors.New(dErrors.CodeInvalidCapability, "capability token is not valid")
	}
	claims, ok := parsed.Claims.(*CapabilityClaims)
	if !ok {
		return id.CapabilityID{}, id.AccountID{}, dErrors.New(dErrors.CodeInvalidCapability, "capability token is not valid")
	}
	capID, err := id.ParseCapabilityID(claims.CapabilityID)
	if err != nil {
		return id.CapabilityID{}, id.AccountID{}, dErrors.New(dErrors.CodeInvalidCapability, "capability token carries no capability id")
	}
	accountID, err := id.ParseAccountID(claims.AccountID)
	if err != nil {
		return id.CapabilityID{}, id.AccountID{}, dErrors.New(dErrors.CodeInvalidCapability, "capability token carries no account binding")
	}
	return capID, accountID, nil
}

func (s *JWTService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, jwt.ErrTokenUnverifiable
	}
	return s.signingKey, nil
}
