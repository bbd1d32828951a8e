// Package token issues and validates HS256 session tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/middleware/auth"
	"farmshield/pkg/requestcontext"
)

const (
	useAccess       = "access"
	useRegistration = "registration"
)

// Claims is the JWT body for both access and registration tokens. TokenUse
// keeps one kind from being replayed as the other.
type Claims struct {
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid,omitempty"`
	Area      string `json:"area,omitempty"`
	Phone     string `json:"phone,omitempty"`
	TokenUse  string `json:"token_use"`
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{signingKey: []byte(signingKey), issuer: issuer, audience: audience}
}

// GenerateAccessToken signs a token for caller and returns it with its JTI.
func (s *JWTService) GenerateAccessToken(caller requestcontext.Caller, expiresIn time.Duration) (string, string, error) {
	jti := uuid.NewString()
	signed, err := s.sign(Claims{
		Role:             string(caller.Role),
		SessionID:        caller.SessionID.String(),
		Area:             caller.Area,
		TokenUse:         useAccess,
		RegisteredClaims: s.registered(caller.SubjectID.String(), jti, expiresIn),
	})
	return signed, jti, err
}

// GenerateRegistrationToken proves that phone passed code verification.
func (s *JWTService) GenerateRegistrationToken(phone id.Phone, expiresIn time.Duration) (string, error) {
	return s.sign(Claims{
		Phone:            string(phone),
		TokenUse:         useRegistration,
		RegisteredClaims: s.registered(string(phone), uuid.NewString(), expiresIn),
	})
}

// ValidateToken accepts access tokens only and resolves the principal.
func (s *JWTService) ValidateToken(tokenString string) (*auth.JWTClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenUse != useAccess {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	role := requestcontext.Role(claims.Role)
	if role != requestcontext.RoleFarmer && role != requestcontext.RoleOfficial {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &auth.JWTClaims{
		Principal: requestcontext.Caller{
			SubjectID: subject,
			SessionID: id.SessionID(sessionID),
			Role:      role,
			Area:      claims.Area,
		},
		JTI: claims.ID,
	}, nil
}

// ValidateRegistrationToken returns the verified phone carried by the ticket.
func (s *JWTService) ValidateRegistrationToken(tokenString string) (id.Phone, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.TokenUse != useRegistration || claims.Phone == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid registration token")
	}
	return id.Phone(claims.Phone), nil
}

func (s *JWTService) registered(subject, jti string, expiresIn time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.issuer,
		Audience:  []string{s.audience},
		ID:        jti,
	}
}

func (s *JWTService) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

func (s *JWTService) parse(tokenString string) (*Claims, error) {
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
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
