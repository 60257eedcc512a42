package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhurio/core"
)

const tokenContextKey = "subjectToken"

var errClaimsNotFoundInCtx = errors.New("claims not found in echo.Context")

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the main platform with the shared secret; this service
// only validates them.
type Claims struct {
	jwt.StandardClaims
	SchoolID string   `json:"school_id,omitempty"`
	Name     string   `json:"name,omitempty"`
	IsAdmin  bool     `json:"is_admin,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// newAppJWTConfig returns the default JWT auth middleware config.
func newAppJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// NewClaims builds claims for a subject; mainly used by tests and tooling,
// production tokens come from the platform.
func NewClaims(conf *core.Config, subjectID, schoolID string, isAdmin bool, roles ...string) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   subjectID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		SchoolID: schoolID,
		IsAdmin:  isAdmin,
		Roles:    roles,
	}
}

func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(conf.SecretKey))
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return claims, nil
		}
	}
	return nil, errClaimsNotFoundInCtx
}
