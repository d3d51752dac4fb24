package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/person"
)

const contextTokenKey = "token"

var errInvalidClaims = errors.New("token has no valid subject or role")

// Claims represents the authorization claims transmitted via a JWT.
// The subject is the person id.
type Claims struct {
	jwt.StandardClaims
	Role access.Role `json:"role"`
}

func (c *Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.Subject == "" || !c.Role.Valid() {
		return errInvalidClaims
	}
	return nil
}

type tokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

func newTokenIssuer(conf *core.Config) *tokenIssuer {
	return &tokenIssuer{
		key:    []byte(conf.SecretKey),
		issuer: conf.AppName,
		ttl:    conf.Server.JWTExpirationDelta,
	}
}

func (ti *tokenIssuer) claims(p person.Person) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ti.issuer,
			Subject:   p.ID,
			ExpiresAt: now.Add(ti.ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role: p.Role,
	}
}

func (ti *tokenIssuer) issue(p person.Person) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), ti.claims(p))
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti *tokenIssuer) middlewareConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    ti.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// GenerateToken signs a token for p with the secret of conf.
func GenerateToken(conf *core.Config, p person.Person) (string, error) {
	return newTokenIssuer(conf).issue(p)
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return claims, nil
		}
	}
	return nil, errUnauthorized
}

// contextCaller is the authenticated person behind the request.
func contextCaller(ctx echo.Context) (access.Caller, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return access.Caller{}, err
	}
	return access.Caller{
		PersonID: claims.Subject,
		Role:     claims.Role,
		Origin:   ctx.RealIP(),
	}, nil
}
