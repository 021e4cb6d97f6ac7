package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"taskledger-api/domain"
)

const (
	// sessionCookie is the encrypted cookie carrying the signed token.
	sessionCookie   = "token"
	sessionTokenKey = "jwt"

	accountIDContextKey = "account_id"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

// SessionAuth signs and verifies the self-contained session tokens. The
// signing key is fixed at construction and never mutated afterwards, so
// concurrent use needs no synchronization.
type SessionAuth struct {
	signingKey []byte
	ttl        time.Duration
	parser     *jwt.Parser
}

// NewSessionAuth creates an authenticator signing with the given key. ttl
// bounds token lifetime; a non-positive ttl selects 24 hours.
func NewSessionAuth(signingKey []byte, ttl time.Duration) *SessionAuth {
	if len(signingKey) == 0 {
		panic("api.NewSessionAuth: empty signing key")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionAuth{
		signingKey: signingKey,
		ttl:        ttl,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// TTL reports the configured token lifetime.
func (a *SessionAuth) TTL() time.Duration { return a.ttl }

// Issue builds a signed claim set for the account. Tokens always carry an
// expiry.
func (a *SessionAuth) Issue(accountID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signingKey)
}

// Authenticate verifies signature and claims and returns the embedded
// account id. An expired token reports domain.ErrExpiredToken; everything
// else that fails verification reports domain.ErrUnauthenticated.
func (a *SessionAuth) Authenticate(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, domain.ErrUnauthenticated
	}

	claims := jwt.RegisteredClaims{}
	_, err := a.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, domain.ErrExpiredToken
		}
		return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	if claims.ExpiresAt == nil {
		// The parser accepts tokens without exp; those never count as a
		// valid session.
		return uuid.Nil, fmt.Errorf("%w: missing expiry", domain.ErrUnauthenticated)
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", domain.ErrUnauthenticated)
	}
	return accountID, nil
}

// RequireAccount authenticates the request before the handler runs and
// stashes the account id in the request context. Bearer callers get explicit
// statuses; cookie (browser) traffic is redirected to the login page.
func RequireAccount(auth Sessions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, fromHeader, err := requestToken(c)
			if err == nil {
				var accountID uuid.UUID
				accountID, err = auth.Authenticate(token)
				if err == nil {
					c.Set(accountIDContextKey, accountID)
					return next(c)
				}
			}

			if fromHeader {
				if errors.Is(err, domain.ErrExpiredToken) {
					return c.String(http.StatusUnauthorized, "token expired")
				}
				return c.String(http.StatusUnauthorized, "unauthenticated")
			}
			return c.Redirect(http.StatusFound, "/login")
		}
	}
}

// requestToken pulls the session token from the Authorization header or,
// failing that, from the encrypted cookie session.
func requestToken(c echo.Context) (token string, fromHeader bool, err error) {
	if raw := c.Request().Header.Get(echo.HeaderAuthorization); raw != "" {
		token, err = bearerToken(raw)
		return token, true, err
	}

	sess, err := session.Get(sessionCookie, c)
	if err != nil {
		return "", false, fmt.Errorf("%w: bad session cookie", domain.ErrUnauthenticated)
	}
	val, ok := sess.Values[sessionTokenKey].(string)
	if !ok || val == "" {
		return "", false, domain.ErrUnauthenticated
	}
	return val, false, nil
}

// bearerToken extracts a compact JWS from an Authorization header value. The
// dot count is a cheap sanity check before the token reaches the parser.
func bearerToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errMissingAuthorization
	}
	const prefix = "Bearer "
	if len(raw) <= len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) {
		return "", errBadAuthorization
	}
	token := raw[len(prefix):]
	if strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}

// writeSessionToken stores a freshly issued token in the encrypted cookie.
func writeSessionToken(c echo.Context, token string, ttl time.Duration) error {
	// A corrupt inbound cookie still yields a usable fresh session, so
	// the decode error is deliberately ignored and the cookie rewritten.
	sess, _ := session.Get(sessionCookie, c)
	sess.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	sess.Values[sessionTokenKey] = token
	return sess.Save(c.Request(), c.Response())
}

func accountFrom(c echo.Context) (uuid.UUID, bool) {
	accountID, ok := c.Get(accountIDContextKey).(uuid.UUID)
	return accountID, ok
}
