package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidToken           = errors.New("invalid or expired token")
)

// Session is the authenticated caller identity the sync engine works on behalf of.
type Session struct {
	UserID    string
	ExpiresAt time.Time
}

type sessionContextKey struct{}

func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(Session)
	if !ok || session.UserID == "" {
		return Session{}, false
	}
	return session, true
}

// Require fails unless ctx carries a session for exactly identity.
func Require(ctx context.Context, identity string) error {
	session, ok := SessionFromContext(ctx)
	if !ok || identity == "" || session.UserID != identity {
		return ErrAuthenticationRequired
	}
	return nil
}

type claims struct {
	jwtlib.RegisteredClaims
}

// Verifier validates HS256 access tokens issued by the identity provider.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret string, issuer string) *Verifier {
	if issuer == "" {
		issuer = "invex"
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

func (v *Verifier) Verify(tokenStr string) (Session, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Session{}, ErrAuthenticationRequired
	}

	parsed := &claims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, parsed, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(v.issuer))
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidToken
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return Session{}, ErrInvalidToken
	}

	session := Session{UserID: sub}
	if parsed.ExpiresAt != nil {
		session.ExpiresAt = parsed.ExpiresAt.Time.UTC()
	}
	return session, nil
}

// Sign mints a token for userID. Used by tests and local tooling; production
// tokens come from the identity provider.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}
