// Package token issues and verifies the signed, time-bounded JWTs handed out
// at login.
//
// Access tokens carry the subject username ("sub") and account id
// ("user_id"). Refresh tokens carry the same claims plus type=refresh. The
// secret and signing algorithm are fixed when the Issuer is built; there is no
// revocation list, a token stops working only when it expires or the key
// changes.
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTTL applies when no positive ttl is configured or passed.
	DefaultAccessTTL = 30 * time.Minute
	// RefreshTTL is the lifetime of every refresh token.
	RefreshTTL = 7 * 24 * time.Hour

	refreshType = "refresh"
)

// ErrInvalid is the only error Verify returns. Forged, malformed and expired
// tokens are indistinguishable to the caller.
var ErrInvalid = errors.New("invalid token")

// Kind tells access tokens and refresh tokens apart.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Identity is what a verified token asserts.
type Identity struct {
	Username  string
	UserID    int64
	Kind      Kind
	ExpiresAt time.Time
}

// Claims is the JWT payload.
type Claims struct {
	UserID *int64 `json:"user_id,omitempty"`
	Type   string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Options configures an Issuer.
type Options struct {
	Secret    []byte
	Algorithm string
	AccessTTL time.Duration
	Logger    *slog.Logger
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Issuer signs and verifies tokens with a single process-wide key.
type Issuer struct {
	key       []byte
	method    jwt.SigningMethod
	accessTTL time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewIssuer validates opts and builds an Issuer. Only the HMAC family
// (HS256, HS384, HS512) is accepted.
func NewIssuer(opts Options) (*Issuer, error) {
	const op = "token.NewIssuer"

	if len(opts.Secret) == 0 {
		return nil, fmt.Errorf("%s: empty signing secret", op)
	}
	alg := opts.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported signing algorithm %q", op, alg)
	}

	i := &Issuer{
		key:       opts.Secret,
		method:    method,
		accessTTL: opts.AccessTTL,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if i.accessTTL <= 0 {
		i.accessTTL = DefaultAccessTTL
	}
	if i.log == nil {
		i.log = slog.New(slog.DiscardHandler)
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i, nil
}

// AccessTTL is the default lifetime of access tokens.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// Algorithm is the JWT "alg" every token is signed with.
func (i *Issuer) Algorithm() string { return i.method.Alg() }

// IssueAccess signs an access token for the subject. A non-positive ttl uses
// the issuer's default.
func (i *Issuer) IssueAccess(username string, userID int64, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = i.accessTTL
	}
	return i.sign(username, userID, "", ttl)
}

// IssueRefresh signs a refresh token for the subject, valid for RefreshTTL.
func (i *Issuer) IssueRefresh(username string, userID int64) (string, error) {
	return i.sign(username, userID, refreshType, RefreshTTL)
}

func (i *Issuer) sign(username string, userID int64, typ string, ttl time.Duration) (string, error) {
	const op = "token.sign"

	now := i.now()
	uid := userID
	claims := &Claims{
		UserID: &uid,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm and expiry of raw and returns the
// identity it carries. The expiry must be strictly after the current time.
func (i *Issuer) Verify(raw string) (Identity, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return i.key, nil },
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		i.log.Debug("token rejected", slog.Any("error", err))
		return Identity{}, ErrInvalid
	}

	if claims.Subject == "" || claims.UserID == nil {
		i.log.Debug("token rejected", slog.String("reason", "missing subject claims"))
		return Identity{}, ErrInvalid
	}

	id := Identity{
		Username:  claims.Subject,
		UserID:    *claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	switch claims.Type {
	case "":
		id.Kind = KindAccess
	case refreshType:
		id.Kind = KindRefresh
	default:
		i.log.Debug("token rejected", slog.String("reason", "unknown token type"), slog.String("type", claims.Type))
		return Identity{}, ErrInvalid
	}
	return id, nil
}
