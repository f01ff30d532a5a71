package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, badly signed, expired, or carries
	// a claim set outside the known variants. Decode never returns partial claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidTTL is returned by Issue when ttl is not positive.
	ErrInvalidTTL = errors.New("token ttl must be positive")
)

// Kind is the token type embedded in every token as the "type" claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// TokenInfo holds the claims shared by every token variant.
type TokenInfo struct {
	// UserID is the subject: the user the bearer acts as.
	UserID string
	// SessionToken correlates the token to a session or impersonation session row.
	SessionToken string
	// ID is the jti. For refresh tokens it is the opaque refresh token bound to the session row.
	ID string
	// ExpiresAt is set by Issue and Decode; callers building claims leave it zero.
	ExpiresAt time.Time
}

// Claims is the closed set of token payloads: AccessClaims, RefreshClaims,
// ImpersonationAccessClaims and ImpersonationRefreshClaims. Call sites type-switch on it.
type Claims interface {
	Info() TokenInfo
	Kind() Kind
	isClaims()
}

// AccessClaims authorize requests for an ordinary session.
type AccessClaims struct{ TokenInfo }

// RefreshClaims mint new access tokens for an ordinary session.
type RefreshClaims struct{ TokenInfo }

// ImpersonationAccessClaims authorize requests as UserID (the target) on behalf of AdminUserID.
type ImpersonationAccessClaims struct {
	TokenInfo
	AdminUserID            string
	ImpersonationSessionID string
}

// ImpersonationRefreshClaims mint new impersonation access tokens.
type ImpersonationRefreshClaims struct {
	TokenInfo
	AdminUserID            string
	ImpersonationSessionID string
}

func (c AccessClaims) Info() TokenInfo               { return c.TokenInfo }
func (c RefreshClaims) Info() TokenInfo              { return c.TokenInfo }
func (c ImpersonationAccessClaims) Info() TokenInfo  { return c.TokenInfo }
func (c ImpersonationRefreshClaims) Info() TokenInfo { return c.TokenInfo }

func (AccessClaims) Kind() Kind               { return KindAccess }
func (RefreshClaims) Kind() Kind              { return KindRefresh }
func (ImpersonationAccessClaims) Kind() Kind  { return KindAccess }
func (ImpersonationRefreshClaims) Kind() Kind { return KindRefresh }

func (AccessClaims) isClaims()               {}
func (RefreshClaims) isClaims()              {}
func (ImpersonationAccessClaims) isClaims()  {}
func (ImpersonationRefreshClaims) isClaims() {}

// wireClaims is the JSON layout of a signed token.
type wireClaims struct {
	jwt.RegisteredClaims
	SessionToken           string `json:"session_token"`
	Type                   Kind   `json:"type"`
	Impersonation          bool   `json:"impersonation,omitempty"`
	AdminUserID            string `json:"admin_user_id,omitempty"`
	ImpersonationSessionID string `json:"impersonation_session_id,omitempty"`
}

// TokenCodec issues and decodes signed, expiring tokens. It is stateless and safe for
// concurrent use; it knows nothing about session liveness, so callers must cross-check
// the session store after Decode.
type TokenCodec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	now       func() time.Time
}

// NewHMACCodec returns a TokenCodec that signs with HS256 and the given shared secret.
func NewHMACCodec(secret []byte, issuer, audience string) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidKey
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{
		method:    jwt.SigningMethodHS256,
		signKey:   key,
		verifyKey: key,
		issuer:    issuer,
		audience:  audience,
		now:       time.Now,
	}, nil
}

// NewKeyPairCodec returns a TokenCodec that signs with RS256 or ES256 depending on the key type.
func NewKeyPairCodec(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string) (*TokenCodec, error) {
	if privateKey == nil || publicKey == nil {
		return nil, ErrInvalidKey
	}
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if KeyAlg(publicKey) != method.Alg() {
		return nil, ErrInvalidKey
	}
	return &TokenCodec{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		audience:  audience,
		now:       time.Now,
	}, nil
}

// WithClock returns a copy of the codec that reads the current time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// Algorithm returns the JWT alg the codec signs and accepts.
func (c *TokenCodec) Algorithm() string {
	return c.method.Alg()
}

// Issue signs claims with an absolute expiry of now+ttl and returns the token and that expiry.
// The token type is derived from the claims variant.
func (c *TokenCodec) Issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, ErrInvalidTTL
	}
	info := claims.Info()
	if info.UserID == "" || info.SessionToken == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	jti := info.ID
	if jti == "" {
		var err error
		if jti, err = generateJTI(); err != nil {
			return "", time.Time{}, err
		}
	}
	now := c.now().UTC()
	exp := jwt.NewNumericDate(now.Add(ttl))
	w := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   info.UserID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
		SessionToken: info.SessionToken,
		Type:         claims.Kind(),
	}
	switch v := claims.(type) {
	case ImpersonationAccessClaims:
		w.Impersonation, w.AdminUserID, w.ImpersonationSessionID = true, v.AdminUserID, v.ImpersonationSessionID
	case ImpersonationRefreshClaims:
		w.Impersonation, w.AdminUserID, w.ImpersonationSessionID = true, v.AdminUserID, v.ImpersonationSessionID
	}
	if w.Impersonation && (w.AdminUserID == "" || w.ImpersonationSessionID == "") {
		return "", time.Time{}, ErrInvalidToken
	}
	token, err := jwt.NewWithClaims(c.method, w).SignedString(c.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp.Time.UTC(), nil
}

// Decode verifies signature, algorithm, issuer, audience and expiry, then maps the payload onto
// exactly one Claims variant. Any failure yields ErrInvalidToken.
func (c *TokenCodec) Decode(tokenString string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	var w wireClaims
	token, err := parser.ParseWithClaims(tokenString, &w, func(*jwt.Token) (interface{}, error) {
		return c.verifyKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if w.Subject == "" || w.SessionToken == "" || w.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	info := TokenInfo{
		UserID:       w.Subject,
		SessionToken: w.SessionToken,
		ID:           w.ID,
		ExpiresAt:    w.ExpiresAt.Time.UTC(),
	}
	if !w.Impersonation {
		if w.AdminUserID != "" || w.ImpersonationSessionID != "" {
			return nil, ErrInvalidToken
		}
		switch w.Type {
		case KindAccess:
			return AccessClaims{info}, nil
		case KindRefresh:
			if info.ID == "" {
				return nil, ErrInvalidToken
			}
			return RefreshClaims{info}, nil
		}
		return nil, ErrInvalidToken
	}
	if w.AdminUserID == "" || w.ImpersonationSessionID == "" || w.AdminUserID == w.Subject {
		return nil, ErrInvalidToken
	}
	switch w.Type {
	case KindAccess:
		return ImpersonationAccessClaims{TokenInfo: info, AdminUserID: w.AdminUserID, ImpersonationSessionID: w.ImpersonationSessionID}, nil
	case KindRefresh:
		return ImpersonationRefreshClaims{TokenInfo: info, AdminUserID: w.AdminUserID, ImpersonationSessionID: w.ImpersonationSessionID}, nil
	}
	return nil, ErrInvalidToken
}
