package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the caller identity issued by the session provider.
// Subject holds the user id.
type Claims struct {
	Role    string `json:"role,omitempty"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// SignHS256 issues a token for claims; IssuedAt and ExpiresAt default to now and now+ttl.
func SignHS256(claims Claims, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil && ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verifier validates HS256 tokens against a shared secret and, when a JWKS
// client is configured, RS256 tokens against the provider's published keys.
type Verifier struct {
	secret []byte
	jwks   *JWKSClient
	parser *jwt.Parser
}

func NewVerifier(secret string, jwks *JWKSClient) *Verifier {
	methods := []string{jwt.SigningMethodHS256.Alg()}
	if jwks != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	return &Verifier{
		secret: []byte(secret),
		jwks:   jwks,
		parser: jwt.NewParser(
			jwt.WithValidMethods(methods),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

func (v *Verifier) Verify(raw string) (*Claims, error) {
	tok, err := v.parser.ParseWithClaims(raw, &Claims{}, v.keyFor)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func (v *Verifier) keyFor(t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(v.secret) == 0 {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		if v.jwks == nil {
			return nil, ErrInvalidToken
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrInvalidToken
		}
		return v.jwks.Get(kid)
	default:
		// block alg confusion
		return nil, ErrInvalidToken
	}
}
