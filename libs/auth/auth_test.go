package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyHS256(t *testing.T) {
	secret := "test-secret"
	token, err := SignHS256(Claims{
		Role:             "seller",
		Email:            "s@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}, secret, time.Hour)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	claims, err := NewVerifier(secret, nil).Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "seller" || claims.Email != "s@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := NewVerifier("other", nil).Verify(token); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestVerifyRejectsExpiredAndUnsigned(t *testing.T) {
	secret := "test-secret"
	expired, err := SignHS256(Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}, secret, 0)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := NewVerifier(secret, nil).Verify(expired); err == nil {
		t.Fatal("expected expired token to fail")
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := NewVerifier(secret, nil).Verify(none); err == nil {
		t.Fatal("expected alg none to fail")
	}
}

func TestVerifyRS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{{
			Kty: "RSA",
			Kid: "k1",
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	v := NewVerifier("", NewJWKSClient(srv.URL, time.Minute, srv.Client()))
	claims, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "user-2" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}

	tok.Header["kid"] = "missing"
	raw, _ = tok.SignedString(key)
	if _, err := v.Verify(raw); err == nil {
		t.Fatal("expected unknown kid to fail")
	}
}

func TestRequire(t *testing.T) {
	secret := "test-secret"
	token, err := SignHS256(Claims{
		Name:             "Sam",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}, secret, time.Hour)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	h := Require(NewVerifier(secret, nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok || id.UserID != "user-1" || id.Name != "Sam" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	for _, header := range []string{"", "Bearer ", "Bearer badtoken", "Basic abc"} {
		reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		if header != "" {
			reqBad.Header.Set("Authorization", header)
		}
		rwBad := httptest.NewRecorder()
		h.ServeHTTP(rwBad, reqBad)
		if rwBad.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rwBad.Code)
		}
	}
}
