package service

import (
	"errors"
	"testing"
	"time"
)

func TestTokenService_IssueParseAccess(t *testing.T) {
	svc := NewTokenService("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)

	token, err := svc.IssueAccessToken(42)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}

	claims, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenService_IssueParseRefresh(t *testing.T) {
	svc := NewTokenService("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)

	token, err := svc.IssueRefreshToken(7)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	claims, err := svc.ParseRefreshToken(token)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if claims.UserID != 7 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenService_CrossSecretRejection(t *testing.T) {
	svc := NewTokenService("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)

	access, err := svc.IssueAccessToken(1)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	refresh, err := svc.IssueRefreshToken(1)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	if _, err := svc.ParseRefreshToken(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected access token rejected by refresh parser, got %v", err)
	}
	if _, err := svc.ParseAccessToken(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected refresh token rejected by access parser, got %v", err)
	}
}

func TestTokenService_ExpiredToken(t *testing.T) {
	svc := NewTokenService("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
	svc.accessTTL = -time.Minute

	token, err := svc.IssueAccessToken(1)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestTokenService_MalformedToken(t *testing.T) {
	svc := NewTokenService("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)

	if _, err := svc.ParseAccessToken("not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
	if _, err := svc.ParseAccessToken(""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected invalid error for empty token, got %v", err)
	}
}

func TestTokenService_RotationYieldsDistinctTokens(t *testing.T) {
	svc := NewTokenService("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)

	first, err := svc.IssueRefreshToken(9)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	second, err := svc.IssueRefreshToken(9)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct refresh tokens for consecutive issuance")
	}
}
