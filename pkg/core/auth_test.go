package core

import "testing"

func TestSecureCompareStringEqual(t *testing.T) {
	if !SecureCompareString("s3cr3t", "s3cr3t") {
		t.Fatal("expected equal strings to compare equal")
	}
}

func TestSecureCompareStringDifferentLength(t *testing.T) {
	if SecureCompareString("short", "muchlonger") {
		t.Fatal("expected different-length strings to compare unequal")
	}
}

func TestSecureCompareStringSameLengthDifferent(t *testing.T) {
	if SecureCompareString("aaaaaa", "aaaaab") {
		t.Fatal("expected differing strings to compare unequal")
	}
}

func TestAuthenticateBearerMissingHeader(t *testing.T) {
	result := AuthenticateBearer("", "s3cr3t")
	if result.Authorized {
		t.Fatal("expected an empty Authorization header to be unauthorized")
	}
}

func TestAuthenticateBearerWrongScheme(t *testing.T) {
	result := AuthenticateBearer("Basic s3cr3t", "s3cr3t")
	if result.Authorized {
		t.Fatal("expected a non-Bearer scheme to be unauthorized")
	}
}

func TestAuthenticateBearerWrongToken(t *testing.T) {
	result := AuthenticateBearer("Bearer wrong", "s3cr3t")
	if result.Authorized {
		t.Fatal("expected a mismatched bearer token to be unauthorized")
	}
}

func TestAuthenticateBearerCorrectToken(t *testing.T) {
	result := AuthenticateBearer("Bearer s3cr3t", "s3cr3t")
	if !result.Authorized {
		t.Fatalf("expected a matching bearer token to be authorized, got error: %s", result.Error)
	}
}
