package authn

import "testing"

func TestRegistryAuthenticatesKnownToken(t *testing.T) {
	r := NewRegistry()
	if err := r.Add("ci", "secret-token"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if !r.Authenticate("secret-token") {
		t.Fatalf("expected known token to authenticate")
	}
	if r.Authenticate("wrong-token") {
		t.Fatalf("expected unknown token to be rejected")
	}
}

func TestRegistryRevoke(t *testing.T) {
	r := NewRegistry()
	if err := r.Add("ci", "secret-token"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	r.Revoke("ci")

	if r.Authenticate("secret-token") {
		t.Fatalf("expected revoked token to be rejected")
	}
}

func TestRegistryReAddClearsRevocation(t *testing.T) {
	r := NewRegistry()
	if err := r.Add("ci", "secret-token"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	r.Revoke("ci")
	if err := r.Add("ci", "secret-token"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if !r.Authenticate("secret-token") {
		t.Fatalf("expected re-added token to authenticate again")
	}
}

func TestRateLimiterAllowsWithinCapacityAndBlocksBurst(t *testing.T) {
	rl := NewRateLimiter(2, 0)

	if !rl.Allow("client-1") {
		t.Fatalf("expected first call to be allowed")
	}
	if !rl.Allow("client-1") {
		t.Fatalf("expected second call within capacity to be allowed")
	}
	if rl.Allow("client-1") {
		t.Fatalf("expected third call to exhaust the bucket")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, 0)

	if !rl.Allow("client-1") {
		t.Fatalf("expected client-1 first call to be allowed")
	}
	if !rl.Allow("client-2") {
		t.Fatalf("expected client-2 to have its own bucket")
	}
	if rl.Allow("client-1") {
		t.Fatalf("expected client-1 bucket to already be exhausted")
	}
}
