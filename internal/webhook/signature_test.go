package webhook

import (
	"testing"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"d1","event":"pr.set","data":{"userId":"u1"}}`)
	secret := "whsec_test"

	sig := Sign(payload, secret)
	if len(sig) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(sig))
	}
	if !VerifySignature(payload, sig, secret) {
		t.Fatalf("expected valid signature to verify")
	}
}

func TestVerifySignature_RejectsMutations(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"event":"workout.created"}`)
	secret := "whsec_test"
	sig := Sign(payload, secret)

	mutated := append([]byte(nil), payload...)
	mutated[0] ^= 0x01
	if VerifySignature(mutated, sig, secret) {
		t.Fatalf("expected mutated payload to fail verification")
	}

	if VerifySignature(payload, sig, secret+"x") {
		t.Fatalf("expected wrong secret to fail verification")
	}

	wrongSig := Sign([]byte("other"), secret)
	if VerifySignature(payload, wrongSig, secret) {
		t.Fatalf("expected wrong signature to fail verification")
	}
}

func TestVerifySignature_RejectsNonHex(t *testing.T) {
	t.Parallel()

	if VerifySignature([]byte("body"), "not-hex!", "secret") {
		t.Fatalf("expected non-hex signature to fail verification")
	}
	if VerifySignature([]byte("body"), "", "secret") {
		t.Fatalf("expected empty signature to fail verification")
	}
}
