package webhook

import "testing"

func TestComputeHandshakeDigest(t *testing.T) {
	// Known-answer vector: HMAC-SHA256("abc123", key="s3cret").
	got := ComputeHandshakeDigest("abc123", "s3cret")
	want := "c769096b4d5745c128ffb221dc2e2d5cb38b4a1cae423cf413b12cbef730bc57"
	if got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestComputeHandshakeDigestDeterministic(t *testing.T) {
	a := ComputeHandshakeDigest("token", "secret")
	b := ComputeHandshakeDigest("token", "secret")
	if a != b {
		t.Fatalf("digest not deterministic: %s vs %s", a, b)
	}
	if a == ComputeHandshakeDigest("token", "other-secret") {
		t.Fatal("digest ignores secret")
	}
}

func TestVerifyRequestSignature(t *testing.T) {
	const (
		ts     = "1700000000"
		body   = `{"event":"x"}`
		secret = "s3cret"
	)
	// Known-answer vector over "v0:{timestamp}:{rawBody}".
	want := "v0=926826f3bdf03630c673ea2f1a8c490fa4188db14faf09f44935355d26702a82"
	if got := requestSignature(ts, body, secret); got != want {
		t.Fatalf("signature = %s, want %s", got, want)
	}
	if !VerifyRequestSignature(ts, body, secret, want) {
		t.Fatal("valid signature rejected")
	}
	if VerifyRequestSignature(ts, body, secret, "v0=deadbeef") {
		t.Fatal("invalid signature accepted")
	}
	if VerifyRequestSignature("1700000001", body, secret, want) {
		t.Fatal("signature accepted with wrong timestamp")
	}
	if VerifyRequestSignature(ts, body, secret, "") {
		t.Fatal("empty signature accepted")
	}
}
