package security

import "testing"

func TestGenerateNumericCode(t *testing.T) {
	for _, length := range []int{4, 6} {
		code, err := GenerateNumericCode(length)
		if err != nil {
			t.Fatalf("GenerateNumericCode(%d) returned error: %v", length, err)
		}
		if len(code) != length {
			t.Fatalf("code %q length = %d, want %d", code, len(code), length)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
	}
}

func TestGenerateNumericCodeRejectsInvalidLength(t *testing.T) {
	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := GenerateNumericCode(-1); err == nil {
		t.Fatal("expected error for negative length")
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	first := HashToken("token-value")
	second := HashToken("token-value")
	if first != second {
		t.Fatal("expected identical hashes for identical input")
	}
	if first == HashToken("other-value") {
		t.Fatal("expected distinct hashes for distinct input")
	}
	if len(first) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(first))
	}
}
