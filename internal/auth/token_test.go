package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestToken_Deterministic(t *testing.T) {
	a, err := Token("secret")
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	b, err := Token("secret")
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if a != b {
		t.Errorf("same password produced different tokens: %q vs %q", a, b)
	}
}

func TestToken_EmptyPasswordAccepted(t *testing.T) {
	tok, err := Token("")
	if err != nil {
		t.Fatalf("Token(\"\") error: %v", err)
	}
	if tok == "" {
		t.Fatal("empty password should still produce a token")
	}
}

func TestToken_CiphertextShape(t *testing.T) {
	tests := []struct {
		password   string
		wantBlocks int // DES blocks after PKCS#7 padding
	}{
		{"", 1},
		{"1234567", 1},
		{"12345678", 2}, // exact block length pads a full extra block
		{"a longer printer password", 4},
	}
	for _, tt := range tests {
		tok, err := Token(tt.password)
		if err != nil {
			t.Fatalf("Token(%q) error: %v", tt.password, err)
		}
		raw, err := base64.StdEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token for %q is not valid base64: %v", tt.password, err)
		}
		if len(raw) != tt.wantBlocks*8 {
			t.Errorf("Token(%q) ciphertext = %d bytes, want %d", tt.password, len(raw), tt.wantBlocks*8)
		}
	}
}

func TestToken_DiffersByPassword(t *testing.T) {
	a, _ := Token("one")
	b, _ := Token("two")
	if a == b {
		t.Error("different passwords produced identical tokens")
	}
}

func TestLegacyRequest(t *testing.T) {
	frame, err := LegacyRequest("GET_PRINT_STATUS", "pw")
	if err != nil {
		t.Fatalf("LegacyRequest() error: %v", err)
	}

	var decoded struct {
		Cmd   string `json:"cmd"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(frame, &decoded); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	if decoded.Cmd != "GET_PRINT_STATUS" {
		t.Errorf("cmd = %q, want GET_PRINT_STATUS", decoded.Cmd)
	}
	want, _ := Token("pw")
	if decoded.Token != want {
		t.Errorf("token = %q, want %q", decoded.Token, want)
	}
}
