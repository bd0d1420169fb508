package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	svc, err := New(key)
	if err != nil {
		t.Fatalf("failed to build crypto service: %v", err)
	}
	if !svc.Configured() {
		t.Fatal("expected service to be configured")
	}

	ciphertext, err := svc.EncryptString("https://hooks.example.com/abc")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if bytes.Contains(ciphertext, []byte("hooks.example.com")) {
		t.Fatal("ciphertext leaked plaintext")
	}

	plain, err := svc.DecryptString(ciphertext)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plain != "https://hooks.example.com/abc" {
		t.Fatalf("unexpected plaintext %q", plain)
	}
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	key := hex.EncodeToString(bytes.Repeat([]byte{0x01}, 32))
	svc, err := New(key)
	if err != nil {
		t.Fatalf("failed to build crypto service: %v", err)
	}
	if _, err := svc.Decrypt([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected error for truncated ciphertext")
	}
}

func TestUnconfiguredPassThrough(t *testing.T) {
	svc, err := New("")
	if err != nil {
		t.Fatalf("failed to build crypto service: %v", err)
	}
	out, err := svc.EncryptString("plain-value")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if string(out) != "plain-value" {
		t.Fatalf("expected pass-through, got %q", out)
	}
}

func TestRejectsWrongKeyLength(t *testing.T) {
	if _, err := New("too-short"); err == nil {
		t.Fatal("expected error for short key")
	}
}
