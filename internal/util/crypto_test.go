package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncryptDecryptAES_RoundTrip(t *testing.T) {
	key := "config-key-of-any-length"
	plaintexts := [][]byte{
		[]byte("user_token_abc123"),
		[]byte(""),
		bytes.Repeat([]byte{0xff}, 1024),
	}

	for _, plain := range plaintexts {
		enc, err := EncryptAES(key, plain)
		if err != nil {
			t.Fatalf("EncryptAES error = %v", err)
		}
		dec, err := DecryptAES(key, enc)
		if err != nil {
			t.Fatalf("DecryptAES error = %v", err)
		}
		if !bytes.Equal(dec, plain) {
			t.Errorf("round trip mismatch: got %q, want %q", dec, plain)
		}
	}
}

func TestDecryptAES_WrongKey(t *testing.T) {
	enc, err := EncryptAES("key-a", []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptAES("key-b", enc); err == nil {
		t.Error("DecryptAES with wrong key succeeded, want error")
	}
}

func TestDecryptAES_TruncatedInput(t *testing.T) {
	if _, err := DecryptAES("key", []byte{1, 2, 3}); err == nil {
		t.Error("DecryptAES on truncated input succeeded, want error")
	}
}

func TestEncryptAES_NonceVaries(t *testing.T) {
	key := "key"
	a, err := EncryptAES(key, []byte("same plaintext"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptAES(key, []byte("same plaintext"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext are identical")
	}
}

func TestSealOpenToken(t *testing.T) {
	key := "encryption-key"
	token := "user_token_live_7f3a"

	sealed, err := SealToken(key, token)
	if err != nil {
		t.Fatalf("SealToken error = %v", err)
	}
	if strings.Contains(sealed, token) {
		t.Error("sealed token leaks plaintext")
	}

	opened, err := OpenToken(key, sealed)
	if err != nil {
		t.Fatalf("OpenToken error = %v", err)
	}
	if opened != token {
		t.Errorf("OpenToken = %q, want %q", opened, token)
	}
}

func TestSealToken_Empty(t *testing.T) {
	if _, err := SealToken("key", ""); err == nil {
		t.Error("SealToken(\"\") succeeded, want error")
	}
}

func TestOpenToken_Garbage(t *testing.T) {
	if _, err := OpenToken("key", "not base64 !!!"); err == nil {
		t.Error("OpenToken on garbage succeeded, want error")
	}
}
