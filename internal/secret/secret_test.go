package secret

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := NewBox(testKey())
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	sealed, err := box.Seal("p@ssw0rd")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == "p@ssw0rd" {
		t.Fatalf("sealed form equals plaintext")
	}

	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != "p@ssw0rd" {
		t.Fatalf("round trip mismatch: %q", opened)
	}
}

func TestSealIsNonDeterministic(t *testing.T) {
	box, _ := NewBox(testKey())
	a, _ := box.Seal("same")
	b, _ := box.Seal("same")
	if a == b {
		t.Fatalf("two seals of the same value produced identical ciphertext")
	}
}

func TestNewBoxRejectsBadKeys(t *testing.T) {
	if _, err := NewBox("not-base64!!"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey", err)
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := NewBox(short); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey", err)
	}
}

func TestOpenRejectsTamperedValue(t *testing.T) {
	box, _ := NewBox(testKey())
	sealed, _ := box.Seal("secret")

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := box.Open(tampered); err == nil {
		t.Fatalf("expected tampered ciphertext to fail")
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	box1, _ := NewBox(testKey())
	box2, _ := NewBox(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 32))))

	sealed, _ := box1.Seal("secret")
	if _, err := box2.Open(sealed); err == nil {
		t.Fatalf("expected open with wrong key to fail")
	}
}
