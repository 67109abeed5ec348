package secrets

import (
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestBox_RoundTrip(t *testing.T) {
	box, err := NewBox(testKey)
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	sealed, err := box.Seal("n8n-api-key")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) || strings.Contains(sealed, "n8n-api-key") {
		t.Fatalf("value not sealed: %q", sealed)
	}
	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != "n8n-api-key" {
		t.Fatalf("expected round trip, got %q", opened)
	}
}

func TestBox_PassThroughWithoutKey(t *testing.T) {
	box, err := NewBox("")
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	sealed, _ := box.Seal("plain")
	if sealed != "plain" {
		t.Fatalf("expected pass-through, got %q", sealed)
	}
	if _, errOpen := box.Open("sbx:abc"); errOpen == nil {
		t.Fatalf("expected error opening sealed value without key")
	}
}

func TestBox_RejectsTamperedValue(t *testing.T) {
	box, _ := NewBox(testKey)
	sealed, _ := box.Seal("secret")
	tampered := sealed[:len(sealed)-2] + "AA"
	if tampered == sealed {
		tampered = sealed[:len(sealed)-2] + "BB"
	}
	if _, err := box.Open(tampered); err == nil {
		t.Fatalf("expected tampered value to fail")
	}
}

func TestNewBox_InvalidKey(t *testing.T) {
	if _, err := NewBox("short"); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
