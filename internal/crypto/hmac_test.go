package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func TestL2HeadersDeterministic(t *testing.T) {
	secret := base64.URLEncoding.EncodeToString([]byte("super-secret-key??>>"))
	auth := &HMACAuth{Key: "key-1", Secret: secret, Passphrase: "pass"}

	body := `{"order":{}}`
	h1 := auth.L2HeadersAt("0xabc", "POST", "/order", body, 1_700_000_000)
	h2 := auth.L2HeadersAt("0xabc", "POST", "/order", body, 1_700_000_000)
	if h1[HeaderSignature] != h2[HeaderSignature] {
		t.Fatal("same input produced different signatures")
	}

	mac := hmac.New(sha256.New, []byte("super-secret-key??>>"))
	mac.Write([]byte("1700000000" + "POST" + "/order" + body))
	want := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	if h1[HeaderSignature] != want {
		t.Fatalf("signature = %s, want %s", h1[HeaderSignature], want)
	}

	if h1[HeaderAddress] != "0xabc" || h1[HeaderAPIKey] != "key-1" ||
		h1[HeaderPassphrase] != "pass" || h1[HeaderTimestamp] != "1700000000" {
		t.Fatalf("unexpected headers: %v", h1)
	}

	h3 := auth.L2HeadersAt("0xabc", "POST", "/order", body, 1_700_000_001)
	if h3[HeaderSignature] == h1[HeaderSignature] {
		t.Fatal("timestamp does not affect signature")
	}
}

func TestDecodeSecretAcceptsStdEncoding(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xfe, 0x01}
	std := base64.StdEncoding.EncodeToString(raw) // contains '+' and '/'
	if !strings.ContainsAny(std, "+/") {
		t.Fatalf("fixture %q is not std-only", std)
	}
	if got := decodeSecret(std); string(got) != string(raw) {
		t.Fatalf("decodeSecret(%q) = %x, want %x", std, got, raw)
	}
	url := base64.URLEncoding.EncodeToString(raw)
	if got := decodeSecret(url); string(got) != string(raw) {
		t.Fatalf("decodeSecret(%q) = %x, want %x", url, got, raw)
	}
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "abcdefgh", Secret: "secretvalue"}
	s := auth.String()
	if strings.Contains(s, "efgh") || strings.Contains(s, "value") {
		t.Fatalf("String leaks credentials: %s", s)
	}
}
