package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

const testIterations = 1000

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKey, "hunter2", testIterations)
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testKey {
		t.Fatalf("decrypted %s, want %s", got, testKey)
	}

	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatal("expected failure with wrong password")
	}
}

func TestEncryptKeyValidatesInput(t *testing.T) {
	if _, err := EncryptKey(testKey, "", testIterations); err == nil {
		t.Error("expected error for empty password")
	}
	if _, err := EncryptKey("abcd", "pw", testIterations); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := EncryptKey("zz", "pw", testIterations); err == nil {
		t.Error("expected error for non-hex key")
	}
}

func TestLoadKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key.json")
	if err := WriteKeyFile(path, testKey, "pw", testIterations); err != nil {
		t.Fatalf("WriteKeyFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key file mode = %o, want 600", info.Mode().Perm())
	}
	if err := WriteKeyFile(path, testKey, "pw", testIterations); err == nil {
		t.Error("expected WriteKeyFile to refuse overwriting")
	}

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil || got != testKey {
		t.Fatalf("LoadKey(file) = %q, %v", got, err)
	}

	raw, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKey, EncryptedKeyPath: path})
	if err != nil || raw != testKey {
		t.Fatalf("LoadKey(raw) = %q, %v", raw, err)
	}

	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Fatal("expected error with no key source")
	}
}
