package crypto

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestIdentityBech32RoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id := key.Identity()
	encoded := id.String()
	if !strings.HasPrefix(encoded, IdentityPrefix+"1") {
		t.Fatalf("unexpected prefix: %s", encoded)
	}
	decoded, err := ParseIdentity(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if decoded != id {
		t.Fatalf("round trip mismatch")
	}
	fromHex, err := ParseIdentity("0x" + id.Hex())
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if fromHex != id {
		t.Fatalf("hex parse mismatch")
	}
}

func TestParseIdentityRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "invalid", "0x1234", "0xzz"}
	for _, raw := range cases {
		if _, err := ParseIdentity(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestIdentityJSONUsesBech32(t *testing.T) {
	key, err := PrivateKeyFromSeed(make([]byte, 32))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	payload := struct {
		Owner Identity `json:"owner"`
	}{Owner: key.Identity()}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"stead1`) {
		t.Fatalf("expected bech32 identity in %s", data)
	}
	var decoded struct {
		Owner Identity `json:"owner"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Owner != payload.Owner {
		t.Fatalf("identity changed across json")
	}
}

func TestPrivateKeySeedRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromSeed(key.Seed())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Identity() != key.Identity() {
		t.Fatalf("seed round trip changed identity")
	}
}
