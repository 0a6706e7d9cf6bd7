package signature

import "testing"

func TestRoundTrip(t *testing.T) {
	algs := []Algorithm{MD5, SHA1, SHA224, SHA256, SHA384, SHA512, RIPEMD160}
	data := []byte("data")
	key := []byte("key")

	for _, alg := range algs {
		created, err := Create(alg, data, key)
		if err != nil {
			t.Fatalf("Create(%s): %v", alg, err)
		}

		parsed, err := Parse(created.String())
		if err != nil {
			t.Fatalf("Parse(%s): %v", alg, err)
		}
		if parsed != created {
			t.Fatalf("round trip mismatch for %s: got %+v, want %+v", alg, parsed, created)
		}

		if !Verify(created, data, key) {
			t.Fatalf("Verify should succeed for freshly created signature (%s)", alg)
		}
	}
}

func TestCreateKnownVector(t *testing.T) {
	// echo -n "data" | openssl dgst -sha1 -hmac "key"
	sig, err := Create(SHA1, []byte("data"), []byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	want := "104152c5bfdca07bc633eebd46199f0255c9f49d"
	if sig.HexDigest != want {
		t.Fatalf("got %s, want %s", sig.HexDigest, want)
	}
}

func TestParseBadFormat(t *testing.T) {
	cases := []string{"", "sha1", "sha1=", "=deadbeef", "sha1:deadbeef"}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Fatalf("Parse(%q) should fail", c)
		} else if _, ok := err.(*BadFormatError); !ok {
			t.Fatalf("Parse(%q) should return BadFormatError, got %T", c, err)
		}
	}
}

func TestParseUnknownAlgorithm(t *testing.T) {
	_, err := Parse("sha3000=deadbeef")
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*UnknownAlgorithmError); !ok {
		t.Fatalf("expected UnknownAlgorithmError, got %T", err)
	}
}

func TestVerifyMismatch(t *testing.T) {
	sig, _ := Create(SHA256, []byte("data"), []byte("key"))
	sig.HexDigest = "00" + sig.HexDigest[2:]
	if Verify(sig, []byte("data"), []byte("key")) {
		t.Fatal("Verify should fail for tampered digest")
	}
}

func TestParseNormalizesHexCase(t *testing.T) {
	sig, err := Parse("sha256=ABCDEF0123456789")
	if err != nil {
		t.Fatal(err)
	}
	if sig.HexDigest != "abcdef0123456789" {
		t.Fatalf("expected lowercase hex, got %s", sig.HexDigest)
	}
}
