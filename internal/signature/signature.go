// Package signature implements the HMAC wire format hookshot uses to
// authenticate webhooks on the way in (X-Signature / X-Hub-Signature)
// and to sign notifications on the way out
// (X-Hookshot-Signature). Both share the same "<algorithm>=<hexdigest>"
// form, so one type covers both directions.
package signature

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"regexp"
	"strings"

	"golang.org/x/crypto/ripemd160"
)

// Algorithm identifies a supported HMAC hash function.
type Algorithm string

const (
	MD5       Algorithm = "md5"
	SHA1      Algorithm = "sha1"
	SHA224    Algorithm = "sha224"
	SHA256    Algorithm = "sha256"
	SHA384    Algorithm = "sha384"
	SHA512    Algorithm = "sha512"
	RIPEMD160 Algorithm = "ripemd160"
)

var hashConstructors = map[Algorithm]func() hash.Hash{
	MD5:       md5.New,
	SHA1:      sha1.New,
	SHA224:    sha256.New224,
	SHA256:    sha256.New,
	SHA384:    sha512.New384,
	SHA512:    sha512.New,
	RIPEMD160: ripemd160.New,
}

// BadFormatError is returned when a signature string doesn't match
// "<token>=<hexdigits>".
type BadFormatError struct{ Text string }

func (e *BadFormatError) Error() string {
	return fmt.Sprintf("signature: bad format: %q", e.Text)
}

// UnknownAlgorithmError is returned when the algorithm token doesn't
// name a supported hash function.
type UnknownAlgorithmError struct{ Token string }

func (e *UnknownAlgorithmError) Error() string {
	return fmt.Sprintf("signature: unknown algorithm: %q", e.Token)
}

// Signature is a parsed or computed HMAC digest.
type Signature struct {
	Algorithm Algorithm
	HexDigest string
}

var wireFormat = regexp.MustCompile(`^([A-Za-z0-9_]+)=([0-9a-fA-F]+)$`)

// Parse decodes the canonical "<algorithm>=<hexdigest>" wire form.
func Parse(text string) (Signature, error) {
	matches := wireFormat.FindStringSubmatch(text)
	if matches == nil {
		return Signature{}, &BadFormatError{Text: text}
	}
	alg := Algorithm(strings.ToLower(matches[1]))
	if _, ok := hashConstructors[alg]; !ok {
		return Signature{}, &UnknownAlgorithmError{Token: matches[1]}
	}
	return Signature{Algorithm: alg, HexDigest: strings.ToLower(matches[2])}, nil
}

// Create computes HMAC(alg, key, data) and hex-encodes the digest.
func Create(alg Algorithm, data, key []byte) (Signature, error) {
	newHash, ok := hashConstructors[alg]
	if !ok {
		return Signature{}, &UnknownAlgorithmError{Token: string(alg)}
	}
	mac := hmac.New(newHash, key)
	mac.Write(data)
	return Signature{
		Algorithm: alg,
		HexDigest: hex.EncodeToString(mac.Sum(nil)),
	}, nil
}

// String renders the canonical wire form.
func (s Signature) String() string {
	return fmt.Sprintf("%s=%s", s.Algorithm, s.HexDigest)
}

// Verify recomputes the HMAC over data with key using sig's algorithm
// and compares it against sig.HexDigest in constant time.
func Verify(sig Signature, data, key []byte) bool {
	expected, err := Create(sig.Algorithm, data, key)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected.HexDigest), []byte(sig.HexDigest)) == 1
}
