package flow

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// SignatureParam is the parameter name Flow uses to carry the signature.
const SignatureParam = "s"

// Canonicalize renders params as key=value pairs sorted by key and joined by '&'.
// The signature parameter itself is never part of the canonical string.
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SignatureParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Sign returns the hex encoded HMAC-SHA256 of the canonical form of params.
func Sign(params map[string]string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Canonicalize(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches params under secret.
// The comparison is constant time and case sensitive.
func Verify(params map[string]string, signature, secret string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(params, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
