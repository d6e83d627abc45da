package variant

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for a dict of options:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//
// Two dicts that are Equal always produce identical bytes.
func MarshalCanonical(d Dict) ([]byte, error) {
	return marshalDict(d, marshalCanonicalString)
}

// Hash returns the hex SHA-256 of the canonical encoding of d.
// Used to group stored runs that share an option set.
func Hash(d Dict) (string, error) {
	b, err := MarshalCanonical(d)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// marshalCanonicalString produces a JSON string with NFC normalization and
// without HTML escaping.
func marshalCanonicalString(x any) ([]byte, error) {
	s, _ := x.(string)
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
