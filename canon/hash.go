package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns the lowercase hex SHA-256 digest of v's canonical encoding.
func Hash(v Value) (string, error) {
	b, err := v.Encode()
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes hashes already-canonical bytes directly; used when the caller
// built its own normalized struct (e.g. a save payload) and marshaled it with
// encoding/json, which already sorts map keys and emits round-trippable
// floats. Plain float64 struct fields are not written the way Value.Encode
// writes them (encoding/json renders 2.0 as "2", with no ".0" tag); Value
// fields inside the struct still go through Value.Encode.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashJSON marshals v with the standard library encoder (stable for struct
// values: field order is declaration order, map keys are sorted, floats are
// shortest round-trip) and hashes the result. Use this for concrete Go
// structs; use Hash for the opaque Value tree.
func HashJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// EncodeJSON is the struct-oriented counterpart of Value.Encode: it returns
// the same canonical bytes HashJSON hashes, for callers (like the save
// format) that need the bytes themselves, not just the digest.
func EncodeJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
