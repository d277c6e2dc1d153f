// Package fingerprint derives a stable pool key from a compile option map.
package fingerprint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/defdo-dev/tailwindport/internal/option"
)

// Digest is a 32-byte (256-bit) fingerprint.
type Digest [sha256.Size]byte

// String renders the digest as lowercase hex, suitable for use in
// filenames (WorkPaths) and log fields.
func (d Digest) String() string {
	return fmt.Sprintf("%x", [sha256.Size]byte(d))
}

// Compute canonicalizes opts (drops null entries, sorts by key) and hashes
// the result. Content is never part of the option map passed here — the
// caller is responsible for excluding the markup payload from opts before
// calling Compute (spec.md §3: "content is never part of the fingerprint").
//
// Two option maps that are equal after canonicalization always produce the
// same digest; serialization is deterministic across runs on the same host
// because only sorted keys and directly JSON-encodable values are used.
func Compute(opts option.Options) (Digest, error) {
	canon := option.Canonicalize(opts)
	keys := option.SortedKeys(canon)

	// Serialize as an ordered list of [key, value] pairs rather than a Go
	// map (whose JSON key order is already sorted by encoding/json, but we
	// make the ordering explicit and independent of that implementation
	// detail).
	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, canon[k])
	}

	b, err := json.Marshal(ordered)
	if err != nil {
		return Digest{}, fmt.Errorf("fingerprint: marshal canonical options: %w", err)
	}

	return Digest(sha256.Sum256(b)), nil
}
