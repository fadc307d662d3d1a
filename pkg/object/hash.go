package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashBytes hashes raw content with SHA-256 and returns the lowercase hex
// digest.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject hashes an object the way the store addresses it: SHA-256 over
// the "type length\x00content" envelope.
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha256.New()
	fmt.Fprintf(h, "%s %d\x00", objType, len(data))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}
