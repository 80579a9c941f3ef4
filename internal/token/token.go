// Package token derives the access tokens that address proxied files.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Length is the size of a derived token in hex characters.
const Length = sha256.Size * 2

// separator joins the digest inputs. Changing it changes every token ever issued.
const separator = "_"

// Derive returns the access token for a file owned by ownerID.
// The digest input is contentRef_ownerID_secret; the result is lowercase hex.
func Derive(contentRef string, ownerID int64, secret string) string {
	h := sha256.New()
	h.Write([]byte(contentRef))
	h.Write([]byte(separator))
	h.Write([]byte(strconv.FormatInt(ownerID, 10)))
	h.Write([]byte(separator))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// Valid reports whether s has the shape of a derived token.
// It says nothing about whether the token was ever issued.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
