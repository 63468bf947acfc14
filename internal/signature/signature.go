// Package signature authenticates requests coming from registered services.
//
// Every comment operation carries a signature computed by the caller as the
// lowercase hex HMAC-SHA1 of a canonical message, keyed by the token the
// service received on registration. The server recomputes the HMAC with the
// stored token and compares the two in constant time.
package signature

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is the wire contract with client services
	"encoding/hex"
)

// Message builds the canonical string that is signed for an operation on the
// comments attached to (serviceID, dataType, itemID). The same message is used
// for create, list, update and delete.
func Message(serviceID, dataType, itemID string) string {
	return serviceID + dataType + itemID
}

// Sign returns the lowercase hex HMAC-SHA1 of message keyed by secret.
func Sign(secret, message string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether candidate is the signature of message under secret.
// The comparison is exact: only the lowercase hex form produced by Sign matches.
func Verify(secret, message, candidate string) bool {
	if candidate == "" || secret == "" {
		return false
	}
	expected := Sign(secret, message)
	return hmac.Equal([]byte(expected), []byte(candidate))
}
