// Package requestid issues the correlation ids stamped on intake requests
// and carried into audit events. Ids are random, not sequential, so they
// reveal nothing about request volume.
package requestid

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a 32-character hex id from 16 random bytes.
func New() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
