package domain

import (
	"fmt"
	"strings"
)

// keySeparator joins the identity fields in the persisted key form. The unit
// separator cannot appear in valid identity fields (Job.Validate rejects it),
// so distinct tuples always render to distinct strings.
const keySeparator = "\x1f"

// RoundKey is the identity tuple of one logical unit of work. Two requests
// carrying the same tuple represent the same intent.
type RoundKey struct {
	Email string
	Task  string
	Round int
	Nonce string
}

// String renders the stable persisted form used as the ledger primary key.
func (k RoundKey) String() string {
	return strings.Join([]string{k.Email, k.Task, fmt.Sprintf("round%d", k.Round), fmt.Sprintf("nonce%s", k.Nonce)}, keySeparator)
}
