// Package scratch is the staging store for decoded attachments. The
// pipeline writes each attachment here before generation so a later stage
// (or an operator) can recover the exact bytes a round saw.
package scratch

import "context"

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}
