package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random identifier such as "sale-1f0c...". An empty prefix yields
// the bare 32-character hex form.
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
