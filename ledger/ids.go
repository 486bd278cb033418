package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIER GENERATION
// =============================================================================

// Invoice and request ids keep the operator-facing second-granularity
// timestamp, with a random suffix so two ids minted in the same second
// never collide.

const idTimeLayout = "20060102150405"

// NewInvoiceID returns an id like INV-20250701143000-9f3a2b1c.
func NewInvoiceID(at time.Time) string {
	return stampedID("INV", at)
}

// NewRequestID returns an id like REQ-20250701143000-9f3a2b1c.
func NewRequestID(at time.Time) string {
	return stampedID("REQ", at)
}

func stampedID(prefix string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format(idTimeLayout), suffix)
}
