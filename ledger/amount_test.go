package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/storefront/ledger"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		minor    int64
		currency string
		exponent int32
		want     string
	}{
		{"zero exponent", 5000, "IQD", 0, "5,000 IQD"},
		{"small amount", 500, "IQD", 0, "500 IQD"},
		{"millions", 1234567, "IQD", 0, "1,234,567 IQD"},
		{"cents", 123456, "USD", 2, "1,234.56 USD"},
		{"sub-unit only", 99, "USD", 2, "0.99 USD"},
		{"negative", -5000, "IQD", 0, "-5,000 IQD"},
		{"no currency", 1000, "", 0, "1,000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.FormatAmount(tt.minor, tt.currency, tt.exponent))
		})
	}
}

func TestStampedIDs(t *testing.T) {
	// GIVEN: A fixed timestamp
	// WHEN: Minting invoice and request ids
	// THEN: The prefix and second-granularity stamp are stable, the random
	//       suffix makes same-second ids distinct

	at := time.Date(2025, time.July, 1, 14, 30, 0, 0, time.UTC)

	inv := ledger.NewInvoiceID(at)
	req := ledger.NewRequestID(at)

	assert.Regexp(t, `^INV-20250701143000-[0-9a-f]{8}$`, inv)
	assert.Regexp(t, `^REQ-20250701143000-[0-9a-f]{8}$`, req)

	assert.NotEqual(t, ledger.NewInvoiceID(at), ledger.NewInvoiceID(at))
}
