package ledger

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTransactionID_Shape(t *testing.T) {
	today := time.Now().UTC().Format("20060102")

	txID := NewTransactionID(PrefixTransaction)
	assert.Regexp(t, regexp.MustCompile(`^TXN\d{14}$`), txID)
	assert.Equal(t, "TXN"+today, txID[:11])

	adjID := NewTransactionID(PrefixAdjustment)
	assert.Regexp(t, regexp.MustCompile(`^ADJ\d{14}$`), adjID)
	assert.Equal(t, "ADJ"+today, adjID[:11])
}

func TestRandomDigits_Width(t *testing.T) {
	for i := 0; i < 50; i++ {
		assert.Len(t, randomDigits(6), 6)
	}
}
