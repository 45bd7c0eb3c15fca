package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAmount(t *testing.T) {
	prev := *currency
	t.Cleanup(func() { *currency = prev })

	*currency = "USD"
	assert.Contains(t, amount(decimal.RequireFromString("1234.5")), "1,234.50")

	// rounds to the currency's minor unit
	assert.Contains(t, amount(decimal.RequireFromString("0.005")), "0.01")

	*currency = "XXX-not-a-currency"
	assert.Equal(t, "12.30", amount(decimal.RequireFromString("12.3")))
}

func TestMonthFlag(t *testing.T) {
	m, err := monthFlag("2024-06")
	assert.NoError(t, err)
	assert.Equal(t, "2024-06", m.String())

	_, err = monthFlag("June")
	assert.Error(t, err)

	m, err = monthFlag("")
	assert.NoError(t, err)
	assert.False(t, m.IsZero())
}
