package engine_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/condo-ledger/engine"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2024-01", "2024-01", false},
		{"1999-12", "1999-12", false},
		{"2024-13", "", true},
		{"2024-1", "", true},
		{"24-01", "", true},
		{"2024/01", "", true},
		{"", "", true},
		{"PREV-DEBT", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := engine.ParseMonth(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, engine.ErrInvalidMonth))
				assert.True(t, engine.IsClientError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.String())
		})
	}
}

func TestMonth_Arithmetic(t *testing.T) {
	assert.Equal(t, "2025-01", month("2024-12").Next().String())
	assert.Equal(t, "2023-12", month("2024-01").Prev().String())
	assert.Equal(t, "2025-03", month("2024-03").AddMonths(12).String())
	assert.Equal(t, engine.NewMonth(2025, time.January), engine.NewMonth(2024, 13))

	assert.Equal(t, 12, engine.MonthsBetween(month("2024-01"), month("2024-12")))
	assert.Equal(t, 1, engine.MonthsBetween(month("2024-05"), month("2024-05")))
	assert.Equal(t, 0, engine.MonthsBetween(month("2024-05"), month("2024-04")))

	assert.Len(t, engine.MonthsThrough(2024, time.March), 3)
	assert.Len(t, engine.MonthsOfYear(2024), 12)
}

func TestRange_Contains(t *testing.T) {
	closed := engine.ClosedRange(month("2024-01"), month("2024-05"))
	assert.True(t, closed.Contains(month("2024-01")))
	assert.True(t, closed.Contains(month("2024-05")))
	assert.False(t, closed.Contains(month("2024-06")))
	assert.False(t, closed.Contains(month("2023-12")))

	open := engine.OpenRange(month("2024-06"))
	assert.True(t, open.Contains(month("2099-01")))
	assert.False(t, open.Contains(month("2024-05")))

	backwards := engine.ClosedRange(month("2024-05"), month("2024-01"))
	assert.False(t, backwards.Valid())
	assert.False(t, backwards.Contains(month("2024-03")))
}

func TestTarget_PrevDebtNeverMatchesAMonth(t *testing.T) {
	prev, err := engine.ParseTarget("PREV-DEBT")
	require.NoError(t, err)
	assert.True(t, prev.IsPrevDebt())
	_, ok := prev.Month()
	assert.False(t, ok)
	assert.False(t, prev.Is(month("2024-01")))

	jan, err := engine.ParseTarget("2024-01")
	require.NoError(t, err)
	assert.True(t, jan.Is(month("2024-01")))
}

func TestMonthAndTarget_JSON(t *testing.T) {
	type row struct {
		Month  engine.Month  `json:"month"`
		Target engine.Target `json:"target"`
	}
	in := row{Month: month("2024-03"), Target: engine.PrevDebtTarget()}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"month":"2024-03","target":"PREV-DEBT"}`, string(b))

	var out row
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)

	err = json.Unmarshal([]byte(`{"month":"March","target":"2024-01"}`), &out)
	assert.True(t, errors.Is(err, engine.ErrInvalidMonth))
}
