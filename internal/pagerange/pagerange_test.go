package pagerange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/any2any-bot/types"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		count int
		want  types.PageSelection
	}{
		{"mixed", "1,3-5,7", 10, types.PageSelection{1, 3, 4, 5, 7}},
		{"single", "4", 4, types.PageSelection{4}},
		{"whitespace", " 2 , 4 - 6 ", 10, types.PageSelection{2, 4, 5, 6}},
		{"duplicates collapse", "3,1-3,2", 5, types.PageSelection{1, 2, 3}},
		{"unsorted input", "9,2", 10, types.PageSelection{2, 9}},
		{"degenerate range", "5-5", 5, types.PageSelection{5}},
		{"whole document", "1-10", 10, types.PageSelection{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.expr, tt.count)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		count int
	}{
		{"out of range", "1,3-5,7", 5},
		{"reversed range", "5-2", 10},
		{"zero", "0", 10},
		{"negative", "-1", 10},
		{"non numeric", "a", 10},
		{"half range", "3-", 10},
		{"triple range", "1-2-3", 10},
		{"empty expression", "", 10},
		{"empty token", "1,,2", 10},
		{"trailing comma", "1,", 10},
		{"plus sign", "+2", 10},
		{"float", "1.5", 10},
		{"range past end", "8-11", 10},
		{"no pages", "1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.expr, tt.count)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Nil(t, got)
		})
	}
}

func TestParseIsIdempotent(t *testing.T) {
	first, err := Parse("2,4-6", 10)
	require.NoError(t, err)
	second, err := Parse("2,4-6", 10)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "2, 4-6", Format(types.PageSelection{2, 4, 5, 6}))
	assert.Equal(t, "1-3", Format(types.PageSelection{1, 2, 3}))
	assert.Equal(t, "", Format(nil))
}
