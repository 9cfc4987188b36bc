package quantity

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"dot decimal", "12.3456", "12.346"},
		{"comma decimal", "12,5", "12.5"},
		{"integer", 50, "50"},
		{"float", 45.0, "45"},
		{"garbage", "abc", "0"},
		{"empty", "", "0"},
		{"nil", nil, "0"},
		{"numeric prefix", "7kg", "7"},
		{"negative", "-3.2", "-3.2"},
		{"nan", math.NaN(), "0"},
		{"exponent", "1e3", "1000"},
		{"raw", Raw("2,0004"), "2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			require.True(t, decimal.RequireFromString(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestNormalizeMoney(t *testing.T) {
	require.True(t, decimal.RequireFromString("2.50").Equal(NormalizeMoney("2,499")))
	require.True(t, decimal.RequireFromString("10.01").Equal(NormalizeMoney(10.005)))
	require.True(t, decimal.Zero.Equal(NormalizeMoney("n/a")))
}

func TestOptionalMoney(t *testing.T) {
	require.False(t, OptionalMoney("").Valid)
	require.False(t, OptionalMoney(nil).Valid)
	require.False(t, OptionalMoney(Raw(" ")).Valid)

	price := OptionalMoney("3,456")
	require.True(t, price.Valid)
	require.True(t, decimal.RequireFromString("3.46").Equal(price.Decimal))
}

func TestFormat(t *testing.T) {
	require.Equal(t, "50.000", FormatQuantity(decimal.NewFromInt(50)))
	require.Equal(t, "5.000", FormatQuantity(decimal.RequireFromString("5")))
	require.Equal(t, "1,234.500", FormatQuantity(decimal.RequireFromString("1234.5")))
	require.Equal(t, "2.50", FormatMoney(decimal.NewNullDecimal(decimal.RequireFromString("2.5"))))
	require.Equal(t, "", FormatMoney(decimal.NullDecimal{}))

	require.NotEmpty(t, NewFormatter(language.German).FormatQuantity(decimal.NewFromInt(3)))
}

func TestRawUnmarshal(t *testing.T) {
	var body struct {
		A Raw `json:"a"`
		B Raw `json:"b"`
		C Raw `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12.5, "b": "3,2", "c": null}`), &body))
	require.Equal(t, Raw("12.5"), body.A)
	require.Equal(t, Raw("3,2"), body.B)
	require.True(t, body.C.IsEmpty())
}
