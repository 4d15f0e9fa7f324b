package coupon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveKnownCodes(t *testing.T) {
	cases := map[string]int{
		"welcome10":  1000,
		"firstorder": 1500,
		"summer20":   2000,
	}
	for code, bps := range cases {
		c, err := Resolve(code)
		require.NoError(t, err)
		require.Equal(t, code, c.Code)
		require.Equal(t, bps, c.PercentBps)
	}
}

func TestResolveNormalisesCase(t *testing.T) {
	c, err := Resolve("  WELCOME10 ")
	require.NoError(t, err)
	require.Equal(t, "welcome10", c.Code)
}

func TestResolveUnknownCode(t *testing.T) {
	_, err := Resolve("save99")
	require.True(t, errors.Is(err, ErrInvalidCoupon))
}

func TestDiscountOn(t *testing.T) {
	c, err := Resolve("welcome10")
	require.NoError(t, err)
	require.EqualValues(t, 1000, c.DiscountOn(10000))
	require.EqualValues(t, 0, c.DiscountOn(0))

	s, err := Resolve("summer20")
	require.NoError(t, err)
	require.EqualValues(t, 2000, s.DiscountOn(10000))
}
