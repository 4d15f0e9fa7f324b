package coupon

import (
	"errors"
	"strings"

	"github.com/templstore/storefront/internal/pricing"
)

// ErrInvalidCoupon marks an unknown or malformed coupon code.
var ErrInvalidCoupon = errors.New("invalid coupon code")

// Coupon is a percentage discount applied to the pre-tax base of a cart.
type Coupon struct {
	Code       string
	PercentBps int
}

// The catalogue is fixed; codes are matched case-insensitively.
var catalogue = map[string]Coupon{
	"welcome10":  {Code: "welcome10", PercentBps: 1000},
	"firstorder": {Code: "firstorder", PercentBps: 1500},
	"summer20":   {Code: "summer20", PercentBps: 2000},
}

// Resolve looks up a coupon by code. The returned coupon carries the canonical
// lower-case code regardless of the input casing.
func Resolve(code string) (Coupon, error) {
	c, ok := catalogue[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Coupon{}, ErrInvalidCoupon
	}
	return c, nil
}

// DiscountOn computes the absolute discount this coupon grants on a pre-tax
// base amount.
func (c Coupon) DiscountOn(base pricing.Money) pricing.Money {
	if base <= 0 || c.PercentBps <= 0 {
		return 0
	}
	return base * pricing.Money(c.PercentBps) / 10000
}
