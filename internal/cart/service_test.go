package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/templstore/storefront/internal/coupon"
	"github.com/templstore/storefront/internal/lock"
)

func newService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Service{
		R:      client,
		Locker: lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond},
		TTL:    time.Hour,
	}, mr
}

func TestCreateAndGet(t *testing.T) {
	s, mr := newService(t)
	ctx := context.Background()

	c, err := s.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)
	require.Empty(t, c.Lines)
	require.True(t, mr.Exists("cart:"+c.ID))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)
}

func TestGetMissing(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	c, err := s.Create(ctx)
	require.NoError(t, err)

	line := Line{TemplateID: "tpl-1", Title: "Landing", UnitPrice: 11800, Qty: 1}
	c, err = s.AddItem(ctx, c.ID, line)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)

	c, err = s.AddItem(ctx, c.ID, line)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	require.Equal(t, 2, c.Lines[0].Qty)
}

func TestSetQtyMutatesLineDirectly(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	c, _ := s.Create(ctx)
	_, err := s.AddItem(ctx, c.ID, Line{TemplateID: "tpl-1", Title: "Landing", UnitPrice: 11800, Qty: 1})
	require.NoError(t, err)

	got, err := s.SetQty(ctx, c.ID, "tpl-1", 5)
	require.NoError(t, err)
	require.Equal(t, 5, got.Lines[0].Qty)

	_, err = s.SetQty(ctx, c.ID, "absent", 2)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.SetQty(ctx, c.ID, "tpl-1", 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRemoveItem(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	c, _ := s.Create(ctx)
	_, err := s.AddItem(ctx, c.ID, Line{TemplateID: "tpl-1", UnitPrice: 1000, Qty: 1})
	require.NoError(t, err)

	got, err := s.RemoveItem(ctx, c.ID, "tpl-1")
	require.NoError(t, err)
	require.Empty(t, got.Lines)

	_, err = s.RemoveItem(ctx, c.ID, "tpl-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApplyCouponRules(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	c, _ := s.Create(ctx)

	_, err := s.ApplyCoupon(ctx, c.ID, "bogus")
	require.True(t, errors.Is(err, coupon.ErrInvalidCoupon))

	got, err := s.ApplyCoupon(ctx, c.ID, "WELCOME10")
	require.NoError(t, err)
	require.Equal(t, "welcome10", got.Coupon)

	// A second, different coupon is rejected while one is active.
	_, err = s.ApplyCoupon(ctx, c.ID, "summer20")
	require.ErrorIs(t, err, ErrCouponActive)

	// Reapplying the same code is a no-op.
	got, err = s.ApplyCoupon(ctx, c.ID, "welcome10")
	require.NoError(t, err)
	require.Equal(t, "welcome10", got.Coupon)
}

func TestRemoveCouponIdempotent(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	c, _ := s.Create(ctx)
	_, err := s.ApplyCoupon(ctx, c.ID, "summer20")
	require.NoError(t, err)

	got, err := s.RemoveCoupon(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, got.Coupon)

	got, err = s.RemoveCoupon(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, got.Coupon)
}

func TestSummaryWithCoupon(t *testing.T) {
	c := Cart{
		ID:     "c1",
		Lines:  []Line{{TemplateID: "tpl-1", UnitPrice: 11800, Qty: 1}},
		Coupon: "welcome10",
	}
	b := Summary(c, 1800)
	require.EqualValues(t, 11800, b.TotalIncTax)
	require.EqualValues(t, 10000, b.Base)
	require.EqualValues(t, 1000, b.Discount)
	require.EqualValues(t, 1620, b.Tax)
	require.EqualValues(t, 10620, b.Total)
	require.EqualValues(t, 1180, b.Savings)
}

// The whole coupon journey against a live service: every mutation below runs
// without metrics registered, as test binaries do.
func TestCouponFlowBreakdown(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	c, err := s.Create(ctx)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, c.ID, Line{TemplateID: "tpl-1", Title: "Landing", UnitPrice: 11800, Qty: 1})
	require.NoError(t, err)

	_, err = s.ApplyCoupon(ctx, c.ID, "not-a-code")
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)

	got, err := s.ApplyCoupon(ctx, c.ID, "welcome10")
	require.NoError(t, err)
	b := Summary(got, 1800)
	require.EqualValues(t, 10000, b.Base)
	require.EqualValues(t, 1000, b.Discount)
	require.EqualValues(t, 1620, b.Tax)
	require.EqualValues(t, 10620, b.Total)
	require.EqualValues(t, 1180, b.Savings)

	_, err = s.RemoveCoupon(ctx, c.ID)
	require.NoError(t, err)
	got, err = s.ApplyCoupon(ctx, c.ID, "summer20")
	require.NoError(t, err)
	b = Summary(got, 1800)
	require.EqualValues(t, 2000, b.Discount)
	require.EqualValues(t, 1440, b.Tax)
	require.EqualValues(t, 9440, b.Total)
	require.EqualValues(t, 2360, b.Savings)
}

func TestSummaryEmptyCart(t *testing.T) {
	b := Summary(Cart{ID: "c1"}, 1800)
	require.Zero(t, b.Total)
	require.Zero(t, b.Tax)
	require.Zero(t, b.Savings)
}

func TestClearDropsLinesAndCoupon(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	c, _ := s.Create(ctx)
	_, err := s.AddItem(ctx, c.ID, Line{TemplateID: "tpl-1", UnitPrice: 500, Qty: 2})
	require.NoError(t, err)
	_, err = s.ApplyCoupon(ctx, c.ID, "firstorder")
	require.NoError(t, err)

	got, err := s.Clear(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, got.Lines)
	require.Empty(t, got.Coupon)
}
