package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/templstore/storefront/internal/coupon"
	"github.com/templstore/storefront/internal/lock"
	"github.com/templstore/storefront/internal/obs"
	"github.com/templstore/storefront/internal/pricing"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrCouponActive is returned when a coupon is applied while another is live.
var ErrCouponActive = errors.New("a coupon is already applied")

// Line is a cart entry for one template. Templates are digital goods, so
// lines are keyed by template id and quantity is mutated in place.
type Line struct {
	TemplateID string        `json:"templateId"`
	Title      string        `json:"title"`
	UnitPrice  pricing.Money `json:"unitPrice"`
	Qty        int           `json:"qty"`
}

// Cart is the stored state of a shopping cart.
type Cart struct {
	ID     string `json:"id"`
	Lines  []Line `json:"lines"`
	Coupon string `json:"coupon,omitempty"`
}

// Service owns cart documents in Redis. Each cart lives under cart:<id> as a
// JSON blob with a sliding TTL; mutations are serialised by a per-cart lock.
type Service struct {
	R      *redis.Client
	Locker lock.Locker
	TTL    time.Duration
	Now    func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func cartKey(id string) string { return "cart:" + id }
func lockKey(id string) string { return "cartlock:" + id }

// Create allocates an empty cart.
func (s *Service) Create(ctx context.Context) (Cart, error) {
	if s == nil || s.R == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	c := Cart{ID: uuid.NewString(), Lines: []Line{}}
	if err := s.save(ctx, c); err != nil {
		return Cart{}, err
	}
	if obs.CartOpsTotal != nil {
		obs.CartOpsTotal.WithLabelValues("create", "ok").Inc()
	}
	return c, nil
}

// Get loads a cart and refreshes its TTL.
func (s *Service) Get(ctx context.Context, id string) (Cart, error) {
	if s == nil || s.R == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	if id == "" {
		return Cart{}, ErrNotFound
	}
	raw, err := s.R.Get(ctx, cartKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, err
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	_ = s.R.Expire(ctx, cartKey(id), s.ttl()).Err()
	return c, nil
}

// AddItem adds a template to the cart or increments its quantity when the
// template is already present.
func (s *Service) AddItem(ctx context.Context, id string, line Line) (Cart, error) {
	if line.TemplateID == "" || line.Qty <= 0 || line.UnitPrice < 0 {
		return Cart{}, fmt.Errorf("template id and positive qty required: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, id, "add_item", func(c *Cart) error {
		for i := range c.Lines {
			if c.Lines[i].TemplateID == line.TemplateID {
				c.Lines[i].Qty += line.Qty
				return nil
			}
		}
		c.Lines = append(c.Lines, line)
		return nil
	})
}

// SetQty sets the quantity for an existing line directly.
func (s *Service) SetQty(ctx context.Context, id, templateID string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, id, "set_qty", func(c *Cart) error {
		for i := range c.Lines {
			if c.Lines[i].TemplateID == templateID {
				c.Lines[i].Qty = qty
				return nil
			}
		}
		return ErrNotFound
	})
}

// RemoveItem drops a line from the cart. Removing an absent line is an error.
func (s *Service) RemoveItem(ctx context.Context, id, templateID string) (Cart, error) {
	return s.mutate(ctx, id, "remove_item", func(c *Cart) error {
		for i := range c.Lines {
			if c.Lines[i].TemplateID == templateID {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

// Clear removes all lines and any applied coupon.
func (s *Service) Clear(ctx context.Context, id string) (Cart, error) {
	return s.mutate(ctx, id, "clear", func(c *Cart) error {
		c.Lines = []Line{}
		c.Coupon = ""
		return nil
	})
}

// ApplyCoupon attaches a coupon. Only one may be active; applying over a live
// coupon is rejected until it is removed.
func (s *Service) ApplyCoupon(ctx context.Context, id, code string) (Cart, error) {
	resolved, err := coupon.Resolve(code)
	if err != nil {
		if obs.CouponApplyTotal != nil {
			obs.CouponApplyTotal.WithLabelValues(code, "invalid").Inc()
		}
		return Cart{}, err
	}
	c, err := s.mutate(ctx, id, "apply_coupon", func(c *Cart) error {
		if c.Coupon != "" && c.Coupon != resolved.Code {
			return ErrCouponActive
		}
		c.Coupon = resolved.Code
		return nil
	})
	if err != nil {
		if obs.CouponApplyTotal != nil {
			obs.CouponApplyTotal.WithLabelValues(resolved.Code, "rejected").Inc()
		}
		return Cart{}, err
	}
	if obs.CouponApplyTotal != nil {
		obs.CouponApplyTotal.WithLabelValues(resolved.Code, "ok").Inc()
	}
	return c, nil
}

// RemoveCoupon clears the applied coupon. Removing when none is applied is a
// no-op.
func (s *Service) RemoveCoupon(ctx context.Context, id string) (Cart, error) {
	return s.mutate(ctx, id, "remove_coupon", func(c *Cart) error {
		c.Coupon = ""
		return nil
	})
}

// Summary computes the pricing breakdown for the cart at the given tax rate.
// The discount is re-derived from the applied coupon on every call.
func Summary(c Cart, taxBps int) pricing.Breakdown {
	items := make([]pricing.Item, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, pricing.Item{Qty: l.Qty, UnitPrice: l.UnitPrice})
	}
	var discount pricing.Money
	if c.Coupon != "" {
		if cp, err := coupon.Resolve(c.Coupon); err == nil {
			var total pricing.Money
			for _, it := range items {
				total += pricing.Money(it.Qty) * it.UnitPrice
			}
			discount = cp.DiscountOn(pricing.ExtractBase(total, taxBps))
		}
	}
	return pricing.Compute(items, discount, taxBps)
}

func (s *Service) mutate(ctx context.Context, id, op string, fn func(*Cart) error) (Cart, error) {
	if s == nil || s.R == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	if id == "" {
		return Cart{}, ErrNotFound
	}
	var out Cart
	err := s.Locker.WithLock(ctx, lockKey(id), 10*time.Second, func(ctx context.Context) error {
		c, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		out = c
		return s.save(ctx, c)
	})
	if err != nil {
		if obs.CartOpsTotal != nil {
			obs.CartOpsTotal.WithLabelValues(op, "error").Inc()
		}
		return Cart{}, err
	}
	if obs.CartOpsTotal != nil {
		obs.CartOpsTotal.WithLabelValues(op, "ok").Inc()
	}
	return out, nil
}

func (s *Service) save(ctx context.Context, c Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, cartKey(c.ID), raw, s.ttl()).Err()
}
