package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a line item used for pricing calculation. UnitPrice is the
// listed, tax-inclusive price of one unit.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Breakdown aggregates the computed pricing components for a tax-inclusive
// total. Tax and Total are always derived from the discounted base so the
// reported figures are mutually consistent.
type Breakdown struct {
	TotalIncTax Money
	Base        Money
	Discount    Money
	Tax         Money
	Total       Money
	Savings     Money
}

// ExtractBase strips the tax component from a tax-inclusive amount expressed
// with the given rate in basis points.
func ExtractBase(totalIncTax Money, taxBps int) Money {
	if totalIncTax <= 0 || taxBps < 0 {
		if totalIncTax < 0 {
			return 0
		}
		return totalIncTax
	}
	return totalIncTax * 10000 / (10000 + Money(taxBps))
}

// TaxOn computes the tax due on a pre-tax base amount.
func TaxOn(base Money, taxBps int) Money {
	if base <= 0 || taxBps <= 0 {
		return 0
	}
	return base * Money(taxBps) / 10000
}

// Compute calculates the breakdown for a set of line items and an absolute
// discount taken off the pre-tax base. The discount is clamped to the base so
// the payable total never goes negative. An empty item list yields a zero
// breakdown.
func Compute(items []Item, discount Money, taxBps int) Breakdown {
	var total Money
	for _, it := range items {
		if it.Qty <= 0 || it.UnitPrice <= 0 {
			continue
		}
		total += Money(it.Qty) * it.UnitPrice
	}
	return ComputeAmount(total, discount, taxBps)
}

// ComputeAmount is Compute for a single pre-aggregated tax-inclusive amount.
// Invoices use it with a zero discount.
func ComputeAmount(totalIncTax, discount Money, taxBps int) Breakdown {
	if totalIncTax <= 0 {
		return Breakdown{}
	}
	base := ExtractBase(totalIncTax, taxBps)
	if discount < 0 {
		discount = 0
	}
	if discount > base {
		discount = base
	}
	taxedBase := base - discount
	tax := TaxOn(taxedBase, taxBps)
	payable := taxedBase + tax
	return Breakdown{
		TotalIncTax: totalIncTax,
		Base:        base,
		Discount:    discount,
		Tax:         tax,
		Total:       payable,
		Savings:     totalIncTax - payable,
	}
}
