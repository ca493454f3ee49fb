package usecase

import "foodorder/internal/config"

// 金額計算。すべてセント単位の整数で行う
type Pricing struct {
	DeliveryFeeCents    int64
	TaxRateBps          int64
	TaxIncludesDelivery bool
}

func NewPricing(cfg config.PricingConfig) Pricing {
	return Pricing{
		DeliveryFeeCents:    cfg.DeliveryFeeCents,
		TaxRateBps:          cfg.TaxRateBps,
		TaxIncludesDelivery: cfg.TaxIncludesDelivery,
	}
}

type PriceLine struct {
	UnitPriceCents int64
	Quantity       int64
}

type Quote struct {
	SubtotalCents    int64 `json:"subtotal_cents"`
	DeliveryFeeCents int64 `json:"delivery_fee_cents"`
	TaxCents         int64 `json:"tax_cents"`
	TotalCents       int64 `json:"total_cents"`
}

func (p Pricing) Quote(lines []PriceLine) Quote {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.UnitPriceCents * l.Quantity
	}

	base := subtotal
	if p.TaxIncludesDelivery {
		base += p.DeliveryFeeCents
	}

	q := Quote{
		SubtotalCents:    subtotal,
		DeliveryFeeCents: p.DeliveryFeeCents,
		TaxCents:         roundBps(base, p.TaxRateBps),
	}
	q.TotalCents = q.SubtotalCents + q.DeliveryFeeCents + q.TaxCents
	return q
}

// 四捨五入（0.5セントは切り上げ）
func roundBps(amount int64, bps int64) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*bps + 5000) / 10000
}
