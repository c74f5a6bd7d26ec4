package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product in a user's cart. PriceAtAddition is the product
// price captured when the line was first created and is never refreshed.
type CartLine struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtAddition decimal.Decimal `json:"price_at_addition"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Product         *Product        `json:"product,omitempty"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.PriceAtAddition.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CartSummary struct {
	ItemCount     int    `json:"itemCount"`
	TotalQuantity int    `json:"totalQuantity"`
	Total         string `json:"total"`
}

// CartTotal sums quantity × price snapshot over lines.
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func Summarize(lines []CartLine) CartSummary {
	summary := CartSummary{ItemCount: len(lines)}
	for _, l := range lines {
		summary.TotalQuantity += l.Quantity
	}
	summary.Total = CartTotal(lines).StringFixed(2)
	return summary
}
