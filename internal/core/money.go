// Package core holds the pure domain: record types, amount arithmetic and
// the ledger aggregation. It performs no I/O.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative monetary quantity. It wraps a decimal so that
// accumulation is exact; the original float-based totals drifted under
// repeated addition. Currency-agnostic at rest, rendered as INR.
type Amount struct {
	dec decimal.Decimal
}

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a decimal string to an Amount. Both dot (12.34) and
// comma (12,34) decimal separators are accepted. Negative values are
// rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{dec: d}, nil
}

func (a Amount) Add(b Amount) Amount { return Amount{dec: a.dec.Add(b.dec)} }

func (a Amount) Equal(b Amount) bool { return a.dec.Equal(b.dec) }

func (a Amount) IsNegative() bool { return a.dec.IsNegative() }

// String returns the plain decimal rendering with no currency symbol and
// no thousands separators ("1500", "250.5"). Free-text search matches
// against exactly this form.
func (a Amount) String() string { return a.dec.String() }

// FormatINR renders the amount for display with the rupee sign and Indian
// digit grouping, rounded to whole rupees ("₹1,50,000").
func (a Amount) FormatINR() string {
	whole := a.dec.Round(0).String()
	neg := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")

	// Indian grouping: rightmost group of three, then groups of two.
	var groups []string
	if len(whole) > 3 {
		groups = append(groups, whole[len(whole)-3:])
		rest := whole[:len(whole)-3]
		for len(rest) > 2 {
			groups = append([]string{rest[len(rest)-2:]}, groups...)
			rest = rest[:len(rest)-2]
		}
		if rest != "" {
			groups = append([]string{rest}, groups...)
		}
	} else {
		groups = []string{whole}
	}

	out := "₹" + strings.Join(groups, ",")
	if neg {
		out = "-" + out
	}
	return out
}

func (a Amount) MarshalJSON() ([]byte, error) { return a.dec.MarshalJSON() }

func (a *Amount) UnmarshalJSON(data []byte) error {
	if err := a.dec.UnmarshalJSON(data); err != nil {
		return ErrInvalidAmount
	}
	return nil
}
