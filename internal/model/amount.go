package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/trustlens/internal/amount"
)

// Amount is a decimal amount kept as its exact string form.
//
// Upstream data sometimes sends numbers instead of strings. Decoding accepts
// both and keeps the literal digits; exponent notation is expanded exactly.
type Amount string

// UnmarshalJSON accepts a JSON string, number or null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = coerceNumber(n.String())
	return nil
}

// CoerceAmount turns a decoded JSON value (string, json.Number, integer) into an
// Amount. Anything else becomes the empty amount.
func CoerceAmount(v any) Amount {
	switch val := v.(type) {
	case string:
		return Amount(strings.TrimSpace(val))
	case json.Number:
		return coerceNumber(val.String())
	case int:
		return Amount(fmt.Sprintf("%d", val))
	case int64:
		return Amount(fmt.Sprintf("%d", val))
	case uint64:
		return Amount(fmt.Sprintf("%d", val))
	default:
		return ""
	}
}

func coerceNumber(lit string) Amount {
	if !strings.ContainsAny(lit, "eE") {
		return Amount(lit)
	}
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return Amount(lit)
	}
	return Amount(d.String())
}

// Atoms converts the amount at precision. Malformed amounts are zero.
func (a Amount) Atoms(precision int) *big.Int {
	return amount.ToAtoms(string(a), precision)
}

// Canonical renders the amount in canonical form at precision.
func (a Amount) Canonical(precision int) Amount {
	return Amount(amount.Canonical(string(a), precision))
}
