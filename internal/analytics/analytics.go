package analytics

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/trustlens/internal/amount"
	"github.com/roach88/trustlens/internal/model"
)

// DefaultBottleneckThreshold flags trust lines with less than 10% available.
const DefaultBottleneckThreshold = "0.1"

// Params selects the participant and scope.
type Params struct {
	PID        string
	Equivalent string

	// BottleneckThreshold is compared against available/limit.
	BottleneckThreshold decimal.Decimal

	// Now anchors the activity windows.
	Now time.Time
}

// ParseThreshold parses a bottleneck threshold, applying the default to an
// empty string. The value must lie in [0, 1].
func ParseThreshold(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultBottleneckThreshold
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bottleneck threshold %q: %w", s, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("bottleneck threshold %q must be between 0 and 1", s)
	}
	return d, nil
}

// ParticipantMetrics is the full analytics result.
type ParticipantMetrics struct {
	PID           string             `json:"pid"`
	Equivalent    string             `json:"equivalent,omitempty"`
	Balances      []BalanceRow       `json:"balances"`
	Counterparty  *CounterpartySplit `json:"counterparty,omitempty"`
	Concentration *ConcentrationPair `json:"concentration,omitempty"`
	Distribution  *Distribution      `json:"distribution,omitempty"`
	Rank          *Rank              `json:"rank,omitempty"`
	Capacity      *Capacity          `json:"capacity,omitempty"`
	Activity      []ActivityWindow   `json:"activity"`
}

// Compute derives all metrics for p.PID from s.
func Compute(s model.GraphSnapshot, p Params) ParticipantMetrics {
	m := ParticipantMetrics{
		PID:        p.PID,
		Equivalent: p.Equivalent,
		Balances:   Balances(s, p.PID, p.Equivalent),
		Activity:   Activity(s, p.PID, p.Equivalent, p.Now),
	}
	if p.Equivalent == "" {
		return m
	}

	split := Counterparties(s, p.PID, p.Equivalent)
	m.Counterparty = &split
	m.Concentration = &ConcentrationPair{
		Creditors: Concentrate(shares(split.Creditors)),
		Debtors:   Concentrate(shares(split.Debtors)),
	}

	dist := Distribute(s, p.PID, p.Equivalent)
	m.Distribution = &dist
	rank := RankOf(s, p.PID, p.Equivalent)
	m.Rank = &rank

	capacity := CapacityOf(s, p.PID, p.Equivalent, p.BottleneckThreshold)
	m.Capacity = &capacity
	return m
}

// atomsOf parses an amount at precision.
func atomsOf(a model.Amount, precision int) *big.Int {
	return amount.ToAtoms(string(a), precision)
}

// available returns the line's available amount, deriving limit - used when
// the field is absent.
func available(tl model.TrustLine, precision int) *big.Int {
	if strings.TrimSpace(string(tl.Available)) != "" {
		return atomsOf(tl.Available, precision)
	}
	return new(big.Int).Sub(atomsOf(tl.Limit, precision), atomsOf(tl.Used, precision))
}

// netPositions returns credit - debt per participant for eq. Every snapshot
// participant is present, plus any party that only appears in debts.
func netPositions(s model.GraphSnapshot, eq string) map[string]*big.Int {
	precision := s.EquivalentPrecision(eq)
	nets := make(map[string]*big.Int, len(s.Participants))
	get := func(pid string) *big.Int {
		v, ok := nets[pid]
		if !ok {
			v = new(big.Int)
			nets[pid] = v
		}
		return v
	}
	for _, pt := range s.Participants {
		get(pt.PID)
	}
	for _, d := range s.Debts {
		if d.Equivalent != eq {
			continue
		}
		a := atomsOf(d.Amount, precision)
		get(d.Creditor).Add(get(d.Creditor), a)
		get(d.Debtor).Sub(get(d.Debtor), a)
	}
	return nets
}

func ratioString(d decimal.Decimal) string {
	return d.String()
}

func sortedStrings(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
