package analytics

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/roach88/trustlens/internal/amount"
	"github.com/roach88/trustlens/internal/model"
)

// HHI level thresholds.
var (
	hhiModerate = decimal.RequireFromString("0.15")
	hhiHigh     = decimal.RequireFromString("0.25")
)

// Concentration levels.
const (
	LevelLow      = "low"
	LevelModerate = "moderate"
	LevelHigh     = "high"
)

// CounterpartyShare is one counterparty's part of a debt group.
type CounterpartyShare struct {
	PID    string `json:"pid"`
	Amount string `json:"amount"`
	Share  string `json:"share"`

	atoms *big.Int
	share decimal.Decimal
}

// CounterpartySplit groups a participant's debts in one equivalent.
type CounterpartySplit struct {
	Equivalent string `json:"equivalent"`

	// Creditors are the counterparties the participant owes.
	Creditors     []CounterpartyShare `json:"creditors"`
	CreditorTotal string              `json:"creditorTotal"`

	// Debtors are the counterparties that owe the participant.
	Debtors     []CounterpartyShare `json:"debtors"`
	DebtorTotal string              `json:"debtorTotal"`
}

// Counterparties builds the split for pid in eq. Each side is sorted by
// amount descending, ties by counterparty ascending.
func Counterparties(s model.GraphSnapshot, pid, eq string) CounterpartySplit {
	precision := s.EquivalentPrecision(eq)
	owed := map[string]*big.Int{}
	owing := map[string]*big.Int{}
	add := func(m map[string]*big.Int, k string, v *big.Int) {
		if cur, ok := m[k]; ok {
			cur.Add(cur, v)
			return
		}
		m[k] = new(big.Int).Set(v)
	}

	for _, d := range s.Debts {
		if d.Equivalent != eq || d.Debtor == d.Creditor {
			continue
		}
		a := atomsOf(d.Amount, precision)
		switch pid {
		case d.Debtor:
			add(owed, d.Creditor, a)
		case d.Creditor:
			add(owing, d.Debtor, a)
		}
	}

	creditors, creditorTotal := shareGroup(owed, precision)
	debtors, debtorTotal := shareGroup(owing, precision)
	return CounterpartySplit{
		Equivalent:    eq,
		Creditors:     creditors,
		CreditorTotal: amount.FromAtoms(creditorTotal, precision),
		Debtors:       debtors,
		DebtorTotal:   amount.FromAtoms(debtorTotal, precision),
	}
}

func shareGroup(group map[string]*big.Int, precision int) ([]CounterpartyShare, *big.Int) {
	total := new(big.Int)
	for _, v := range group {
		total.Add(total, v)
	}

	out := make([]CounterpartyShare, 0, len(group))
	for pid, v := range group {
		share := amount.Ratio(v, total)
		out = append(out, CounterpartyShare{
			PID:    pid,
			Amount: amount.FromAtoms(v, precision),
			Share:  ratioString(share),
			atoms:  v,
			share:  share,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].atoms.Cmp(out[j].atoms); c != 0 {
			return c > 0
		}
		return out[i].PID < out[j].PID
	})
	return out, total
}

func shares(group []CounterpartyShare) []decimal.Decimal {
	out := make([]decimal.Decimal, len(group))
	for i, c := range group {
		out[i] = c.share
	}
	return out
}

// Concentration summarizes a set of shares.
type Concentration struct {
	Top1  string `json:"top1"`
	Top5  string `json:"top5"`
	HHI   string `json:"hhi"`
	Level string `json:"level"`
}

// ConcentrationPair holds concentration for both sides of a split.
type ConcentrationPair struct {
	Creditors Concentration `json:"creditors"`
	Debtors   Concentration `json:"debtors"`
}

// Concentrate computes top1, top5, HHI and level for shares.
func Concentrate(in []decimal.Decimal) Concentration {
	sorted := make([]decimal.Decimal, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GreaterThan(sorted[j]) })

	top1 := decimal.Zero
	if len(sorted) > 0 {
		top1 = sorted[0]
	}
	top5 := decimal.Zero
	for i := 0; i < len(sorted) && i < 5; i++ {
		top5 = top5.Add(sorted[i])
	}
	hhi := decimal.Zero
	for _, s := range sorted {
		hhi = hhi.Add(s.Mul(s))
	}
	hhi = hhi.Round(amount.RatioPlaces)

	return Concentration{
		Top1:  ratioString(top1),
		Top5:  ratioString(top5),
		HHI:   ratioString(hhi),
		Level: Level(hhi),
	}
}

// Level labels an HHI value.
func Level(hhi decimal.Decimal) string {
	switch {
	case hhi.LessThan(hhiModerate):
		return LevelLow
	case hhi.LessThan(hhiHigh):
		return LevelModerate
	default:
		return LevelHigh
	}
}
