package analytics

import (
	"math/big"

	"github.com/roach88/trustlens/internal/amount"
	"github.com/roach88/trustlens/internal/model"
)

// BalanceRow summarizes one equivalent for a participant.
type BalanceRow struct {
	Equivalent    string `json:"equivalent"`
	OutgoingLimit string `json:"outgoingLimit"`
	OutgoingUsed  string `json:"outgoingUsed"`
	IncomingLimit string `json:"incomingLimit"`
	IncomingUsed  string `json:"incomingUsed"`
	TotalDebt     string `json:"totalDebt"`
	TotalCredit   string `json:"totalCredit"`
	Net           string `json:"net"`
}

// Balances returns one row per equivalent the participant touches (or just eq
// when set), ordered by code. Closed trust lines are not counted.
func Balances(s model.GraphSnapshot, pid, eq string) []BalanceRow {
	codes := map[string]bool{}
	if eq != "" {
		codes[eq] = true
	} else {
		for _, tl := range s.TrustLines {
			if tl.From == pid || tl.To == pid {
				codes[tl.Equivalent] = true
			}
		}
		for _, d := range s.Debts {
			if d.Debtor == pid || d.Creditor == pid {
				codes[d.Equivalent] = true
			}
		}
	}

	rows := make([]BalanceRow, 0, len(codes))
	for _, code := range sortedStrings(codes) {
		rows = append(rows, balanceRow(s, pid, code))
	}
	return rows
}

func balanceRow(s model.GraphSnapshot, pid, eq string) BalanceRow {
	precision := s.EquivalentPrecision(eq)
	var (
		outLimit, outUsed = new(big.Int), new(big.Int)
		inLimit, inUsed   = new(big.Int), new(big.Int)
		debt, credit      = new(big.Int), new(big.Int)
	)

	for _, tl := range s.TrustLines {
		if tl.Equivalent != eq || tl.Status == model.TrustLineClosed {
			continue
		}
		switch pid {
		case tl.From:
			outLimit.Add(outLimit, atomsOf(tl.Limit, precision))
			outUsed.Add(outUsed, atomsOf(tl.Used, precision))
		case tl.To:
			inLimit.Add(inLimit, atomsOf(tl.Limit, precision))
			inUsed.Add(inUsed, atomsOf(tl.Used, precision))
		}
	}
	for _, d := range s.Debts {
		if d.Equivalent != eq {
			continue
		}
		switch pid {
		case d.Debtor:
			debt.Add(debt, atomsOf(d.Amount, precision))
		case d.Creditor:
			credit.Add(credit, atomsOf(d.Amount, precision))
		}
	}

	return BalanceRow{
		Equivalent:    eq,
		OutgoingLimit: amount.FromAtoms(outLimit, precision),
		OutgoingUsed:  amount.FromAtoms(outUsed, precision),
		IncomingLimit: amount.FromAtoms(inLimit, precision),
		IncomingUsed:  amount.FromAtoms(inUsed, precision),
		TotalDebt:     amount.FromAtoms(debt, precision),
		TotalCredit:   amount.FromAtoms(credit, precision),
		Net:           amount.FromAtoms(new(big.Int).Sub(credit, debt), precision),
	}
}
