package simulator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/roach88/trustlens/internal/amount"
	"github.com/roach88/trustlens/internal/model"
)

// Integrity statuses.
const (
	IntegrityOK     = "ok"
	IntegrityIssues = "issues"
)

// debtIssues lists what is wrong with d, if anything.
func debtIssues(st *state, d model.Debt) []string {
	var issues []string
	if findEquivalent(st, d.Equivalent) < 0 {
		issues = append(issues, fmt.Sprintf("debt %s->%s references unknown equivalent %q", d.Debtor, d.Creditor, d.Equivalent))
	}
	if d.Debtor == d.Creditor {
		issues = append(issues, fmt.Sprintf("debt %s->%s is a self-debt", d.Debtor, d.Creditor))
	}
	for _, pid := range []string{d.Debtor, d.Creditor} {
		if findParticipant(st, pid) < 0 {
			issues = append(issues, fmt.Sprintf("debt %s->%s references unknown participant %q", d.Debtor, d.Creditor, pid))
		}
	}
	if !amount.Valid(string(d.Amount)) || d.Amount.Atoms(precisionOf(st, d.Equivalent)).Sign() <= 0 {
		issues = append(issues, fmt.Sprintf("debt %s->%s has non-positive or malformed amount %q", d.Debtor, d.Creditor, d.Amount))
	}
	return issues
}

func precisionOf(st *state, code string) int {
	if i := findEquivalent(st, code); i >= 0 {
		return st.equivalents[i].Precision
	}
	return 0
}

// verify checks every debt and fingerprints the debt set per equivalent. The
// checksum is a SHA-256 over the sorted canonical debt lines, so it changes
// only when the debts themselves change.
func verify(st *state, checkedAt string) model.IntegrityReport {
	byEq := make(map[string][]model.Debt)
	for _, eq := range st.equivalents {
		byEq[eq.Code] = nil
	}
	for _, d := range st.debts {
		byEq[d.Equivalent] = append(byEq[d.Equivalent], d)
	}

	codes := make([]string, 0, len(byEq))
	for code := range byEq {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	report := model.IntegrityReport{Status: IntegrityOK, CheckedAt: checkedAt, Equivalents: []model.IntegrityCheck{}}
	for _, code := range codes {
		precision := precisionOf(st, code)
		total := new(big.Int)
		lines := make([]string, 0, len(byEq[code]))
		var issues []string

		for _, d := range byEq[code] {
			atoms := d.Amount.Atoms(precision)
			total.Add(total, atoms)
			lines = append(lines, d.Debtor+"|"+d.Creditor+"|"+amount.FromAtoms(atoms, precision))
			issues = append(issues, debtIssues(st, d)...)
		}
		sort.Strings(lines)
		sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))

		check := model.IntegrityCheck{
			Equivalent: code,
			Status:     IntegrityOK,
			Checksum:   hex.EncodeToString(sum[:]),
			DebtTotal:  model.Amount(amount.FromAtoms(total, precision)),
			Issues:     issues,
		}
		if len(issues) > 0 {
			check.Status = IntegrityIssues
			report.Status = IntegrityIssues
		}
		report.Equivalents = append(report.Equivalents, check)
	}
	return report
}

// repair drops every debt with an integrity issue and returns how many were
// removed.
func repair(st *state) int {
	kept := make([]model.Debt, 0, len(st.debts))
	for _, d := range st.debts {
		if len(debtIssues(st, d)) == 0 {
			kept = append(kept, d)
		}
	}
	removed := len(st.debts) - len(kept)
	st.debts = kept
	return removed
}
