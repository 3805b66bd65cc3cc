// Package egonet extracts the bounded-hop neighbourhood of a participant from
// a graph snapshot.
package egonet

import (
	"strings"

	"github.com/roach88/trustlens/internal/model"
)

// Params selects the ego network.
type Params struct {
	Root  string
	Depth int

	// Equivalent restricts trust lines, debts, incidents and transactions.
	Equivalent string

	// Statuses is the trust-line status allow-set. Empty allows all.
	Statuses []string
}

// Query expands breadth-first from p.Root over trust lines in both directions,
// up to p.Depth hops (negative depth is 0), and returns the subgraph induced by
// the visited participants.
//
// Trust lines must pass the equivalent and status filters both to be
// traversed and to be returned. Debts need both parties visited; incidents and
// transactions need a visited initiator. Equivalents and the audit log are
// returned unchanged. When the root is not in the snapshot, the snapshot is
// returned unchanged.
func Query(s model.GraphSnapshot, p Params) model.GraphSnapshot {
	if !s.HasParticipant(p.Root) {
		return s
	}
	depth := max(p.Depth, 0)
	allowed := allowSet(p.Statuses)

	lineOK := func(tl model.TrustLine) bool {
		if p.Equivalent != "" && tl.Equivalent != p.Equivalent {
			return false
		}
		return len(allowed) == 0 || allowed[normalizeStatus(tl.Status)]
	}

	adj := make(map[string][]string)
	for _, tl := range s.TrustLines {
		if !lineOK(tl) {
			continue
		}
		adj[tl.From] = append(adj[tl.From], tl.To)
		adj[tl.To] = append(adj[tl.To], tl.From)
	}

	visited := map[string]bool{p.Root: true}
	frontier := []string{p.Root}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, v := range frontier {
			for _, w := range adj[v] {
				if !visited[w] {
					visited[w] = true
					next = append(next, w)
				}
			}
		}
		frontier = next
	}

	out := model.GraphSnapshot{
		Participants: []model.Participant{},
		TrustLines:   []model.TrustLine{},
		Incidents:    []model.Incident{},
		Equivalents:  s.Equivalents,
		Debts:        []model.Debt{},
		AuditLog:     s.AuditLog,
		Transactions: []model.Transaction{},
	}
	eqOK := func(eq string) bool { return p.Equivalent == "" || eq == p.Equivalent }

	for _, pt := range s.Participants {
		if visited[pt.PID] {
			out.Participants = append(out.Participants, pt)
		}
	}
	for _, tl := range s.TrustLines {
		if visited[tl.From] && visited[tl.To] && lineOK(tl) {
			out.TrustLines = append(out.TrustLines, tl)
		}
	}
	for _, d := range s.Debts {
		if visited[d.Debtor] && visited[d.Creditor] && eqOK(d.Equivalent) {
			out.Debts = append(out.Debts, d)
		}
	}
	for _, inc := range s.Incidents {
		if visited[inc.InitiatorPID] && eqOK(inc.Equivalent) {
			out.Incidents = append(out.Incidents, inc)
		}
	}
	for _, tx := range s.Transactions {
		if visited[tx.InitiatorPID] && eqOK(tx.Equivalent) {
			out.Transactions = append(out.Transactions, tx)
		}
	}
	return out
}

func allowSet(statuses []string) map[string]bool {
	set := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		if st = normalizeStatus(st); st != "" {
			set[st] = true
		}
	}
	return set
}

// normalizeStatus folds case and maps participant-style synonyms onto the
// trust-line vocabulary.
func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "suspended":
		return model.TrustLineFrozen
	case "left", "deleted", "banned":
		return model.TrustLineClosed
	}
	return s
}
