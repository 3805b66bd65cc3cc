package cycles

import (
	"sort"

	"github.com/roach88/trustlens/internal/model"
)

// MaxCycleLength bounds the number of edges in a discovered cycle.
const MaxCycleLength = 6

// MaxCyclesPerEquivalent bounds how many cycles Find reports per equivalent.
const MaxCyclesPerEquivalent = 100

// Find discovers simple debt cycles per equivalent.
//
// The algorithm:
//  1. Build the debtor -> creditor graph for each equivalent, skipping
//     self-debts and non-positive amounts
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Enumerate simple cycles inside each component, starting every cycle at
//     its smallest participant so each loop is reported once
//
// Output is deterministic: equivalents, components and neighbours are visited
// in sorted order. Equivalents without cycles are omitted.
func Find(debts []model.Debt) model.ClearingCycles {
	byEq := make(map[string][]model.Debt)
	for _, d := range debts {
		if d.Debtor == d.Creditor || d.Amount.Atoms(18).Sign() <= 0 {
			continue
		}
		byEq[d.Equivalent] = append(byEq[d.Equivalent], d)
	}

	out := make(model.ClearingCycles)
	for _, eq := range sortedKeys(byEq) {
		found := findInEquivalent(byEq[eq])
		if len(found) > 0 {
			out[eq] = model.CycleSet{Cycles: found}
		}
	}
	return out
}

type debtGraph struct {
	adj   map[string][]string
	edges map[[2]string]model.Debt
}

func buildDebtGraph(debts []model.Debt) debtGraph {
	g := debtGraph{
		adj:   make(map[string][]string),
		edges: make(map[[2]string]model.Debt),
	}
	for _, d := range debts {
		k := [2]string{d.Debtor, d.Creditor}
		if _, dup := g.edges[k]; dup {
			continue
		}
		g.edges[k] = d
		g.adj[d.Debtor] = append(g.adj[d.Debtor], d.Creditor)
		if _, ok := g.adj[d.Creditor]; !ok {
			g.adj[d.Creditor] = nil
		}
	}
	for v := range g.adj {
		sort.Strings(g.adj[v])
	}
	return g
}

func findInEquivalent(debts []model.Debt) []model.Cycle {
	g := buildDebtGraph(debts)

	var found []model.Cycle
	for _, scc := range tarjanSCC(g.adj) {
		if len(scc) < 2 {
			continue
		}
		members := make(map[string]bool, len(scc))
		for _, v := range scc {
			members[v] = true
		}
		sort.Strings(scc)

		for _, start := range scc {
			path := []string{start}
			onPath := map[string]bool{start: true}
			var walk func(v string) bool
			walk = func(v string) bool {
				for _, w := range g.adj[v] {
					if !members[w] || w < start {
						continue
					}
					if w == start {
						if len(path) >= 2 {
							found = append(found, g.cycle(path))
							if len(found) >= MaxCyclesPerEquivalent {
								return false
							}
						}
						continue
					}
					if onPath[w] || len(path) >= MaxCycleLength {
						continue
					}
					path = append(path, w)
					onPath[w] = true
					ok := walk(w)
					onPath[w] = false
					path = path[:len(path)-1]
					if !ok {
						return false
					}
				}
				return true
			}
			if !walk(start) {
				return found
			}
		}
	}
	return found
}

func (g debtGraph) cycle(path []string) model.Cycle {
	c := make(model.Cycle, 0, len(path))
	for i, v := range path {
		next := path[(i+1)%len(path)]
		d := g.edges[[2]string{v, next}]
		c = append(c, model.CycleEdge{
			Equivalent: d.Equivalent,
			Debtor:     d.Debtor,
			Creditor:   d.Creditor,
			Amount:     d.Amount,
		})
	}
	return c
}

// tarjanSCC returns strongly connected components in discovery order over
// sorted roots.
func tarjanSCC(adj map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, v := range sortedKeys(adj) {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}
	return sccs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
