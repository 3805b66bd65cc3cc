package analytics

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/roach88/trustlens/internal/amount"
	"github.com/roach88/trustlens/internal/model"
)

// DistributionBins is the number of equal-width bins.
const DistributionBins = 20

// Bin is one bucket of net positions. From is inclusive; To is exclusive
// except for the last bin.
type Bin struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// Distribution buckets the population's net positions in one equivalent.
type Distribution struct {
	Equivalent string `json:"equivalent"`
	Min        string `json:"min"`
	Max        string `json:"max"`
	Bins       []Bin  `json:"bins"`

	// ParticipantBin is the index of the target's bin, or -1 when absent.
	ParticipantBin int `json:"participantBin"`
}

// Distribute bins every participant's net position (credit - debt) in eq
// between the observed min and max. When min == max there is a single bin.
func Distribute(s model.GraphSnapshot, pid, eq string) Distribution {
	precision := s.EquivalentPrecision(eq)
	nets := netPositions(s, eq)
	d := Distribution{Equivalent: eq, ParticipantBin: -1, Bins: []Bin{}}
	if len(nets) == 0 {
		zero := amount.FromAtoms(new(big.Int), precision)
		d.Min, d.Max = zero, zero
		return d
	}

	var lo, hi *big.Int
	for _, v := range nets {
		if lo == nil || v.Cmp(lo) < 0 {
			lo = v
		}
		if hi == nil || v.Cmp(hi) > 0 {
			hi = v
		}
	}
	d.Min = amount.FromAtoms(lo, precision)
	d.Max = amount.FromAtoms(hi, precision)

	width := new(big.Int).Sub(hi, lo)
	if width.Sign() == 0 {
		d.Bins = []Bin{{From: d.Min, To: d.Max, Count: len(nets)}}
		if _, ok := nets[pid]; ok {
			d.ParticipantBin = 0
		}
		return d
	}

	d.Bins = make([]Bin, DistributionBins)
	n := big.NewInt(DistributionBins)
	for i := range d.Bins {
		from := new(big.Int).Mul(width, big.NewInt(int64(i)))
		from.Quo(from, n).Add(from, lo)
		to := new(big.Int).Mul(width, big.NewInt(int64(i+1)))
		to.Quo(to, n).Add(to, lo)
		if i == DistributionBins-1 {
			to.Set(hi)
		}
		d.Bins[i] = Bin{
			From: amount.FromAtoms(from, precision),
			To:   amount.FromAtoms(to, precision),
		}
	}

	for p, v := range nets {
		idx := binIndex(v, lo, width)
		d.Bins[idx].Count++
		if p == pid {
			d.ParticipantBin = idx
		}
	}
	return d
}

// binIndex returns floor((v - lo) * bins / width), clamped to the last bin.
func binIndex(v, lo, width *big.Int) int {
	off := new(big.Int).Sub(v, lo)
	off.Mul(off, big.NewInt(DistributionBins))
	off.Quo(off, width)
	idx := int(off.Int64())
	if idx >= DistributionBins {
		idx = DistributionBins - 1
	}
	return idx
}

// Rank places a participant within the population by net position.
type Rank struct {
	Rank       int    `json:"rank"`
	Of         int    `json:"of"`
	Net        string `json:"net"`
	Percentile string `json:"percentile"`
}

// RankOf sorts participants by net position descending (ties by PID
// ascending). percentile = (n - rank) / (n - 1), or 1 when n <= 1. Rank is 0
// when pid is not in the population.
func RankOf(s model.GraphSnapshot, pid, eq string) Rank {
	precision := s.EquivalentPrecision(eq)
	nets := netPositions(s, eq)

	pids := make([]string, 0, len(nets))
	for p := range nets {
		pids = append(pids, p)
	}
	sort.Slice(pids, func(i, j int) bool {
		if c := nets[pids[i]].Cmp(nets[pids[j]]); c != 0 {
			return c > 0
		}
		return pids[i] < pids[j]
	})

	r := Rank{Of: len(pids), Net: amount.FromAtoms(new(big.Int), precision), Percentile: "0"}
	for i, p := range pids {
		if p == pid {
			r.Rank = i + 1
			r.Net = amount.FromAtoms(nets[p], precision)
			break
		}
	}
	if r.Rank == 0 {
		return r
	}

	n := len(pids)
	if n <= 1 {
		r.Percentile = decimal.NewFromInt(1).String()
		return r
	}
	r.Percentile = ratioString(amount.Ratio(big.NewInt(int64(n-r.Rank)), big.NewInt(int64(n-1))))
	return r
}
