package analytics

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/roach88/trustlens/internal/amount"
	"github.com/roach88/trustlens/internal/model"
)

// Capacity summarizes a participant's trust lines in one equivalent.
type Capacity struct {
	Equivalent          string       `json:"equivalent"`
	OutgoingLimit       string       `json:"outgoingLimit"`
	OutgoingUsed        string       `json:"outgoingUsed"`
	OutgoingUtilization string       `json:"outgoingUtilization"`
	IncomingLimit       string       `json:"incomingLimit"`
	IncomingUsed        string       `json:"incomingUsed"`
	IncomingUtilization string       `json:"incomingUtilization"`
	Threshold           string       `json:"threshold"`
	Bottlenecks         []Bottleneck `json:"bottlenecks"`
}

// Bottleneck directions.
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
)

// Bottleneck is an active trust line with little headroom.
type Bottleneck struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Direction string `json:"direction"`
	Limit     string `json:"limit"`
	Available string `json:"available"`
	Ratio     string `json:"ratio"`

	ratio decimal.Decimal
}

// CapacityOf sums the participant's outgoing and incoming trust lines in eq.
// utilization = used / limit (0 when limit is 0). A line is a bottleneck iff
// it is active and available / limit < threshold; a zero limit gives ratio 0.
// Bottlenecks are ordered by ratio, then From, then To.
func CapacityOf(s model.GraphSnapshot, pid, eq string, threshold decimal.Decimal) Capacity {
	precision := s.EquivalentPrecision(eq)
	var (
		outLimit, outUsed = new(big.Int), new(big.Int)
		inLimit, inUsed   = new(big.Int), new(big.Int)
		bottlenecks       = []Bottleneck{}
	)

	for _, tl := range s.TrustLines {
		if tl.Equivalent != eq || (tl.From != pid && tl.To != pid) || tl.Status == model.TrustLineClosed {
			continue
		}
		limit := atomsOf(tl.Limit, precision)
		used := atomsOf(tl.Used, precision)
		direction := DirectionIncoming
		if tl.From == pid {
			direction = DirectionOutgoing
			outLimit.Add(outLimit, limit)
			outUsed.Add(outUsed, used)
		} else {
			inLimit.Add(inLimit, limit)
			inUsed.Add(inUsed, used)
		}

		if tl.Status != model.TrustLineActive {
			continue
		}
		avail := available(tl, precision)
		ratio := amount.Ratio(avail, limit)
		if ratio.LessThan(threshold) {
			bottlenecks = append(bottlenecks, Bottleneck{
				From:      tl.From,
				To:        tl.To,
				Direction: direction,
				Limit:     amount.FromAtoms(limit, precision),
				Available: amount.FromAtoms(avail, precision),
				Ratio:     ratioString(ratio),
				ratio:     ratio,
			})
		}
	}

	sort.Slice(bottlenecks, func(i, j int) bool {
		a, b := bottlenecks[i], bottlenecks[j]
		if !a.ratio.Equal(b.ratio) {
			return a.ratio.LessThan(b.ratio)
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})

	return Capacity{
		Equivalent:          eq,
		OutgoingLimit:       amount.FromAtoms(outLimit, precision),
		OutgoingUsed:        amount.FromAtoms(outUsed, precision),
		OutgoingUtilization: ratioString(amount.Ratio(outUsed, outLimit)),
		IncomingLimit:       amount.FromAtoms(inLimit, precision),
		IncomingUsed:        amount.FromAtoms(inUsed, precision),
		IncomingUtilization: ratioString(amount.Ratio(inUsed, inLimit)),
		Threshold:           threshold.String(),
		Bottlenecks:         bottlenecks,
	}
}
