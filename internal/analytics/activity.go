package analytics

import (
	"time"

	"github.com/roach88/trustlens/internal/model"
)

// ActivityWindowDays are the lookback windows reported by Activity.
var ActivityWindowDays = []int{7, 30, 90}

// ActivityWindow counts recent events involving a participant.
type ActivityWindow struct {
	Days                  int `json:"days"`
	TrustLinesCreated     int `json:"trustlinesCreated"`
	TransactionsInitiated int `json:"transactionsInitiated"`
	Incidents             int `json:"incidents"`
}

// Activity counts, per window ending at now: trust lines created touching
// pid, transactions initiated by pid and incidents initiated by pid. Objects
// without a parseable createdAt, or created after now, are not counted. A
// non-empty eq restricts every count to that equivalent.
func Activity(s model.GraphSnapshot, pid, eq string, now time.Time) []ActivityWindow {
	out := make([]ActivityWindow, len(ActivityWindowDays))
	for i, days := range ActivityWindowDays {
		out[i].Days = days
	}

	within := func(createdAt string) []bool {
		hits := make([]bool, len(ActivityWindowDays))
		t, ok := model.ParseTime(createdAt)
		if !ok || t.After(now) {
			return hits
		}
		age := now.Sub(t)
		for i, days := range ActivityWindowDays {
			hits[i] = age <= time.Duration(days)*24*time.Hour
		}
		return hits
	}
	inScope := func(e string) bool { return eq == "" || e == eq }

	for _, tl := range s.TrustLines {
		if (tl.From != pid && tl.To != pid) || !inScope(tl.Equivalent) {
			continue
		}
		for i, hit := range within(tl.CreatedAt) {
			if hit {
				out[i].TrustLinesCreated++
			}
		}
	}
	for _, tx := range s.Transactions {
		if tx.InitiatorPID != pid || !inScope(tx.Equivalent) {
			continue
		}
		for i, hit := range within(tx.CreatedAt) {
			if hit {
				out[i].TransactionsInitiated++
			}
		}
	}
	for _, inc := range s.Incidents {
		if inc.InitiatorPID != pid || !inScope(inc.Equivalent) {
			continue
		}
		for i, hit := range within(inc.CreatedAt) {
			if hit {
				out[i].Incidents++
			}
		}
	}
	return out
}
