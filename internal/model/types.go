// Package model holds the domain types exchanged by the data-access layer.
//
// Types mirror the backend wire format (camelCase JSON). Amounts are strings
// (see Amount); participant status is the closed Status variant.
package model

import "time"

// Equivalent is a unit of account. Precision is the number of fractional digits
// used for every amount denominated in it.
type Equivalent struct {
	Code        string `json:"code"`
	Precision   int    `json:"precision"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

// Participant is a member of the credit network.
type Participant struct {
	PID         string `json:"pid"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	Status      Status `json:"status"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// Trust line statuses.
const (
	TrustLineActive = "active"
	TrustLineFrozen = "frozen"
	TrustLineClosed = "closed"
)

// TrustLine is a directed credit allowance From -> To. Used + Available == Limit
// is a display convention only.
type TrustLine struct {
	Equivalent string         `json:"equivalent"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Limit      Amount         `json:"limit"`
	Used       Amount         `json:"used"`
	Available  Amount         `json:"available"`
	Status     string         `json:"status"`
	CreatedAt  string         `json:"createdAt,omitempty"`
	Policy     map[string]any `json:"policy,omitempty"`
}

// Debt is a directed net obligation: Debtor owes Creditor.
type Debt struct {
	Equivalent string `json:"equivalent"`
	Debtor     string `json:"debtor"`
	Creditor   string `json:"creditor"`
	Amount     Amount `json:"amount"`
}

// Incident is a transaction stuck past its SLA.
type Incident struct {
	TxID         string `json:"txId"`
	State        string `json:"state"`
	InitiatorPID string `json:"initiatorPid"`
	Equivalent   string `json:"equivalent"`
	AgeSeconds   int64  `json:"ageSeconds"`
	SLASeconds   int64  `json:"slaSeconds"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// Transaction states that can no longer change.
var TerminalTransactionStates = map[string]bool{
	"COMMITTED": true,
	"ABORTED":   true,
	"REJECTED":  true,
}

// Transaction is a payment or clearing transaction as reported by the backend.
type Transaction struct {
	TxID         string `json:"txId"`
	Type         string `json:"type"`
	State        string `json:"state"`
	InitiatorPID string `json:"initiatorPid"`
	Equivalent   string `json:"equivalent,omitempty"`
	Amount       Amount `json:"amount,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
	Error        any    `json:"error,omitempty"`
}

// AuditLogEntry is an append-only record of an administrative action. ID and
// Timestamp are assigned at append time.
type AuditLogEntry struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Actor       string `json:"actor"`
	Role        string `json:"role,omitempty"`
	Action      string `json:"action"`
	ObjectType  string `json:"objectType"`
	ObjectID    string `json:"objectId"`
	Reason      string `json:"reason,omitempty"`
	BeforeState any    `json:"beforeState,omitempty"`
	AfterState  any    `json:"afterState,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
}

// GraphSnapshot is the unit of transfer for graph views.
type GraphSnapshot struct {
	Participants []Participant   `json:"participants"`
	TrustLines   []TrustLine     `json:"trustlines"`
	Incidents    []Incident      `json:"incidents"`
	Equivalents  []Equivalent    `json:"equivalents"`
	Debts        []Debt          `json:"debts"`
	AuditLog     []AuditLogEntry `json:"auditLog"`
	Transactions []Transaction   `json:"transactions"`
}

// EquivalentPrecision returns the precision for code, or 0 if unknown.
func (s *GraphSnapshot) EquivalentPrecision(code string) int {
	for _, eq := range s.Equivalents {
		if eq.Code == code {
			return eq.Precision
		}
	}
	return 0
}

// HasParticipant reports whether pid is in the snapshot.
func (s *GraphSnapshot) HasParticipant(pid string) bool {
	for _, p := range s.Participants {
		if p.PID == pid {
			return true
		}
	}
	return false
}

// CycleEdge is one debt edge of a clearing cycle.
type CycleEdge struct {
	Equivalent string `json:"equivalent"`
	Debtor     string `json:"debtor"`
	Creditor   string `json:"creditor"`
	Amount     Amount `json:"amount"`
}

// Cycle is an ordered closed loop of debt edges.
type Cycle []CycleEdge

// CycleSet holds the cycles found for one equivalent.
type CycleSet struct {
	Cycles []Cycle `json:"cycles"`
}

// ClearingCycles maps equivalent code to its cycles.
type ClearingCycles map[string]CycleSet

// Page is one page of a list endpoint. Total counts items before pagination.
type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// FeatureFlags is the backend feature-flag set.
type FeatureFlags map[string]bool

// RuntimeConfig is the backend runtime configuration document.
type RuntimeConfig map[string]any

// HealthStatus is returned by health and health/db.
type HealthStatus struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// MigrationStatus describes the backend schema migration state.
type MigrationStatus struct {
	CurrentRevision string   `json:"currentRevision"`
	HeadRevision    string   `json:"headRevision"`
	Pending         []string `json:"pending"`
}

// IntegrityCheck is the per-equivalent result of an integrity verification.
type IntegrityCheck struct {
	Equivalent string   `json:"equivalent"`
	Status     string   `json:"status"`
	Checksum   string   `json:"checksum"`
	DebtTotal  Amount   `json:"debtTotal"`
	Issues     []string `json:"issues,omitempty"`
}

// IntegrityReport aggregates integrity checks.
type IntegrityReport struct {
	Status      string           `json:"status"`
	CheckedAt   string           `json:"checkedAt,omitempty"`
	Equivalents []IntegrityCheck `json:"equivalents"`
}

// EquivalentUsage counts references to an equivalent.
type EquivalentUsage struct {
	Code         string `json:"code"`
	TrustLines   int    `json:"trustlines"`
	Debts        int    `json:"debts"`
	Transactions int    `json:"transactions"`
	Incidents    int    `json:"incidents"`
}

// InUse reports whether any object references the equivalent.
func (u EquivalentUsage) InUse() bool {
	return u.TrustLines+u.Debts+u.Transactions+u.Incidents > 0
}

// ParseTime parses an RFC 3339 timestamp, reporting false on failure.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
