// Package route names the logical endpoint surface.
//
// Paths are relative to the API prefix (Prefix). The remote client joins them
// with the base URL, the simulator matches scenario overrides against them, and
// the simulation server mounts them on its router, so all three agree on one
// table.
package route

import (
	"net/url"
	"strings"
)

// Prefix is the API mount point.
const Prefix = "/api/v1"

const (
	Health          = "/health"
	HealthDB        = "/health/db"
	Migrations      = "/admin/migrations"
	Config          = "/admin/config"
	FeatureFlags    = "/admin/feature-flags"
	IntegrityStatus = "/integrity/status"
	IntegrityVerify = "/integrity/verify"
	IntegrityRepair = "/admin/integrity/repair"
	Participants    = "/admin/participants"
	TrustLines      = "/admin/trustlines"
	AuditLog        = "/admin/audit-log"
	Incidents       = "/admin/incidents"
	Equivalents     = "/admin/equivalents"
	GraphSnapshot   = "/admin/graph/snapshot"
	GraphEgo        = "/admin/graph/ego"
	ClearingCycles  = "/admin/clearing/cycles"
)

// ParticipantFreeze is the freeze path for pid.
func ParticipantFreeze(pid string) string {
	return Participants + "/" + url.PathEscape(pid) + "/freeze"
}

// ParticipantUnfreeze is the unfreeze path for pid.
func ParticipantUnfreeze(pid string) string {
	return Participants + "/" + url.PathEscape(pid) + "/unfreeze"
}

// ParticipantMetrics is the analytics path for pid.
func ParticipantMetrics(pid string) string {
	return Participants + "/" + url.PathEscape(pid) + "/metrics"
}

// Equivalent is the item path for code.
func Equivalent(code string) string {
	return Equivalents + "/" + url.PathEscape(code)
}

// EquivalentUsage is the usage path for code.
func EquivalentUsage(code string) string {
	return Equivalent(code) + "/usage"
}

// EquivalentActivation is the activate/deactivate path for code.
func EquivalentActivation(code string, active bool) string {
	if active {
		return Equivalent(code) + "/activate"
	}
	return Equivalent(code) + "/deactivate"
}

// TransactionAbort is the abort path for a transaction.
func TransactionAbort(txID string) string {
	return "/admin/transactions/" + url.PathEscape(txID) + "/abort"
}

// Logical strips the API prefix and any query string from a request path.
func Logical(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimPrefix(p, Prefix)
	if p == "" {
		return "/"
	}
	return p
}
