package model

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultPerPage is the page size when none is requested.
const DefaultPerPage = 20

// Roles recognised by role-gated mutations.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleAuditor  = "auditor"
)

// ListParams selects and pages a list endpoint.
type ListParams struct {
	// Q is a case-insensitive substring matched against the list's searchable fields.
	Q string

	// Filters are exact (case-insensitive) field matches.
	Filters map[string]string

	Page    int
	PerPage int
}

// Normalized returns p with page and perPage clamped to >= 1 and the default
// page size applied when perPage is unset.
func (p ListParams) Normalized() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PerPage == 0:
		p.PerPage = DefaultPerPage
	case p.PerPage < 1:
		p.PerPage = 1
	}
	return p
}

// Reserved list query parameters; every other parameter is an exact filter.
const (
	ParamQ        = "q"
	ParamPage     = "page"
	ParamPerPage  = "perPage"
	ParamScenario = "scenario"
)

// Query encodes p as URL query parameters.
func (p ListParams) Query() url.Values {
	v := url.Values{}
	if p.Q != "" {
		v.Set(ParamQ, p.Q)
	}
	if p.Page != 0 {
		v.Set(ParamPage, strconv.Itoa(p.Page))
	}
	if p.PerPage != 0 {
		v.Set(ParamPerPage, strconv.Itoa(p.PerPage))
	}
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, p.Filters[k])
	}
	return v
}

// ListParamsFromQuery is the inverse of ListParams.Query. Unparseable page
// numbers are treated as unset.
func ListParamsFromQuery(v url.Values) ListParams {
	p := ListParams{Q: strings.TrimSpace(v.Get(ParamQ))}
	p.Page, _ = strconv.Atoi(v.Get(ParamPage))
	p.PerPage, _ = strconv.Atoi(v.Get(ParamPerPage))
	for k, vals := range v {
		switch k {
		case ParamQ, ParamPage, ParamPerPage, ParamScenario:
			continue
		}
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		if p.Filters == nil {
			p.Filters = make(map[string]string)
		}
		p.Filters[k] = vals[0]
	}
	return p
}

// Mutation identifies who performs a state change and why.
type Mutation struct {
	Actor     string `json:"actor" validate:"required"`
	Role      string `json:"role"`
	Reason    string `json:"reason" validate:"required"`
	RequestID string `json:"requestId,omitempty"`
}

// HasRole reports whether m.Role is one of roles.
func (m Mutation) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(m.Role, r) {
			return true
		}
	}
	return false
}

// EquivalentInput creates an equivalent.
type EquivalentInput struct {
	Code        string `json:"code" validate:"required,alphanum,max=16"`
	Precision   int    `json:"precision" validate:"gte=0,lte=18"`
	Description string `json:"description" validate:"max=256"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

// EquivalentPatch updates an equivalent. Nil fields are left unchanged.
type EquivalentPatch struct {
	Precision   *int    `json:"precision,omitempty" validate:"omitempty,gte=0,lte=18"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=256"`
}

// SnapshotParams scopes a graph snapshot.
type SnapshotParams struct {
	Equivalent string
}

// MetricsParams scopes participant analytics.
type MetricsParams struct {
	Equivalent string

	// Threshold is the bottleneck ratio; zero selects the default.
	Threshold string
}

// EgoParams selects an ego network.
type EgoParams struct {
	Root       string
	Depth      int
	Equivalent string

	// Statuses is the trust-line status allow-set; empty allows all.
	Statuses []string
}

// Query parameters of the graph and analytics endpoints.
const (
	ParamEquivalent = "equivalent"
	ParamRoot       = "root"
	ParamDepth      = "depth"
	ParamStatus     = "status"
	ParamThreshold  = "threshold"
)

// Query encodes p as URL query parameters.
func (p SnapshotParams) Query() url.Values {
	v := url.Values{}
	if p.Equivalent != "" {
		v.Set(ParamEquivalent, p.Equivalent)
	}
	return v
}

// SnapshotParamsFromQuery is the inverse of SnapshotParams.Query.
func SnapshotParamsFromQuery(v url.Values) SnapshotParams {
	return SnapshotParams{Equivalent: strings.TrimSpace(v.Get(ParamEquivalent))}
}

// Query encodes p as URL query parameters. Statuses become repeated status
// parameters.
func (p EgoParams) Query() url.Values {
	v := url.Values{}
	v.Set(ParamRoot, p.Root)
	v.Set(ParamDepth, strconv.Itoa(p.Depth))
	if p.Equivalent != "" {
		v.Set(ParamEquivalent, p.Equivalent)
	}
	for _, s := range p.Statuses {
		v.Add(ParamStatus, s)
	}
	return v
}

// EgoParamsFromQuery is the inverse of EgoParams.Query. It also accepts a
// comma-separated status list; an unparseable depth is 0.
func EgoParamsFromQuery(v url.Values) EgoParams {
	p := EgoParams{
		Root:       strings.TrimSpace(v.Get(ParamRoot)),
		Equivalent: strings.TrimSpace(v.Get(ParamEquivalent)),
	}
	p.Depth, _ = strconv.Atoi(v.Get(ParamDepth))
	for _, raw := range v[ParamStatus] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				p.Statuses = append(p.Statuses, s)
			}
		}
	}
	return p
}

// Query encodes p as URL query parameters.
func (p MetricsParams) Query() url.Values {
	v := url.Values{}
	if p.Equivalent != "" {
		v.Set(ParamEquivalent, p.Equivalent)
	}
	if p.Threshold != "" {
		v.Set(ParamThreshold, p.Threshold)
	}
	return v
}

// MetricsParamsFromQuery is the inverse of MetricsParams.Query.
func MetricsParamsFromQuery(v url.Values) MetricsParams {
	return MetricsParams{
		Equivalent: strings.TrimSpace(v.Get(ParamEquivalent)),
		Threshold:  strings.TrimSpace(v.Get(ParamThreshold)),
	}
}
