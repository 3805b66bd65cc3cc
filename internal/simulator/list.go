package simulator

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/trustlens/internal/model"
)

// fields describes how a list endpoint is searched and filtered.
type fields[T any] struct {
	// search returns the values matched by the q parameter.
	search func(T) []string

	// field returns the value of a filterable field, or false if key is not
	// filterable. Unknown filter keys are ignored.
	field func(item T, key string) (string, bool)
}

// folder compares strings case-insensitively after NFC normalization. A
// cases.Caser keeps state, so each list call builds its own.
type folder struct {
	caser cases.Caser
}

func newFolder() folder {
	return folder{caser: cases.Fold()}
}

func (f folder) fold(s string) string {
	return f.caser.String(norm.NFC.String(strings.TrimSpace(s)))
}

// list filters items by p and returns the requested page. Total counts the
// filtered items before pagination.
func list[T any](items []T, p model.ListParams, fs fields[T]) model.Page[T] {
	p = p.Normalized()
	f := newFolder()
	q := f.fold(p.Q)

	filtered := make([]T, 0, len(items))
	for _, item := range items {
		if q != "" && !matchesQuery(f, q, fs.search(item)) {
			continue
		}
		if !matchesFilters(f, item, p.Filters, fs.field) {
			continue
		}
		filtered = append(filtered, item)
	}

	return model.Page[T]{
		Items:   Paginate(filtered, p.Page, p.PerPage),
		Total:   len(filtered),
		Page:    p.Page,
		PerPage: p.PerPage,
	}
}

func matchesQuery(f folder, q string, values []string) bool {
	for _, v := range values {
		if strings.Contains(f.fold(v), q) {
			return true
		}
	}
	return false
}

func matchesFilters[T any](f folder, item T, filters map[string]string, field func(T, string) (string, bool)) bool {
	for key, want := range filters {
		got, ok := field(item, key)
		if !ok {
			continue
		}
		if f.fold(got) != f.fold(want) {
			return false
		}
	}
	return true
}

// Paginate returns page (1-indexed) of items. page and perPage are clamped to
// at least 1; a page past the end is empty.
func Paginate[T any](items []T, page, perPage int) []T {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	start := (page - 1) * perPage
	if start >= len(items) || start < 0 {
		return []T{}
	}
	end := min(start+perPage, len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

// emptyPage is the result of an empty scenario override.
func emptyPage[T any](p model.ListParams) model.Page[T] {
	p = p.Normalized()
	return model.Page[T]{Items: []T{}, Total: 0, Page: p.Page, PerPage: p.PerPage}
}

var participantFields = fields[model.Participant]{
	search: func(p model.Participant) []string {
		return []string{p.PID, p.DisplayName, p.Type}
	},
	field: func(p model.Participant, key string) (string, bool) {
		switch key {
		case "pid":
			return p.PID, true
		case "type":
			return p.Type, true
		case "status":
			return p.Status.ToBackend(), true
		}
		return "", false
	},
}

var trustLineFields = fields[model.TrustLine]{
	search: func(tl model.TrustLine) []string {
		return []string{tl.From, tl.To, tl.Equivalent}
	},
	field: func(tl model.TrustLine, key string) (string, bool) {
		switch key {
		case "equivalent":
			return tl.Equivalent, true
		case "from":
			return tl.From, true
		case "to":
			return tl.To, true
		case "status":
			return tl.Status, true
		}
		return "", false
	},
}

var incidentFields = fields[model.Incident]{
	search: func(inc model.Incident) []string {
		return []string{inc.TxID, inc.InitiatorPID, inc.State}
	},
	field: func(inc model.Incident, key string) (string, bool) {
		switch key {
		case "equivalent":
			return inc.Equivalent, true
		case "state":
			return inc.State, true
		case "initiatorPid":
			return inc.InitiatorPID, true
		}
		return "", false
	},
}

var equivalentFields = fields[model.Equivalent]{
	search: func(eq model.Equivalent) []string {
		return []string{eq.Code, eq.Description}
	},
	field: func(eq model.Equivalent, key string) (string, bool) {
		switch key {
		case "code":
			return eq.Code, true
		case "isActive":
			if eq.IsActive {
				return "true", true
			}
			return "false", true
		}
		return "", false
	},
}

// auditFields searches the free-text columns; exact filters are applied by the
// audit store query.
var auditFields = fields[model.AuditLogEntry]{
	search: func(e model.AuditLogEntry) []string {
		return []string{e.Actor, e.Action, e.ObjectType, e.ObjectID, e.Reason}
	},
	field: func(model.AuditLogEntry, string) (string, bool) {
		return "", false
	},
}
