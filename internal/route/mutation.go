package route

import (
	"net/http"
	"net/url"

	"github.com/roach88/trustlens/internal/model"
)

// Mutation metadata travels in headers so that patch bodies stay the bare
// document being patched.
const (
	HeaderActor     = "X-Actor"
	HeaderRole      = "X-Actor-Role"
	HeaderReason    = "X-Reason"
	HeaderRequestID = "X-Request-ID"
)

// MutationHeader encodes m. The reason is query-escaped so any text survives.
func MutationHeader(m model.Mutation) http.Header {
	h := http.Header{}
	if m.Actor != "" {
		h.Set(HeaderActor, m.Actor)
	}
	if m.Role != "" {
		h.Set(HeaderRole, m.Role)
	}
	if m.Reason != "" {
		h.Set(HeaderReason, url.QueryEscape(m.Reason))
	}
	if m.RequestID != "" {
		h.Set(HeaderRequestID, m.RequestID)
	}
	return h
}

// MutationFromHeader is the inverse of MutationHeader.
func MutationFromHeader(h http.Header) model.Mutation {
	reason := h.Get(HeaderReason)
	if r, err := url.QueryUnescape(reason); err == nil {
		reason = r
	}
	return model.Mutation{
		Actor:     h.Get(HeaderActor),
		Role:      h.Get(HeaderRole),
		Reason:    reason,
		RequestID: h.Get(HeaderRequestID),
	}
}
