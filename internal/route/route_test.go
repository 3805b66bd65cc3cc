package route

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/trustlens/internal/model"
)

func TestItemPaths(t *testing.T) {
	assert.Equal(t, "/admin/participants/A/freeze", ParticipantFreeze("A"))
	assert.Equal(t, "/admin/participants/A/unfreeze", ParticipantUnfreeze("A"))
	assert.Equal(t, "/admin/participants/a%2Fb/metrics", ParticipantMetrics("a/b"))
	assert.Equal(t, "/admin/equivalents/UAH/usage", EquivalentUsage("UAH"))
	assert.Equal(t, "/admin/equivalents/UAH/activate", EquivalentActivation("UAH", true))
	assert.Equal(t, "/admin/equivalents/UAH/deactivate", EquivalentActivation("UAH", false))
	assert.Equal(t, "/admin/transactions/tx-1/abort", TransactionAbort("tx-1"))
}

func TestLogical(t *testing.T) {
	assert.Equal(t, "/admin/participants", Logical("/api/v1/admin/participants?page=2"))
	assert.Equal(t, "/health", Logical("/health"))
	assert.Equal(t, "/", Logical("/api/v1"))
}

func TestMutationHeader_RoundTrip(t *testing.T) {
	m := model.Mutation{Actor: "alice", Role: "admin", Reason: "fraud check: ü & more", RequestID: "r-1"}
	h := MutationHeader(m)
	assert.Equal(t, "alice", h.Get(HeaderActor))
	assert.Equal(t, m, MutationFromHeader(h))
}

func TestMutationHeader_OmitsEmpty(t *testing.T) {
	h := MutationHeader(model.Mutation{Actor: "bob"})
	assert.Len(t, h, 1)
	assert.Equal(t, model.Mutation{Actor: "bob"}, MutationFromHeader(h))
}
