// Package simulator stands in for the backend using fixture data.
//
// A Simulator reads two trees from an fs.FS:
//
//	scenarios/<name>.json|.yaml   latency range and per-path overrides
//	datasets/<name>.json          participants, equivalents, trustlines, ...
//
// Every call first resolves the active scenario (the context selection from
// ContextWithScenario, else the process-wide SetScenario choice), sleeps a
// random duration from the scenario's latency range through the Scheduler,
// and then checks the logical path against the scenario's overrides. An error
// override raises a typed *envelope.Error. An empty override makes list and
// graph endpoints return an empty result without loading any dataset.
//
// Datasets are loaded once through a DatasetCache and decoded into an
// in-memory state that mutating calls change directly. Mutations are gated:
// the reason is required, the role must be allowed, and every accepted change
// is appended to an audit store together with its before and after state.
// Business rejections come back as failure envelopes; they are never raised.
//
// Reset drops datasets, scenarios, mutations and the audit trail so test
// cases start from the fixtures again.
package simulator
