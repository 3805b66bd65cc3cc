// Package transport implements the resilient request engine used to talk to the
// real credit-network backend.
//
// A call turns (method, path, query, body) into an envelope.Envelope[T] or a
// raised *envelope.Error.
//
// # Guarantees
//
// Timeout: every attempt runs under its own deadline (Request.Timeout or the
// engine default). Exceeding it aborts the in-flight HTTP call and fails with
// TIMEOUT.
//
// Normalization: a body that already has the envelope shape (boolean success
// member) passes through; any other JSON body is wrapped as {success:true,
// data:body}. A 204 yields {success:true} without parsing. An empty body on any
// other 2xx is INVALID_JSON. A non-2xx response surfaces the embedded error
// envelope's code/message/details when present, else HTTP_ERROR.
//
// Schema validation: a caller-supplied Validator runs against the data member
// of success envelopes only; a failure is INVALID_RESPONSE. success:false
// envelopes are never blocked.
//
// Retry: transport failures (TIMEOUT, NETWORK_ERROR) on safe methods are retried
// with exponential backoff and jitter through the sched.Scheduler. When every
// attempt fails and a previous successful response for the same request key is
// in the FetchCache, that response is returned instead. Otherwise the last
// failure is raised and the Notifier is told (deduplicated within a window).
//
// Privileged calls: Request.Privileged attaches the admin token header. In a
// production-like engine the known placeholder token is rejected with
// INSECURE_CREDENTIAL before any HTTP call is made.
package transport
