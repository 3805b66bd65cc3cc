package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/route"
	"github.com/roach88/trustlens/internal/sched"
)

const (
	// AdminTokenHeader carries the elevated credential on privileged calls.
	AdminTokenHeader = "X-Admin-Token"

	// InsecurePlaceholderToken is the development default that must never reach
	// a production-like backend.
	InsecurePlaceholderToken = "dev-admin-token-change-me"

	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 15 * time.Second
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CredentialStore supplies the admin token for privileged calls.
type CredentialStore interface {
	AdminToken() string
}

// StaticCredentials is a fixed admin token.
type StaticCredentials string

// AdminToken returns the token.
func (s StaticCredentials) AdminToken() string {
	return string(s)
}

// Request describes one logical call.
type Request struct {
	Method string

	// Path is the logical path (see package route); the API prefix is added.
	Path  string
	Query url.Values

	// Body is JSON-encoded when non-nil.
	Body any

	// Header is added to the outgoing request.
	Header http.Header

	// Privileged marks calls that need the admin token.
	Privileged bool

	// Timeout overrides the engine default per attempt.
	Timeout time.Duration

	// Retry enables retries for methods that are not safe by default.
	Retry bool

	// NoCacheFallback makes exhausted transport retries fail instead of
	// serving the cached response. Reads that feed a write must set it.
	NoCacheFallback bool
}

// Key identifies the request for caching.
func (r Request) Key() string {
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}
	key := method + " " + r.Path
	if len(r.Query) > 0 {
		key += "?" + r.Query.Encode()
	}
	return key
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

func (r Request) retryable() bool {
	switch r.method() {
	case http.MethodGet, http.MethodHead:
		return true
	}
	return r.Retry
}

// Engine is the resilient request engine.
type Engine struct {
	baseURL        string
	prefix         string
	client         Doer
	sched          sched.Scheduler
	jitter         sched.Jitter
	retry          sched.Backoff
	timeout        time.Duration
	cache          *FetchCache
	notifier       Notifier
	creds          CredentialStore
	productionLike bool
	metrics        *Metrics
	logger         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(d Doer) Option {
	return func(e *Engine) { e.client = d }
}

// WithScheduler sets the scheduler used for backoff waits and notification dedup.
func WithScheduler(s sched.Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithJitter sets the jitter source.
func WithJitter(j sched.Jitter) Option {
	return func(e *Engine) { e.jitter = j }
}

// WithRetry sets the backoff policy.
func WithRetry(b sched.Backoff) Option {
	return func(e *Engine) { e.retry = b }
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithCache shares a fetch cache between engines.
func WithCache(c *FetchCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithNotifier sets the failure observer. It is wrapped for deduplication.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithCredentials sets the admin token source.
func WithCredentials(c CredentialStore) Option {
	return func(e *Engine) { e.creds = c }
}

// WithProductionLike enables the placeholder-credential guard.
func WithProductionLike(on bool) Option {
	return func(e *Engine) { e.productionLike = on }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPrefix overrides the API prefix (route.Prefix by default).
func WithPrefix(p string) Option {
	return func(e *Engine) { e.prefix = p }
}

// New creates an Engine for baseURL.
func New(baseURL string, opts ...Option) *Engine {
	e := &Engine{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  route.Prefix,
		client:  &http.Client{},
		sched:   sched.Real{},
		jitter:  sched.NewRand(uint64(time.Now().UnixNano())),
		retry:   sched.DefaultBackoff(),
		timeout: DefaultTimeout,
		creds:   StaticCredentials(""),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.cache == nil {
		e.cache = NewFetchCache()
	}
	if e.notifier == nil {
		e.notifier = LogNotifier{Logger: e.logger}
	}
	e.notifier = NewDedupNotifier(e.notifier, e.sched, DedupWindow)
	return e
}

// Cache returns the engine's fetch cache.
func (e *Engine) Cache() *FetchCache {
	return e.cache
}

// Validator checks the raw JSON data member of a success envelope.
type Validator func(data []byte) error

type callOptions struct {
	validator Validator
}

// CallOption configures one call.
type CallOption func(*callOptions)

// WithValidator validates the success payload.
func WithValidator(v Validator) CallOption {
	return func(o *callOptions) { o.validator = v }
}

// Do performs req and decodes the success payload into T.
func Do[T any](ctx context.Context, e *Engine, req Request, opts ...CallOption) (envelope.Envelope[T], error) {
	raw, err := e.Exchange(ctx, req, opts...)
	if err != nil {
		return envelope.Envelope[T]{}, err
	}
	if !raw.Success {
		return envelope.Envelope[T]{Error: raw.Error}, nil
	}

	var data T
	if len(raw.Data) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Data), []byte("null")) {
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return envelope.Envelope[T]{}, envelope.Wrap(0, envelope.CodeInvalidResponse,
				fmt.Sprintf("decode %s response", req.Path), err)
		}
	}
	return envelope.OK(data), nil
}

// Exchange performs req with retry, cache fallback and notification, returning
// the normalized envelope with its data member still raw.
func (e *Engine) Exchange(ctx context.Context, req Request, opts ...CallOption) (Raw, error) {
	var co callOptions
	for _, o := range opts {
		o(&co)
	}

	token := ""
	if req.Privileged {
		token = e.creds.AdminToken()
		if e.productionLike && token == InsecurePlaceholderToken {
			err := envelope.New(0, envelope.CodeInsecureCredential,
				"refusing privileged call with the placeholder admin token in a production configuration")
			e.metrics.observe(err)
			e.notify(err)
			return Raw{}, err
		}
	}

	key := req.Key()
	attempts := 1
	if req.retryable() {
		attempts = e.retry.MaxAttempts()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := e.attempt(ctx, req, token, co.validator)
		if err == nil {
			switch req.method() {
			case http.MethodGet:
				e.cache.Put(key, res)
			case http.MethodHead:
			default:
				if res.Success {
					e.cache.InvalidatePath(req.Path)
				}
			}
			e.metrics.observe(nil)
			return res, nil
		}
		lastErr = err
		e.logger.Debug("request attempt failed",
			"key", key,
			"attempt", attempt,
			"error", err,
		)

		if !envelope.Retryable(err) || ctx.Err() != nil || attempt == attempts {
			break
		}

		e.metrics.retried()
		if serr := e.sched.Sleep(ctx, e.retry.Delay(attempt, e.jitter)); serr != nil {
			lastErr = timeoutError(req, serr)
			break
		}
	}

	if envelope.Retryable(lastErr) && !req.NoCacheFallback {
		if cached, ok := e.cache.Get(key); ok {
			e.metrics.fellBack()
			e.logger.Warn("serving cached response after transport failure",
				"key", key,
				"error", lastErr,
			)
			return cached, nil
		}
	}

	e.metrics.observe(lastErr)
	e.notify(lastErr)
	return Raw{}, lastErr
}

func (e *Engine) attempt(ctx context.Context, req Request, token string, v Validator) (Raw, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := e.buildRequest(actx, req, token)
	if err != nil {
		return Raw{}, err
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if actx.Err() != nil {
			return Raw{}, timeoutError(req, err)
		}
		return Raw{}, envelope.Wrap(0, envelope.CodeNetwork, fmt.Sprintf("%s %s: %v", req.method(), req.Path, err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if actx.Err() != nil {
			return Raw{}, timeoutError(req, err)
		}
		return Raw{}, envelope.Wrap(0, envelope.CodeNetwork, "read response body", err)
	}

	return normalize(resp.StatusCode, body, v)
}

func (e *Engine) buildRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	u := e.baseURL + e.prefix + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Privileged && token != "" {
		httpReq.Header.Set(AdminTokenHeader, token)
	}
	return httpReq, nil
}

func (e *Engine) notify(err error) {
	if err == nil {
		return
	}
	e.notifier.Notify(envelope.Format(err), err)
}

func timeoutError(req Request, cause error) *envelope.Error {
	msg := fmt.Sprintf("%s %s timed out", req.method(), req.Path)
	if errors.Is(cause, context.Canceled) {
		msg = fmt.Sprintf("%s %s cancelled", req.method(), req.Path)
	}
	return envelope.Wrap(0, envelope.CodeTimeout, msg, cause)
}
