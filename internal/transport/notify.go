package transport

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/sched"
)

// DedupWindow suppresses repeats of the same failure notification.
const DedupWindow = 10 * time.Second

// Notifier observes raised failures.
type Notifier interface {
	Notify(msg envelope.UserMessage, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg envelope.UserMessage, err error)

// Notify calls f.
func (f NotifierFunc) Notify(msg envelope.UserMessage, err error) {
	f(msg, err)
}

// LogNotifier writes failures as warnings.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs msg.
func (n LogNotifier) Notify(msg envelope.UserMessage, err error) {
	l := n.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Warn(msg.Title,
		"hint", msg.Hint,
		"error", err,
	)
}

// DedupNotifier forwards a notification at most once per window for the same
// failure (code, status and title).
type DedupNotifier struct {
	next   Notifier
	sched  sched.Scheduler
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewDedupNotifier wraps next.
func NewDedupNotifier(next Notifier, s sched.Scheduler, window time.Duration) *DedupNotifier {
	if d, ok := next.(*DedupNotifier); ok {
		return d
	}
	return &DedupNotifier{
		next:   next,
		sched:  s,
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Notify forwards unless the same failure was forwarded within the window.
func (d *DedupNotifier) Notify(msg envelope.UserMessage, err error) {
	key := dedupKey(msg, err)
	now := d.sched.Now()

	d.mu.Lock()
	if at, ok := d.last[key]; ok && now.Sub(at) < d.window {
		d.mu.Unlock()
		return
	}
	d.last[key] = now
	d.mu.Unlock()

	d.next.Notify(msg, err)
}

func dedupKey(msg envelope.UserMessage, err error) string {
	if e, ok := envelope.As(err); ok {
		return fmt.Sprintf("%s|%d|%s", e.Code, e.Status, msg.Title)
	}
	return msg.Title
}
