package notify

import (
	"context"
	"sync"
	"time"

	"radiohub/internal/logging"
	"radiohub/internal/metrics"
)

// Kind selects which configuration toggle governs a notification.
type Kind string

const (
	KindVoiceRequest       Kind = "voiceRequest"
	KindVoiceGrant         Kind = "voiceGrant"
	KindVoiceDeny          Kind = "voiceDeny"
	KindAffiliationRequest Kind = "affiliationRequest"
	KindAffiliationGrant   Kind = "affiliationGrant"
	KindRegRequest         Kind = "regRequest"
	KindRegGrant           Kind = "regGrant"
	KindRegDeny            Kind = "regDeny"
	KindRegRefuse          Kind = "regRefuse"
	KindPage               Kind = "page"
	KindInhibit            Kind = "inhibit"
	KindEmergencyCall      Kind = "emergencyCall"
)

const (
	DefaultTitle = "Last Heard"
	DefaultColor = 0x3498db
)

const emitTimeout = 15 * time.Second

// Notifier delivers fire-and-forget alerts: one attempt, no retry, failures only
// logged. A nil Notifier or nil sink drops everything.
type Notifier struct {
	sink     Sink
	enabled  map[Kind]bool
	logger   *logging.Logger
	registry *metrics.Registry
	base     context.Context
	now      func() time.Time
	wg       sync.WaitGroup
}

type Options struct {
	Sink     Sink
	Enabled  map[Kind]bool
	Logger   *logging.Logger
	Registry *metrics.Registry
	// Context bounds in-flight deliveries; cancelling it aborts them.
	Context context.Context
}

func NewNotifier(options Options) *Notifier {
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	base := options.Context
	if base == nil {
		base = context.Background()
	}
	enabled := make(map[Kind]bool, len(options.Enabled))
	for kind, on := range options.Enabled {
		enabled[kind] = on
	}
	return &Notifier{
		sink:     options.Sink,
		enabled:  enabled,
		logger:   logger.ForCategory("notify"),
		registry: options.Registry,
		base:     base,
		now:      time.Now,
	}
}

func (n *Notifier) Enabled(kind Kind) bool {
	if n == nil || n.sink == nil {
		return false
	}
	return n.enabled[kind]
}

// Notify returns immediately; delivery happens on its own goroutine.
func (n *Notifier) Notify(kind Kind, description string) {
	if !n.Enabled(kind) {
		return
	}
	event := Event{
		Kind:        kind,
		Title:       DefaultTitle,
		Description: description,
		Color:       DefaultColor,
		OccurredAt:  n.now(),
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(n.base, emitTimeout)
		defer cancel()
		if err := n.sink.Emit(ctx, event); err != nil {
			n.registry.IncExternalError("notify", string(kind))
			n.logger.Warn("notification failed", map[string]string{
				"kind":  string(kind),
				"error": err.Error(),
			})
			return
		}
		n.logger.Debug("notification sent", map[string]string{"kind": string(kind)})
	}()
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
