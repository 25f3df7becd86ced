// Package affiliation tracks which channel each rid is affiliated with.
package affiliation

import (
	"fmt"
	"time"

	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/notify"
	"radiohub/internal/protocol"
	"radiohub/internal/schedule"
)

const DefaultGrantDelay = 1500 * time.Millisecond

// Registry holds at most one entry per rid, in the order they were added. It is
// owned by the serialized loop and is not safe for concurrent use.
type Registry struct {
	entries    []protocol.Affiliation
	scheduler  schedule.Scheduler
	publisher  protocol.Publisher
	notifier   *notify.Notifier
	stamper    protocol.Stamper
	grantDelay time.Duration
	logger     *logging.Logger
	metrics    *metrics.Registry
}

type Options struct {
	Scheduler  schedule.Scheduler
	Publisher  protocol.Publisher
	Notifier   *notify.Notifier
	Stamper    protocol.Stamper
	GrantDelay time.Duration
	Logger     *logging.Logger
	Metrics    *metrics.Registry
}

func NewRegistry(options Options) *Registry {
	delay := options.GrantDelay
	if delay <= 0 {
		delay = DefaultGrantDelay
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		scheduler:  options.Scheduler,
		publisher:  options.Publisher,
		notifier:   options.Notifier,
		stamper:    options.Stamper,
		grantDelay: delay,
		logger:     logger.ForCategory("affiliation"),
		metrics:    options.Metrics,
	}
}

// Add appends an entry stamped now and broadcasts the snapshot. Callers replacing
// an existing affiliation remove it first.
func (r *Registry) Add(rid, channel string) {
	r.entries = append(r.entries, protocol.Affiliation{
		RID:     rid,
		Channel: channel,
		Stamp:   r.stamper.Stamp(),
	})
	r.BroadcastSnapshot()
}

// Remove drops the entry for rid, if any, and broadcasts the snapshot.
func (r *Registry) Remove(rid string) {
	for i, entry := range r.entries {
		if entry.RID == rid {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	r.BroadcastSnapshot()
}

func (r *Registry) Query(rid string) (string, bool) {
	for _, entry := range r.entries {
		if entry.RID == rid {
			return entry.Channel, true
		}
	}
	return "", false
}

func (r *Registry) Snapshot() []protocol.Affiliation {
	out := make([]protocol.Affiliation, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) BroadcastSnapshot() {
	r.publish(protocol.AffiliationList(r.Snapshot()))
}

// Grant broadcasts the request now, then after the grant delay broadcasts the
// grant and records the affiliation, replacing any previous one for rid.
func (r *Registry) Grant(rid, channel string) {
	call := r.call(rid, channel)
	r.publish(protocol.Call(protocol.OutChannelAffiliationReq, call))
	r.notifier.Notify(notify.KindAffiliationRequest,
		fmt.Sprintf("Affiliation Request from %s on %s at %s", rid, channel, call.Stamp))

	r.scheduler.After(r.grantDelay, func() {
		r.publish(protocol.Call(protocol.OutChannelAffiliationGrant, call))
		r.notifier.Notify(notify.KindAffiliationGrant,
			fmt.Sprintf("Affiliation Grant to %s on %s at %s", rid, channel, call.Stamp))

		fields := map[string]string{"rid": rid, "channel": channel}
		if previous, ok := r.Query(rid); ok {
			fields["previous"] = previous
			r.logger.Info("affiliation replaced", fields)
			r.metrics.IncDecision("affiliation", "replace")
			r.Remove(rid)
		} else {
			r.logger.Info("affiliation granted", fields)
			r.metrics.IncDecision("affiliation", "grant")
		}
		r.Add(rid, channel)
	})
}

// Release handles an explicit removal request from a console.
func (r *Registry) Release(rid, channel string) {
	r.Remove(rid)
	r.logger.Info("affiliation removed", map[string]string{"rid": rid, "channel": channel})
	r.publish(protocol.Call(protocol.OutRemoveAffiliationGranted, r.call(rid, channel)))
}

func (r *Registry) call(rid, channel string) protocol.CallPayload {
	return protocol.CallPayload{
		RID:     protocol.Ident(rid),
		Channel: protocol.Ident(channel),
		Stamp:   r.stamper.Stamp(),
	}
}

func (r *Registry) publish(message protocol.Message) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(message)
}
