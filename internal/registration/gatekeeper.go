// Package registration admits rids onto the network. Admission consults the
// ACL store and, for unknown rids, a per-rid deny counter that escalates to a
// refusal once it reaches the configured threshold.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"radiohub/internal/acl"
	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/notify"
	"radiohub/internal/protocol"
	"radiohub/internal/schedule"
)

const (
	DefaultDecisionDelay = 1500 * time.Millisecond
	DefaultSystemRID     = "999999999"
	MinDenyThreshold     = 3
	storeTimeout         = 15 * time.Second
)

var ErrInvalidThreshold = errors.New("deny threshold must be at least 3")

// Gatekeeper owns the deny counters. Counters never reset and are never
// evicted. Everything except the store calls runs on the serialized loop.
type Gatekeeper struct {
	store         acl.Store
	polarity      acl.Polarity
	threshold     int
	systemRID     string
	denies        map[string]int
	scheduler     schedule.Scheduler
	publisher     protocol.Publisher
	notifier      *notify.Notifier
	stamper       protocol.Stamper
	decisionDelay time.Duration
	base          context.Context
	logger        *logging.Logger
	metrics       *metrics.Registry
	wg            sync.WaitGroup
}

type Options struct {
	Store     acl.Store
	Polarity  acl.Polarity
	Threshold int
	// SystemRID is the sender of inhibit notices; defaults to DefaultSystemRID.
	SystemRID     string
	Scheduler     schedule.Scheduler
	Publisher     protocol.Publisher
	Notifier      *notify.Notifier
	Stamper       protocol.Stamper
	DecisionDelay time.Duration
	// Context bounds store calls.
	Context context.Context
	Logger  *logging.Logger
	Metrics *metrics.Registry
}

func NewGatekeeper(options Options) (*Gatekeeper, error) {
	if options.Threshold < MinDenyThreshold {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, options.Threshold)
	}
	polarity := options.Polarity
	if polarity.NotInhibited == "" && polarity.Inhibited == "" {
		polarity = acl.DefaultPolarity()
	}
	systemRID := options.SystemRID
	if systemRID == "" {
		systemRID = DefaultSystemRID
	}
	delay := options.DecisionDelay
	if delay <= 0 {
		delay = DefaultDecisionDelay
	}
	base := options.Context
	if base == nil {
		base = context.Background()
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gatekeeper{
		store:         options.Store,
		polarity:      polarity,
		threshold:     options.Threshold,
		systemRID:     systemRID,
		denies:        make(map[string]int),
		scheduler:     options.Scheduler,
		publisher:     options.Publisher,
		notifier:      options.Notifier,
		stamper:       options.Stamper,
		decisionDelay: delay,
		base:          base,
		logger:        logger.ForCategory("registration"),
		metrics:       options.Metrics,
	}, nil
}

// DenyCount returns how many times rid has been denied.
func (g *Gatekeeper) DenyCount(rid string) int {
	return g.denies[rid]
}

// Register broadcasts the request, reads the ACL entry off the loop and decides
// once the decision delay has passed after the read returns.
func (g *Gatekeeper) Register(rid string) {
	g.publish(protocol.Registration(protocol.OutRegRequest, rid))
	g.notifier.Notify(notify.KindRegRequest, "Reg Request: "+rid)

	if !protocol.IsNumericRID(rid) || g.store == nil {
		g.scheduler.After(g.decisionDelay, func() {
			g.decide(rid, acl.Entry{}, false)
		})
		return
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		entry, found := g.lookup(rid)
		g.scheduler.Do(func() {
			g.scheduler.After(g.decisionDelay, func() {
				g.decide(rid, entry, found)
			})
		})
	}()
}

func (g *Gatekeeper) decide(rid string, entry acl.Entry, found bool) {
	fields := map[string]string{"rid": rid}
	if found && protocol.IsNumericRID(rid) {
		if g.polarity.Allows(entry.Flag) {
			g.logger.Info("registration granted", fields)
			g.metrics.IncDecision("registration", "grant")
			g.notifier.Notify(notify.KindRegGrant, "Reg grant: "+rid)
			g.publish(protocol.Registration(protocol.OutRegGranted, rid))
			return
		}
		g.logger.Info("registration of inhibited rid", fields)
		g.metrics.IncDecision("registration", "inhibited")
		g.publish(protocol.Call(protocol.OutRidInhibit, protocol.CallPayload{
			RID:     protocol.Ident(g.systemRID),
			Channel: protocol.Ident(rid),
		}))
		return
	}

	count := g.denies[rid]
	fields["denies"] = strconv.Itoa(count)
	if count >= g.threshold {
		g.logger.Info("registration refused", fields)
		g.metrics.IncDecision("registration", "refuse")
		g.notifier.Notify(notify.KindRegRefuse, "Reg refuse: "+rid)
		g.publish(protocol.Registration(protocol.OutRegRefuse, rid))
		return
	}
	g.denies[rid] = count + 1
	g.logger.Info("registration denied", fields)
	g.metrics.IncDecision("registration", "deny")
	g.notifier.Notify(notify.KindRegDeny, "Reg deny: "+rid)
	g.publish(protocol.Registration(protocol.OutRegDenied, rid))
}

// Inhibit broadcasts the inhibit at once and marks target inhibited in the
// store in the background. A missing row or store failure skips the write.
func (g *Gatekeeper) Inhibit(sender, target string) {
	call := g.call(sender, target)
	g.notifier.Notify(notify.KindInhibit,
		fmt.Sprintf("Inhibit sent to %s on %s at %s", sender, target, call.Stamp))
	g.publish(protocol.Call(protocol.OutRidInhibit, call))
	g.setFlag(target, g.polarity.Inhibited, "inhibit")
}

// Uninhibit is the inverse of Inhibit.
func (g *Gatekeeper) Uninhibit(sender, target string) {
	g.publish(protocol.Call(protocol.OutRidUninhibit, g.call(sender, target)))
	g.setFlag(target, g.polarity.NotInhibited, "uninhibit")
}

// Wait blocks until background store calls have finished.
func (g *Gatekeeper) Wait() {
	g.wg.Wait()
}

func (g *Gatekeeper) setFlag(target, flag, action string) {
	if g.store == nil {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fields := map[string]string{"rid": target, "action": action}
		entry, found := g.lookup(target)
		if !found {
			g.logger.Warn("acl row not found, flag not updated", fields)
			return
		}
		ctx, cancel := context.WithTimeout(g.base, storeTimeout)
		defer cancel()
		if err := g.store.Update(ctx, entry, flag); err != nil {
			fields["error"] = err.Error()
			g.metrics.IncExternalError("acl", "update")
			g.logger.Error("acl update failed", fields)
			return
		}
		g.logger.Info("acl flag updated", fields)
	}()
}

// lookup treats store failures as a missing entry.
func (g *Gatekeeper) lookup(rid string) (acl.Entry, bool) {
	ctx, cancel := context.WithTimeout(g.base, storeTimeout)
	defer cancel()
	entry, found, err := g.store.Lookup(ctx, rid)
	if err != nil {
		g.metrics.IncExternalError("acl", "lookup")
		g.logger.Warn("acl lookup failed", map[string]string{"rid": rid, "error": err.Error()})
		return acl.Entry{}, false
	}
	return entry, found
}

func (g *Gatekeeper) call(rid, channel string) protocol.CallPayload {
	return protocol.CallPayload{
		RID:     protocol.Ident(rid),
		Channel: protocol.Ident(channel),
		Stamp:   g.stamper.Stamp(),
	}
}

func (g *Gatekeeper) publish(message protocol.Message) {
	if g.publisher == nil {
		return
	}
	g.publisher.Publish(message)
}
