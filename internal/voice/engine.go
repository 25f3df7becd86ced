package voice

import (
	"fmt"
	"strconv"
	"time"

	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/notify"
	"radiohub/internal/protocol"
	"radiohub/internal/schedule"
)

const (
	DefaultDecisionDelay = 500 * time.Millisecond
	DefaultReleaseDelay  = 1500 * time.Millisecond
)

// Engine arbitrates voice channels. All methods, and the decisions they
// schedule, run on the serialized loop.
type Engine struct {
	locks         *Locks
	scheduler     schedule.Scheduler
	publisher     protocol.Publisher
	notifier      *notify.Notifier
	stamper       protocol.Stamper
	dice          Dice
	decisionDelay time.Duration
	releaseDelay  time.Duration
	logger        *logging.Logger
	registry      *metrics.Registry
}

type Options struct {
	Locks     *Locks
	Scheduler schedule.Scheduler
	Publisher protocol.Publisher
	Notifier  *notify.Notifier
	Stamper   protocol.Stamper
	Dice      Dice
	// DecisionDelay defaults to DefaultDecisionDelay.
	DecisionDelay time.Duration
	// ReleaseDelay is the automatic release after an alert; defaults to
	// DefaultReleaseDelay.
	ReleaseDelay time.Duration
	Logger       *logging.Logger
	Registry     *metrics.Registry
}

func NewEngine(options Options) *Engine {
	locks := options.Locks
	if locks == nil {
		locks = NewLocks()
	}
	dice := options.Dice
	if dice == nil {
		dice = RandomDice()
	}
	decisionDelay := options.DecisionDelay
	if decisionDelay <= 0 {
		decisionDelay = DefaultDecisionDelay
	}
	releaseDelay := options.ReleaseDelay
	if releaseDelay <= 0 {
		releaseDelay = DefaultReleaseDelay
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		locks:         locks,
		scheduler:     options.Scheduler,
		publisher:     options.Publisher,
		notifier:      options.Notifier,
		stamper:       options.Stamper,
		dice:          dice,
		decisionDelay: decisionDelay,
		releaseDelay:  releaseDelay,
		logger:        logger.ForCategory("voice"),
		registry:      options.Registry,
	}
}

func (e *Engine) Locks() *Locks {
	return e.locks
}

// Request broadcasts the request now and decides it after the decision delay.
// The channel lock is read when the decision fires, not when the request
// arrives, so two requests inside one window both reach the roll.
func (e *Engine) Request(rid, channel string) {
	call := e.call(rid, channel)
	e.logger.Info("voice channel request", map[string]string{"rid": rid, "channel": channel})
	e.notifier.Notify(notify.KindVoiceRequest,
		fmt.Sprintf("Voice Request from %s on %s at %s", rid, channel, call.Stamp))
	e.publish(protocol.OutVoiceChannelRequest, call)
	e.scheduler.After(e.decisionDelay, func() {
		e.decide(call)
	})
}

func (e *Engine) decide(call protocol.CallPayload) {
	rid := call.RID.String()
	channel := call.Channel.String()
	if !protocol.IsNumericRID(rid) {
		e.logger.Warn("voice channel denied: invalid rid", map[string]string{"rid": rid, "channel": channel})
		e.registry.IncDecision("voice", "invalid")
		e.publish(protocol.OutVoiceChannelDeny, call)
		return
	}

	e.locks.ensure(rid, channel)
	draw := e.dice.Roll()
	channelLocked, _ := e.locks.Channel(channel)
	fields := map[string]string{"rid": rid, "channel": channel, "draw": strconv.Itoa(draw)}

	if draw != denyingRoll && !channelLocked {
		e.locks.grant(rid, channel)
		e.logger.Info("voice channel granted", fields)
		e.registry.IncDecision("voice", "grant")
		e.publish(protocol.OutVoiceChannelGrant, call)
		e.notifier.Notify(notify.KindVoiceGrant,
			fmt.Sprintf("Voice Transmission from %s on %s at %s", rid, channel, call.Stamp))
		return
	}

	e.locks.channels[channel] = false
	e.logger.Info("voice channel denied", fields)
	e.registry.IncDecision("voice", "deny")
	e.publish(protocol.OutVoiceChannelDeny, call)
	e.notifier.Notify(notify.KindVoiceDeny,
		fmt.Sprintf("Voice Deny from %s on %s at %s", rid, channel, call.Stamp))
}

// Release clears both locks and broadcasts the release. It never fails.
func (e *Engine) Release(rid, channel string) {
	e.locks.release(rid, channel)
	e.logger.Info("voice channel released", map[string]string{"rid": rid, "channel": channel})
	e.publish(protocol.OutVoiceChannelRelease, e.call(rid, channel))
}

// ForceGrant skips arbitration and grants immediately.
func (e *Engine) ForceGrant(rid, channel string) {
	call := e.call(rid, channel)
	e.publish(protocol.OutVoiceChannelGrant, call)
	e.logger.Info("voice channel force granted", map[string]string{"rid": rid, "channel": channel})
	e.registry.IncDecision("voice", "forced")
	e.notifier.Notify(notify.KindVoiceGrant,
		fmt.Sprintf("Voice Transmission from %s on %s", rid, channel))
	e.locks.ensure(rid, channel)
	e.locks.grant(rid, channel)
}

// Alert echoes an alert event, force grants its channel and releases it after
// the release delay.
func (e *Engine) Alert(event, rid, channel string) {
	e.publish(event, e.call(rid, channel))
	e.ForceGrant(rid, channel)
	e.scheduler.After(e.releaseDelay, func() {
		e.Release(rid, channel)
	})
}

func (e *Engine) call(rid, channel string) protocol.CallPayload {
	return protocol.CallPayload{
		RID:     protocol.Ident(rid),
		Channel: protocol.Ident(channel),
		Stamp:   e.stamper.Stamp(),
	}
}

func (e *Engine) publish(event string, call protocol.CallPayload) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(protocol.Call(event, call))
}
