package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"radiohub/internal/hub"
	"radiohub/internal/logging"
	"radiohub/internal/notify"
	"radiohub/internal/protocol"
	"radiohub/internal/schedule"
)

var ErrUnknownEvent = errors.New("unknown event")

// Router turns inbound client frames into component calls. Every call runs on
// the scheduler so component state is only touched from one stream.
type Router struct {
	console   *Console
	scheduler schedule.Scheduler
	notifier  *notify.Notifier
	stamper   protocol.Stamper
	logger    *logging.Logger
}

type RouterOptions struct {
	Console   *Console
	Scheduler schedule.Scheduler
	Notifier  *notify.Notifier
	Stamper   protocol.Stamper
	Logger    *logging.Logger
}

func NewRouter(options RouterOptions) *Router {
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Router{
		console:   options.Console,
		scheduler: options.Scheduler,
		notifier:  options.Notifier,
		stamper:   options.Stamper,
		logger:    logger.ForCategory("router"),
	}
}

func (r *Router) Connect(id string) {
	r.scheduler.Do(func() {
		r.console.Hub.RegisterSession(id)
	})
}

func (r *Router) Disconnect(id string) {
	r.scheduler.Do(func() {
		r.console.Hub.RemoveSession(id)
	})
}

// Handle decodes a frame from connection id and queues it for dispatch.
func (r *Router) Handle(id string, frame []byte) {
	envelope, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		r.logger.Warn("dropping malformed frame", map[string]string{
			"connection": id,
			"error":      err.Error(),
		})
		return
	}
	r.scheduler.Do(func() {
		if err := r.Dispatch(id, envelope); err != nil {
			r.logger.Warn("dropping inbound event", map[string]string{
				"connection": id,
				"type":       envelope.Event,
				"error":      err.Error(),
			})
		}
	})
}

// Dispatch applies one inbound event. It must run on the scheduler.
func (r *Router) Dispatch(id string, envelope protocol.Envelope) error {
	console := r.console
	switch envelope.Event {
	case protocol.InUserInformation:
		var identity protocol.Identity
		if err := envelope.Decode(&identity); err != nil {
			return err
		}
		console.Hub.IdentifySession(id, identity)

	case protocol.InVoice:
		console.Hub.RelayAudio(id, audioFrame(envelope.Data))

	case protocol.InAffiliationListRequest:
		console.Affiliations.BroadcastSnapshot()

	case protocol.InVoiceChannelRequest:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			console.Voice.Request(call.RID.String(), call.Channel.String())
		})

	case protocol.InReleaseVoiceChannel:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			console.Voice.Release(call.RID.String(), call.Channel.String())
		})

	case protocol.InForceVoiceChannelGrant:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			console.Voice.ForceGrant(call.RID.String(), call.Channel.String())
		})

	case protocol.InInformationAlert, protocol.InCancellationAlert:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			console.Voice.Alert(envelope.Event, call.RID.String(), call.Channel.String())
		})

	case protocol.InChannelAffiliationReq:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			console.Affiliations.Grant(call.RID.String(), call.Channel.String())
		})

	case protocol.InRemoveAffiliation:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			console.Affiliations.Release(call.RID.String(), call.Channel.String())
		})

	case protocol.InRegRequest:
		var rid protocol.Ident
		if err := envelope.Decode(&rid); err != nil {
			return err
		}
		console.Gatekeeper.Register(rid.String())

	case protocol.InRidInhibit:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			console.Gatekeeper.Inhibit(call.RID.String(), call.Channel.String())
		})

	case protocol.InRidUninhibit:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			console.Gatekeeper.Uninhibit(call.RID.String(), call.Channel.String())
		})

	case protocol.InRidInhibitAck, protocol.InRidUninhibitAck:
		console.Hub.Broadcast(protocol.Message{Event: envelope.Event, Data: rawData(envelope.Data)})

	case protocol.InEmergencyCall:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			r.notifier.Notify(notify.KindEmergencyCall,
				fmt.Sprintf("Emergency Call from %s on %s at %s", call.RID, call.Channel, call.Stamp))
			r.echo(protocol.OutEmergencyCall, call)
		})

	case protocol.InRidPage:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			r.notifier.Notify(notify.KindPage,
				fmt.Sprintf("Page from %s to %s at %s", call.RID, call.Channel, call.Stamp))
			r.echo(protocol.OutPageRid, call)
		})

	case protocol.InRidPageAck:
		return r.withCall(envelope, func(call protocol.CallPayload) {
			r.echo(protocol.OutPageRidAck, call)
		})

	case protocol.InPeerLoginRequest:
		r.logger.Debug("peer login ignored", map[string]string{"connection": id})

	default:
		return fmt.Errorf("%w %q", ErrUnknownEvent, envelope.Event)
	}
	return nil
}

func (r *Router) withCall(envelope protocol.Envelope, apply func(protocol.CallPayload)) error {
	var call protocol.CallPayload
	if err := envelope.Decode(&call); err != nil {
		return err
	}
	apply(call)
	return nil
}

// echo rebroadcasts call with a fresh stamp.
func (r *Router) echo(event string, call protocol.CallPayload) {
	call.Stamp = r.stamper.Stamp()
	r.console.Hub.Broadcast(protocol.Call(event, call))
}

// Affiliations returns the current affiliation list, read on the scheduler.
func (r *Router) Affiliations(ctx context.Context) ([]protocol.Affiliation, error) {
	var snapshot []protocol.Affiliation
	err := schedule.Sync(ctx, r.scheduler, func() {
		snapshot = r.console.Affiliations.Snapshot()
	})
	return snapshot, err
}

// Sessions returns the current session table, read on the scheduler.
func (r *Router) Sessions(ctx context.Context) ([]hub.Session, error) {
	var sessions []hub.Session
	err := schedule.Sync(ctx, r.scheduler, func() {
		sessions = r.console.Hub.Sessions()
	})
	return sessions, err
}

// LockedChannels reads the voice channels currently held, from the loop.
func (r *Router) LockedChannels(ctx context.Context) ([]string, error) {
	var channels []string
	err := schedule.Sync(ctx, r.scheduler, func() {
		channels = r.console.Voice.Locks().LockedChannels()
	})
	return channels, err
}

// audioFrame unwraps a JSON string frame. Anything else is relayed as raw text.
func audioFrame(data json.RawMessage) string {
	var frame string
	if err := json.Unmarshal(data, &frame); err == nil {
		return frame
	}
	return string(data)
}

func rawData(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return data
}
