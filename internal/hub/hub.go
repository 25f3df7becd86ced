package hub

import (
	"sort"
	"strconv"
	"strings"

	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/protocol"
)

const wavHeader = "data:audio/wav"

// AffiliationRemover drops the affiliation held by a rid, if any.
type AffiliationRemover interface {
	Remove(rid string)
}

type Session struct {
	ID       string
	Identity protocol.Identity
}

// Identified reports whether the session has announced a rid.
func (s Session) Identified() bool {
	return s.Identity.RID != ""
}

type Hub struct {
	sessions     map[string]*Session
	publisher    protocol.Publisher
	affiliations AffiliationRemover
	logger       *logging.Logger
	registry     *metrics.Registry
}

type Options struct {
	Publisher    protocol.Publisher
	Affiliations AffiliationRemover
	Logger       *logging.Logger
	Registry     *metrics.Registry
}

func New(options Options) *Hub {
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		sessions:     make(map[string]*Session),
		publisher:    options.Publisher,
		affiliations: options.Affiliations,
		logger:       logger.ForCategory("hub"),
		registry:     options.Registry,
	}
}

// Broadcast sends message to every connected client, or to message.Target only.
func (h *Hub) Broadcast(message protocol.Message) {
	if h.publisher == nil {
		return
	}
	h.publisher.Publish(message)
}

// RegisterSession creates an empty entry for a new connection.
func (h *Hub) RegisterSession(id string) {
	if _, exists := h.sessions[id]; exists {
		return
	}
	h.sessions[id] = &Session{ID: id}
	h.registry.SetSessions(len(h.sessions))
	h.logger.Debug("session connected", map[string]string{"connection": id})
}

// IdentifySession replaces the session's identity and broadcasts the full roster.
func (h *Hub) IdentifySession(id string, identity protocol.Identity) {
	session, ok := h.sessions[id]
	if !ok {
		session = &Session{ID: id}
		h.sessions[id] = session
		h.registry.SetSessions(len(h.sessions))
	}
	session.Identity = identity
	h.Broadcast(protocol.RosterUpdate(h.Roster()))
}

// RelayAudio forwards a frame to every other online, unmuted session on the
// sender's channel. Frames are not validated.
func (h *Hub) RelayAudio(senderID string, frame string) {
	sender, ok := h.sessions[senderID]
	if !ok {
		return
	}
	channel := sender.Identity.Channel
	payload := protocol.AudioFrame{
		Data:    rewriteAudioHeader(frame),
		RID:     sender.Identity.RID.String(),
		Channel: channel.String(),
	}
	delivered := 0
	for id, recipient := range h.sessions {
		if id == senderID || recipient.Identity.Mute || !recipient.Identity.Online {
			continue
		}
		if recipient.Identity.Channel != channel {
			continue
		}
		h.Broadcast(protocol.Audio(id, payload))
		delivered++
	}
	h.registry.IncAudioFrames(delivered)
}

// RemoveSession drops the session and, when it had identified, its affiliation.
func (h *Hub) RemoveSession(id string) {
	session, ok := h.sessions[id]
	if !ok {
		return
	}
	if session.Identified() && h.affiliations != nil {
		h.affiliations.Remove(session.Identity.RID.String())
	}
	delete(h.sessions, id)
	h.registry.SetSessions(len(h.sessions))
	h.logger.Debug("session disconnected", map[string]string{
		"connection": id,
		"rid":        session.Identity.RID.String(),
		"remaining":  strconv.Itoa(len(h.sessions)),
	})
}

func (h *Hub) Session(id string) (Session, bool) {
	session, ok := h.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

func (h *Hub) Roster() protocol.Roster {
	roster := make(protocol.Roster, len(h.sessions))
	for id, session := range h.sessions {
		roster[id] = session.Identity
	}
	return roster
}

// Sessions lists sessions ordered by connection id.
func (h *Hub) Sessions() []Session {
	out := make([]Session, 0, len(h.sessions))
	for _, session := range h.sessions {
		out = append(out, *session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// rewriteAudioHeader replaces the media type of a data URL with audio/wav. A frame
// without a header separator is returned unchanged.
func rewriteAudioHeader(frame string) string {
	index := strings.Index(frame, ";")
	if index < 0 {
		return frame
	}
	return wavHeader + frame[index:]
}
