package protocol

// CallPayload is shared by voice, affiliation, alert, page and inhibit events.
// For RID_INHIBIT and RID_UNINHIBIT, Channel carries the rid being targeted.
type CallPayload struct {
	RID     Ident  `json:"rid"`
	Channel Ident  `json:"channel"`
	Stamp   string `json:"stamp,omitempty"`
}

// Identity is what a console reports about itself in userInformation.
type Identity struct {
	RID     Ident `json:"username"`
	Channel Ident `json:"channel"`
	Mute    bool  `json:"mute"`
	Online  bool  `json:"online"`
}

// Roster maps connection ids to identities; empty identities are sessions that
// have not identified yet.
type Roster map[string]Identity

// AudioFrame is delivered to listeners on the sender's channel.
type AudioFrame struct {
	Data    string `json:"newData"`
	RID     string `json:"rid"`
	Channel string `json:"channel"`
}

type Affiliation struct {
	RID     string `json:"rid"`
	Channel string `json:"channel"`
	Stamp   string `json:"stamp,omitempty"`
}

func Call(event string, payload CallPayload) Message {
	return Message{Event: event, Data: payload}
}

func Registration(event, rid string) Message {
	return Message{Event: event, Data: rid}
}

func AffiliationList(entries []Affiliation) Message {
	if entries == nil {
		entries = []Affiliation{}
	}
	return Message{Event: OutAffiliationLookupUpdate, Data: entries}
}

func RosterUpdate(roster Roster) Message {
	return Message{Event: OutUsersUpdate, Data: roster}
}

func Audio(target string, frame AudioFrame) Message {
	return Message{Event: OutAudio, Data: frame, Target: target}
}
