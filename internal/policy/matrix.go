package policy

import (
	"fmt"

	"icomnet.org/internal/identity"
	"icomnet.org/internal/scope"
)

// Request is one communication eligibility question.
type Request struct {
	SenderRealm   identity.Realm       `json:"sender_realm"`
	ReceiverRealm identity.Realm       `json:"receiver_realm"`
	NetworkType   identity.NetworkType `json:"network_type"`
	Scopes        []string             `json:"scopes"`
	Channel       identity.Channel     `json:"channel"`
}

// Decision is the answer. A denial always carries a reason; it may also carry
// a lighter-weight channel the caller could use instead.
type Decision struct {
	Allowed              bool             `json:"allowed"`
	Reason               string           `json:"reason,omitempty"`
	SuggestedAlternative identity.Channel `json:"suggested_alternative,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// networkChannels gates each channel per network type. Administrative
// correspondence exists only on the government network.
var networkChannels = map[identity.NetworkType]map[identity.Channel]bool{
	identity.NetworkGovernment: {
		identity.ChannelChat:           true,
		identity.ChannelCall:           true,
		identity.ChannelMeeting:        true,
		identity.ChannelContact:        true,
		identity.ChannelInbox:          true,
		identity.ChannelCorrespondance: true,
	},
	identity.NetworkCommercial: {
		identity.ChannelChat:           true,
		identity.ChannelCall:           true,
		identity.ChannelMeeting:        true,
		identity.ChannelContact:        true,
		identity.ChannelInbox:          true,
		identity.ChannelCorrespondance: false,
	},
}

// channelScopes lists the acceptable scopes per channel; holding any one of
// them (directly or through a wildcard grant) passes the scope gate.
var channelScopes = map[identity.Channel][]string{
	identity.ChannelChat:           {"icom:chat:write", "icom:chat"},
	identity.ChannelCall:           {"icom:call:start", "icom:call"},
	identity.ChannelMeeting:        {"icom:meeting:start", "icom:meeting"},
	identity.ChannelContact:        {"icontact:read", "icontact:search"},
	identity.ChannelInbox:          {"inbox:read", "inbox:write", "inbox:*"},
	identity.ChannelCorrespondance: {"icorrespondance:send", "icorrespondance:write"},
}

// realmPair keys the cross-realm matrix.
type realmPair struct {
	Sender   identity.Realm
	Receiver identity.Realm
}

// channelMatrix is one cross-realm entry: which of the four realm-gated
// channels the sender may open toward the receiver. Inbox and administrative
// correspondence are governed by their own rules, not by this matrix.
type channelMatrix struct {
	Chat    bool
	Call    bool
	Meeting bool
	Contact bool
}

func (m channelMatrix) permits(ch identity.Channel) bool {
	switch ch {
	case identity.ChannelChat:
		return m.Chat
	case identity.ChannelCall:
		return m.Call
	case identity.ChannelMeeting:
		return m.Meeting
	case identity.ChannelContact:
		return m.Contact
	}
	return false
}

// crossRealm is static configuration. Pairs absent from the table are
// explicitly unknown, never implicitly denied or allowed. The platform realm
// appears only as a sender: nothing addresses the platform realm directly.
var crossRealm = map[realmPair]channelMatrix{
	{identity.RealmCitizen, identity.RealmCitizen}:       {Chat: true, Call: true, Meeting: false, Contact: true},
	{identity.RealmCitizen, identity.RealmGovernment}:    {Chat: true, Call: false, Meeting: false, Contact: true},
	{identity.RealmCitizen, identity.RealmBusiness}:      {Chat: true, Call: false, Meeting: false, Contact: true},
	{identity.RealmGovernment, identity.RealmCitizen}:    {Chat: true, Call: true, Meeting: true, Contact: true},
	{identity.RealmGovernment, identity.RealmGovernment}: {Chat: true, Call: true, Meeting: true, Contact: true},
	{identity.RealmGovernment, identity.RealmBusiness}:   {Chat: true, Call: true, Meeting: true, Contact: true},
	{identity.RealmBusiness, identity.RealmCitizen}:      {Chat: true, Call: false, Meeting: false, Contact: true},
	{identity.RealmBusiness, identity.RealmGovernment}:   {Chat: true, Call: true, Meeting: true, Contact: true},
	{identity.RealmBusiness, identity.RealmBusiness}:     {Chat: true, Call: true, Meeting: true, Contact: true},
	{identity.RealmPlatform, identity.RealmCitizen}:      {Chat: true, Call: true, Meeting: true, Contact: true},
	{identity.RealmPlatform, identity.RealmGovernment}:   {Chat: true, Call: true, Meeting: true, Contact: true},
	{identity.RealmPlatform, identity.RealmBusiness}:     {Chat: true, Call: true, Meeting: true, Contact: true},
	{identity.RealmPlatform, identity.RealmPlatform}:     {Chat: true, Call: true, Meeting: true, Contact: true},
}

// alternativePriority is scanned on cross-realm denial, lightest channel
// first.
var alternativePriority = []identity.Channel{identity.ChannelChat, identity.ChannelContact}

// CanCommunicate decides whether the sender may open the channel toward the
// receiver. Gates run in a fixed order and short-circuit on the first
// failure: network availability, caller scopes, the cross-realm matrix, then
// per-channel rules. Denials never come back without a reason.
func CanCommunicate(req Request) Decision {
	enabled, ok := networkChannels[req.NetworkType]
	if !ok {
		return deny("unknown network type %q", req.NetworkType)
	}
	if !enabled[req.Channel] {
		if _, defined := channelScopes[req.Channel]; !defined {
			return deny("unknown channel %q", req.Channel)
		}
		return deny("channel %s is not available on the %s network", req.Channel, req.NetworkType)
	}

	required := channelScopes[req.Channel]
	if !scope.HasAny(req.Scopes, required...) {
		return deny("missing scope for channel %s (requires one of %v)", req.Channel, required)
	}

	if matrixGoverned(req.Channel) {
		matrix, ok := crossRealm[realmPair{req.SenderRealm, req.ReceiverRealm}]
		if !ok {
			return deny("unknown realm combination %s -> %s", req.SenderRealm, req.ReceiverRealm)
		}
		if !matrix.permits(req.Channel) {
			d := deny("channel %s is not permitted from realm %s to realm %s", req.Channel, req.SenderRealm, req.ReceiverRealm)
			d.SuggestedAlternative = suggestAlternative(req, matrix)
			return d
		}
	}

	// Administrative correspondence additionally requires the government
	// network; the network gate above already enforced it, the explicit check
	// keeps the rule visible if the availability table ever changes.
	if req.Channel == identity.ChannelCorrespondance && req.NetworkType != identity.NetworkGovernment {
		return deny("channel %s requires the government network", req.Channel)
	}

	return allow()
}

// matrixGoverned reports whether the cross-realm matrix has a column for the
// channel. Inbox and administrative correspondence are scope- and
// network-gated only.
func matrixGoverned(ch identity.Channel) bool {
	switch ch {
	case identity.ChannelChat, identity.ChannelCall, identity.ChannelMeeting, identity.ChannelContact:
		return true
	}
	return false
}

// suggestAlternative returns the first lighter-weight channel that this realm
// pair permits, the network carries, and the caller's scopes authorize. The
// denied channel itself never qualifies.
func suggestAlternative(req Request, matrix channelMatrix) identity.Channel {
	for _, alt := range alternativePriority {
		if alt == req.Channel {
			continue
		}
		if !matrix.permits(alt) {
			continue
		}
		if !networkChannels[req.NetworkType][alt] {
			continue
		}
		if !scope.HasAny(req.Scopes, channelScopes[alt]...) {
			continue
		}
		return alt
	}
	return ""
}

// AvailableChannels returns the subset of all channels the caller could open
// for this realm pair. The summary serves display purposes; individual
// actions still go through CanCommunicate.
func AvailableChannels(sender, receiver identity.Realm, network identity.NetworkType, scopes []string) []identity.Channel {
	var out []identity.Channel
	for _, ch := range identity.Channels {
		req := Request{
			SenderRealm:   sender,
			ReceiverRealm: receiver,
			NetworkType:   network,
			Scopes:        scopes,
			Channel:       ch,
		}
		if CanCommunicate(req).Allowed {
			out = append(out, ch)
		}
	}
	return out
}
