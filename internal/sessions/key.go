package sessions

import (
	"errors"
	"strings"

	"github.com/haasonsaas/aisopod/internal/config"
)

// ErrNoBinding is returned by Router.Route when an inbound event matches no
// configured binding and no default binding exists. The caller (gateway
// shell) surfaces this without creating a session.
var ErrNoBinding = errors.New("no binding configured for channel/account")

// PeerKind distinguishes a one-on-one conversation from a multi-party one,
// per the canonical SessionKey tuple.
type PeerKind string

const (
	PeerKindDM    PeerKind = "dm"
	PeerKindGroup PeerKind = "group"
)

// PeerKindForRaw maps an inbound peer kind string (user, group, channel,
// thread) onto the two-valued SessionKey.PeerKind: "user" becomes dm,
// everything else becomes group.
func PeerKindForRaw(raw string) PeerKind {
	if strings.EqualFold(strings.TrimSpace(raw), "user") {
		return PeerKindDM
	}
	return PeerKindGroup
}

// SessionKey is the canonical 5-tuple identity of a conversation: the
// agent, the channel it arrived on, the channel account that received it,
// whether the peer is a single user or a group, and the peer's id.
//
// All components are lower-cased and whitespace-trimmed at construction so
// that two events describing the same conversation always normalize to the
// same key.
type SessionKey struct {
	AgentID   string
	Channel   string
	AccountID string
	PeerKind  PeerKind
	PeerID    string
}

// NewSessionKey builds a normalized SessionKey from raw components. AgentID
// and AccountID are additionally run through sanitizeKeyComponent, since
// those two arrive from config/CLI input and channel-account identifiers
// that occasionally carry punctuation (a Slack workspace id with a colon,
// for instance) that would otherwise corrupt the ":"-joined String form.
func NewSessionKey(agentID, channel, accountID string, peerKind PeerKind, peerID string) SessionKey {
	return SessionKey{
		AgentID:   sanitizeKeyComponent(normalizeKeyPart(agentID)),
		Channel:   normalizeKeyPart(channel),
		AccountID: sanitizeKeyComponent(normalizeKeyPart(accountID)),
		PeerKind:  PeerKind(normalizeKeyPart(string(peerKind))),
		PeerID:    normalizeKeyPart(peerID),
	}
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// String returns the canonical string form: agent_id:channel:account_id:peer_kind:peer_id.
func (k SessionKey) String() string {
	return strings.Join([]string{k.AgentID, k.Channel, k.AccountID, string(k.PeerKind), k.PeerID}, ":")
}

// IsZero reports whether k was never populated.
func (k SessionKey) IsZero() bool {
	return k == SessionKey{}
}

// IncomingSender describes who authored an inbound message.
type IncomingSender struct {
	ID          string
	DisplayName string
	IsBot       bool
}

// IncomingPeer describes the conversation the message arrived on.
type IncomingPeer struct {
	ID    string
	Kind  string // user, group, channel, thread
	Title string
}

// IncomingMessage is what a channel adapter synthesizes for every inbound
// event. The core only depends on this shape; the wire format that produced
// it is out of scope.
type IncomingMessage struct {
	Channel   string
	AccountID string
	Sender    IncomingSender
	Peer      IncomingPeer
	Content   string
	ReplyTo   string
	Metadata  map[string]any

	// AgentID, when set by the adapter, short-circuits binding resolution.
	AgentID string
}

// OutgoingTarget is where a core-produced reply should be delivered.
type OutgoingTarget struct {
	Channel   string
	AccountID string
	Peer      IncomingPeer
	ThreadID  string
}

// OutgoingMessage is what the core hands back to a channel adapter.
// Adapters must be idempotent with respect to ReplyTo.
type OutgoingMessage struct {
	Target  OutgoingTarget
	Content string
	ReplyTo string
}

// Router maps an IncomingMessage to a canonical SessionKey using the
// gateway's binding table: the first binding whose Channel and AccountID
// both match (empty matches any) wins. An event that matches no binding and
// has no configured default binding is refused with ErrNoBinding — no
// session is created for it.
type Router struct {
	bindings []config.BindingConfig
}

// NewRouter builds a Router from the gateway's configured bindings.
func NewRouter(bindings []config.BindingConfig) *Router {
	return &Router{bindings: bindings}
}

// Route resolves msg to a SessionKey, or returns ErrNoBinding.
func (r *Router) Route(msg IncomingMessage) (SessionKey, error) {
	agentID := strings.TrimSpace(msg.AgentID)
	if agentID == "" {
		agentID = r.resolveAgentID(msg.Channel, msg.AccountID)
	}
	if agentID == "" {
		return SessionKey{}, ErrNoBinding
	}

	peerKind := PeerKindForRaw(msg.Peer.Kind)
	peerID := msg.Peer.ID
	if peerKind == PeerKindGroup {
		// Group conversations are keyed by the group/channel/thread id,
		// falling back to the sender for channel types without a stable
		// peer id of their own.
		if strings.TrimSpace(peerID) == "" {
			peerID = msg.Sender.ID
		}
	}

	return NewSessionKey(agentID, msg.Channel, msg.AccountID, peerKind, peerID), nil
}

// resolveAgentID finds the first binding whose Channel and AccountID match
// (an empty binding field matches anything), returning "" if none match.
func (r *Router) resolveAgentID(channel, accountID string) string {
	channel = normalizeKeyPart(channel)
	accountID = normalizeKeyPart(accountID)
	for _, b := range r.bindings {
		bc := normalizeKeyPart(b.Channel)
		ba := normalizeKeyPart(b.AccountID)
		if bc != "" && bc != channel {
			continue
		}
		if ba != "" && ba != accountID {
			continue
		}
		if strings.TrimSpace(b.AgentID) != "" {
			return strings.TrimSpace(b.AgentID)
		}
	}
	return ""
}
