// Package webhook verifies, parses and routes Evolution API webhook deliveries.
package webhook

import (
	"strings"
	"time"
)

// Kind classifies a webhook event.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindMessageUpsert    Kind = "messages.upsert"
	KindMessageUpdate    Kind = "messages.update"
	KindMessageDelete    Kind = "messages.delete"
	KindSendMessage      Kind = "send.message"
	KindConnectionUpdate Kind = "connection.update"
	KindQRCodeUpdated    Kind = "qrcode.updated"
	KindPresenceUpdate   Kind = "presence.update"
	KindButtonResponse   Kind = "button.response"
	KindPollUpdate       Kind = "poll.update"
)

var knownKinds = map[Kind]struct{}{
	KindMessageUpsert:    {},
	KindMessageUpdate:    {},
	KindMessageDelete:    {},
	KindSendMessage:      {},
	KindConnectionUpdate: {},
	KindQRCodeUpdated:    {},
	KindPresenceUpdate:   {},
	KindButtonResponse:   {},
	KindPollUpdate:       {},
}

// Kinds lists every known kind, KindUnknown excluded.
func Kinds() []Kind {
	return []Kind{
		KindMessageUpsert,
		KindMessageUpdate,
		KindMessageDelete,
		KindSendMessage,
		KindConnectionUpdate,
		KindQRCodeUpdated,
		KindPresenceUpdate,
		KindButtonResponse,
		KindPollUpdate,
	}
}

// ParseKind maps a provider event name onto a Kind. Both the dotted
// webhook form ("messages.upsert") and the enum form ("MESSAGES_UPSERT")
// are accepted. Unrecognized names yield KindUnknown.
func ParseKind(name string) Kind {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "."))
	if _, ok := knownKinds[k]; ok {
		return k
	}
	return KindUnknown
}

// Valid reports whether k is a known kind or KindUnknown.
func (k Kind) Valid() bool {
	if k == KindUnknown {
		return true
	}
	_, ok := knownKinds[k]
	return ok
}

// Event is the normalized view of one webhook delivery. Fields that the
// payload does not carry are left zero.
type Event struct {
	Kind Kind
	// Name is the event name as delivered.
	Name     string
	Instance string
	// Sender is the bare phone number, without the JID domain.
	Sender      string
	MessageID   string
	DedupeKey   string
	PushName    string
	MessageType string
	Text        string
	FromMe      bool
	Timestamp   time.Time
	// Data is the payload's "data" object.
	Data map[string]any
}
