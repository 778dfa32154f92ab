package webhook

import (
	"bytes"
	"crypto/md5" //nolint:gosec // dedupe fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPayload is returned by Parse for bodies that are not a JSON object.
var ErrInvalidPayload = errors.New("webhook: payload is not a JSON object")

// Parse decodes a raw delivery body and normalizes it. The event name is
// read from the payload's "event" field. Any JSON object normalizes; only
// non-JSON or non-object bodies fail.
func Parse(body []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload == nil {
		return Event{}, ErrInvalidPayload
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Event{}, fmt.Errorf("%w: trailing data after object", ErrInvalidPayload)
	}

	name, _ := payload["event"].(string)
	return normalize(name, payload, body), nil
}

// Normalize derives an Event from a decoded payload. Missing or oddly typed
// fields leave the matching Event field empty; it never fails.
func Normalize(eventName string, payload map[string]any) Event {
	return normalize(eventName, payload, nil)
}

func normalize(eventName string, payload map[string]any, raw []byte) Event {
	if eventName == "" {
		eventName = str(payload, "event")
	}
	data := object(payload, "data")
	key := object(data, "key")

	evt := Event{
		Kind:        classify(eventName, payload),
		Name:        eventName,
		Instance:    instanceName(payload),
		Sender:      sender(payload, data, key),
		MessageID:   firstNonEmpty(str(key, "id"), str(data, "keyId"), str(data, "id")),
		PushName:    str(data, "pushName"),
		MessageType: str(data, "messageType"),
		Text:        messageText(object(data, "message")),
		FromMe:      boolean(key, "fromMe"),
		Timestamp:   timestamp(payload, data),
		Data:        data,
	}
	evt.DedupeKey = dedupeKey(evt.Kind, eventName, payload, data, raw)
	return evt
}

// classify prefers a payload-level "type" for interactive replies, which
// arrive under generic event names.
func classify(eventName string, payload map[string]any) Kind {
	switch str(payload, "type") {
	case "button_response":
		return KindButtonResponse
	case "poll_update", "poll_vote", "poll":
		return KindPollUpdate
	}
	return ParseKind(eventName)
}

func instanceName(payload map[string]any) string {
	if s := str(payload, "instance"); s != "" {
		return s
	}
	return str(object(payload, "instance"), "instanceName")
}

func sender(payload, data, key map[string]any) string {
	jid := str(key, "remoteJid")
	if strings.HasSuffix(jid, "@g.us") {
		jid = firstNonEmpty(str(key, "participant"), str(data, "participant"))
	}
	jid = firstNonEmpty(jid, str(payload, "from"), str(data, "from"), str(data, "remoteJid"), str(payload, "remoteJid"))
	return bareNumber(jid)
}

// bareNumber strips the JID domain and any device suffix:
// "5511999887766:12@s.whatsapp.net" becomes "5511999887766".
func bareNumber(jid string) string {
	user, _, _ := strings.Cut(jid, "@")
	user, _, _ = strings.Cut(user, ":")
	return strings.TrimSpace(user)
}

func messageText(msg map[string]any) string {
	return firstNonEmpty(
		str(msg, "conversation"),
		str(object(msg, "extendedTextMessage"), "text"),
		str(object(msg, "imageMessage"), "caption"),
		str(object(msg, "videoMessage"), "caption"),
		str(object(msg, "documentMessage"), "caption"),
		str(object(msg, "buttonsResponseMessage"), "selectedDisplayText"),
		str(object(msg, "listResponseMessage"), "title"),
	)
}

func timestamp(payload, data map[string]any) time.Time {
	if secs, ok := integer(data, "messageTimestamp"); ok && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	if s := str(payload, "date_time"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// dedupeKey prefers the delivery id. A message key id is shared by every
// event about that message, so it is scoped by kind, and for status updates
// by the reported status.
func dedupeKey(kind Kind, eventName string, payload, data map[string]any, raw []byte) string {
	if id := str(payload, "id"); id != "" {
		return id
	}
	if id := firstNonEmpty(str(object(payload, "key"), "id"), str(object(data, "key"), "id"), str(data, "keyId")); id != "" {
		scope := string(kind)
		if kind == KindUnknown && eventName != "" {
			scope = strings.ToLower(strings.TrimSpace(eventName))
		}
		key := scope + ":" + id
		if status := str(data, "status"); status != "" && kind == KindMessageUpdate {
			key += ":" + status
		}
		return key
	}
	if raw == nil {
		// Re-encoding a map sorts its keys, so equal payloads hash equally.
		raw, _ = json.Marshal(payload)
	}
	sum := md5.Sum(raw) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func object(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}

func boolean(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func integer(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
