package evolution

import (
	"fmt"
	"slices"
	"strings"
)

// Text is a plain text message.
type Text struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	// Delay in milliseconds the upstream waits (showing "typing…") before sending.
	Delay int `json:"delay,omitempty"`
}

// NewText normalizes and validates t.
func NewText(t Text) (Text, error) {
	t.Number = strings.TrimSpace(t.Number)
	return t, t.Validate()
}

func (Text) Kind() Kind { return KindText }
func (t Text) Recipient() string { return t.Number }
func (Text) path() string { return "/message/sendText" }

func (t Text) Validate() error {
	if err := validateNumber(KindText, t.Number); err != nil {
		return err
	}
	if err := validateDelay(KindText, t.Delay); err != nil {
		return err
	}
	return validateLen(KindText, "text", t.Text, 1, 0)
}

func (t Text) payload() any {
	return textPayload{Number: t.Number, Text: t.Text, Delay: t.Delay}
}

// Button is one reply button of a Buttons message.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

const (
	maxButtons     = 3
	maxButtonField = 64
)

// Buttons is a text message with up to three reply buttons.
type Buttons struct {
	Number  string   `json:"number"`
	Text    string   `json:"text"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []Button `json:"buttons"`
	Delay   int      `json:"delay,omitempty"`
}

// NewButtons normalizes and validates b.
func NewButtons(b Buttons) (Buttons, error) {
	b.Number = strings.TrimSpace(b.Number)
	b.Buttons = slices.Clone(b.Buttons)
	return b, b.Validate()
}

func (Buttons) Kind() Kind { return KindButtons }
func (b Buttons) Recipient() string { return b.Number }
func (Buttons) path() string { return "/message/sendButtons" }

func (b Buttons) Validate() error {
	if err := validateNumber(KindButtons, b.Number); err != nil {
		return err
	}
	if err := validateDelay(KindButtons, b.Delay); err != nil {
		return err
	}
	if err := validateLen(KindButtons, "text", b.Text, 1, 0); err != nil {
		return err
	}
	if len(b.Buttons) < 1 || len(b.Buttons) > maxButtons {
		return invalid(KindButtons, "buttons", fmt.Sprintf("must contain 1 to %d buttons", maxButtons))
	}
	for i, btn := range b.Buttons {
		if err := validateLen(KindButtons, fmt.Sprintf("buttons[%d].id", i), btn.ID, 1, maxButtonField); err != nil {
			return err
		}
		if err := validateLen(KindButtons, fmt.Sprintf("buttons[%d].label", i), btn.Label, 1, maxButtonField); err != nil {
			return err
		}
	}
	return nil
}

func (b Buttons) payload() any {
	p := buttonsPayload{
		Number:  b.Number,
		Text:    b.Text,
		Footer:  b.Footer,
		Delay:   b.Delay,
		Buttons: make([]buttonPayload, 0, len(b.Buttons)),
	}
	for _, btn := range b.Buttons {
		p.Buttons = append(p.Buttons, buttonPayload{
			ButtonID:   btn.ID,
			ButtonText: buttonText{DisplayText: btn.Label},
			Type:       1,
		})
	}
	return p
}

const (
	minPollOptions     = 2
	maxPollSelectable  = 5
	maxPollFieldLength = 100
)

// Poll asks the recipient to pick SelectableCount of Values.
type Poll struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	// SelectableCount defaults to 1 when zero.
	SelectableCount int      `json:"selectableCount,omitempty"`
	Values          []string `json:"values"`
	Delay           int      `json:"delay,omitempty"`
}

// NewPoll normalizes and validates p.
func NewPoll(p Poll) (Poll, error) {
	p.Number = strings.TrimSpace(p.Number)
	p.Values = slices.Clone(p.Values)
	p.SelectableCount = p.selectable()
	return p, p.Validate()
}

func (Poll) Kind() Kind { return KindPoll }
func (p Poll) Recipient() string { return p.Number }
func (Poll) path() string { return "/message/sendPoll" }

func (p Poll) Validate() error {
	if err := validateNumber(KindPoll, p.Number); err != nil {
		return err
	}
	if err := validateDelay(KindPoll, p.Delay); err != nil {
		return err
	}
	if err := validateLen(KindPoll, "name", p.Name, 1, maxPollFieldLength); err != nil {
		return err
	}
	if len(p.Values) < minPollOptions {
		return invalid(KindPoll, "values", fmt.Sprintf("must contain at least %d options", minPollOptions))
	}
	for i, v := range p.Values {
		if err := validateLen(KindPoll, fmt.Sprintf("values[%d]", i), v, 1, maxPollFieldLength); err != nil {
			return err
		}
	}
	selectable := p.selectable()
	if selectable < 1 || selectable > maxPollSelectable {
		return invalid(KindPoll, "selectableCount", fmt.Sprintf("must be between 1 and %d", maxPollSelectable))
	}
	if selectable > len(p.Values) {
		return invalid(KindPoll, "selectableCount", "must not exceed the number of options")
	}
	return nil
}

func (p Poll) selectable() int {
	if p.SelectableCount == 0 {
		return 1
	}
	return p.SelectableCount
}

func (p Poll) payload() any {
	return pollPayload{
		Number:          p.Number,
		Name:            p.Name,
		SelectableCount: p.selectable(),
		Values:          p.Values,
		Delay:           p.Delay,
	}
}

const minURLLength = 5

// Media sends an image, video, audio file or document by URL.
type Media struct {
	Number  string `json:"number"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
	// MediaType is image, video, audio or document. When empty it is derived
	// from MimeType, then from the URL extension.
	MediaType MediaType `json:"mediaType,omitempty"`
	MimeType  string    `json:"mimeType,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	Delay     int       `json:"delay,omitempty"`
}

// NewMedia resolves the media classification and validates m.
func NewMedia(m Media) (Media, error) {
	m.Number = strings.TrimSpace(m.Number)
	m.URL = strings.TrimSpace(m.URL)
	if err := m.Validate(); err != nil {
		return m, err
	}
	m.MediaType, _ = m.resolveType()
	return m, nil
}

func (m Media) resolveType() (MediaType, error) {
	switch {
	case m.MediaType != "":
		resolved, ok := ClassifyMediaType(string(m.MediaType))
		if !ok {
			return "", invalid(KindMedia, "mediaType", fmt.Sprintf("%q is not one of image, video, audio, document", m.MediaType))
		}
		return resolved, nil
	case m.MimeType != "":
		resolved, ok := ClassifyMediaType(m.MimeType)
		if !ok {
			return "", invalid(KindMedia, "mimeType", fmt.Sprintf("%q is not a recognized mime type", m.MimeType))
		}
		return resolved, nil
	default:
		return DetectMediaType(m.URL), nil
	}
}

func (Media) Kind() Kind { return KindMedia }
func (m Media) Recipient() string { return m.Number }
func (Media) path() string { return "/message/sendMedia" }

func (m Media) Validate() error {
	if err := validateNumber(KindMedia, m.Number); err != nil {
		return err
	}
	if err := validateDelay(KindMedia, m.Delay); err != nil {
		return err
	}
	if err := validateLen(KindMedia, "url", m.URL, minURLLength, 0); err != nil {
		return err
	}
	_, err := m.resolveType()
	return err
}

func (m Media) payload() any {
	mediaType, _ := m.resolveType()
	return mediaPayload{
		Number:    m.Number,
		Media:     m.URL,
		MediaType: string(mediaType),
		MimeType:  m.MimeType,
		Caption:   m.Caption,
		FileName:  m.FileName,
		Delay:     m.Delay,
	}
}

// Audio sends a voice note, rendered upstream as a recorded audio message.
type Audio struct {
	Number string `json:"number"`
	URL    string `json:"url"`
	Delay  int    `json:"delay,omitempty"`
}

// NewAudio normalizes and validates a.
func NewAudio(a Audio) (Audio, error) {
	a.Number = strings.TrimSpace(a.Number)
	a.URL = strings.TrimSpace(a.URL)
	return a, a.Validate()
}

func (Audio) Kind() Kind { return KindAudio }
func (a Audio) Recipient() string { return a.Number }
func (Audio) path() string { return "/message/sendWhatsAppAudio" }

func (a Audio) Validate() error {
	if err := validateNumber(KindAudio, a.Number); err != nil {
		return err
	}
	if err := validateDelay(KindAudio, a.Delay); err != nil {
		return err
	}
	return validateLen(KindAudio, "url", a.URL, minURLLength, 0)
}

func (a Audio) payload() any {
	return audioPayload{Number: a.Number, Audio: a.URL, Delay: a.Delay}
}

// Sticker sends a sticker image by URL.
type Sticker struct {
	Number string `json:"number"`
	URL    string `json:"url"`
	Delay  int    `json:"delay,omitempty"`
}

// NewSticker normalizes and validates s.
func NewSticker(s Sticker) (Sticker, error) {
	s.Number = strings.TrimSpace(s.Number)
	s.URL = strings.TrimSpace(s.URL)
	return s, s.Validate()
}

func (Sticker) Kind() Kind { return KindSticker }
func (s Sticker) Recipient() string { return s.Number }
func (Sticker) path() string { return "/message/sendSticker" }

func (s Sticker) Validate() error {
	if err := validateNumber(KindSticker, s.Number); err != nil {
		return err
	}
	if err := validateDelay(KindSticker, s.Delay); err != nil {
		return err
	}
	return validateLen(KindSticker, "url", s.URL, minURLLength, 0)
}

func (s Sticker) payload() any {
	return stickerPayload{Number: s.Number, Sticker: s.URL, Delay: s.Delay}
}

// Location shares a pin.
type Location struct {
	Number    string  `json:"number"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
	Delay     int     `json:"delay,omitempty"`
}

// NewLocation normalizes and validates l.
func NewLocation(l Location) (Location, error) {
	l.Number = strings.TrimSpace(l.Number)
	return l, l.Validate()
}

func (Location) Kind() Kind { return KindLocation }
func (l Location) Recipient() string { return l.Number }
func (Location) path() string { return "/message/sendLocation" }

func (l Location) Validate() error {
	if err := validateNumber(KindLocation, l.Number); err != nil {
		return err
	}
	if err := validateDelay(KindLocation, l.Delay); err != nil {
		return err
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return invalid(KindLocation, "latitude", "must be between -90 and 90")
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return invalid(KindLocation, "longitude", "must be between -180 and 180")
	}
	return nil
}

func (l Location) payload() any {
	return locationPayload{
		Number:    l.Number,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Name:      l.Name,
		Address:   l.Address,
		Delay:     l.Delay,
	}
}

// ListRow is a selectable entry of a list section.
type ListRow struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	RowID       string `json:"rowId"`
}

// ListSection groups rows under a heading.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// List is an interactive menu opened by a button.
type List struct {
	Number      string        `json:"number"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	ButtonText  string        `json:"buttonText"`
	Footer      string        `json:"footer,omitempty"`
	Sections    []ListSection `json:"sections"`
	Delay       int           `json:"delay,omitempty"`
}

// NewList normalizes and validates l. Sections and rows are copied.
func NewList(l List) (List, error) {
	l.Number = strings.TrimSpace(l.Number)
	sections := make([]ListSection, len(l.Sections))
	for i, s := range l.Sections {
		sections[i] = ListSection{Title: s.Title, Rows: slices.Clone(s.Rows)}
	}
	l.Sections = sections
	return l, l.Validate()
}

func (List) Kind() Kind { return KindList }
func (l List) Recipient() string { return l.Number }
func (List) path() string { return "/message/sendList" }

func (l List) Validate() error {
	if err := validateNumber(KindList, l.Number); err != nil {
		return err
	}
	if err := validateDelay(KindList, l.Delay); err != nil {
		return err
	}
	if err := validateLen(KindList, "title", l.Title, 1, 0); err != nil {
		return err
	}
	if err := validateLen(KindList, "buttonText", l.ButtonText, 1, 0); err != nil {
		return err
	}
	if len(l.Sections) == 0 {
		return invalid(KindList, "sections", "must contain at least one section")
	}
	for i, s := range l.Sections {
		if len(s.Rows) == 0 {
			return invalid(KindList, fmt.Sprintf("sections[%d].rows", i), "must contain at least one row")
		}
		for j, r := range s.Rows {
			field := fmt.Sprintf("sections[%d].rows[%d]", i, j)
			if err := validateLen(KindList, field+".title", r.Title, 1, 0); err != nil {
				return err
			}
			if err := validateLen(KindList, field+".rowId", r.RowID, 1, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l List) payload() any {
	return listPayload{
		Number:      l.Number,
		Title:       l.Title,
		Description: l.Description,
		ButtonText:  l.ButtonText,
		Footer:      l.Footer,
		Sections:    l.Sections,
		Delay:       l.Delay,
	}
}

// MessageKey identifies an existing message on WhatsApp.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// Reaction reacts to the message identified by Key. An empty Reaction
// removes a previous reaction.
type Reaction struct {
	// Number is optional; it fills Key.RemoteJID when that is empty.
	Number   string     `json:"number,omitempty"`
	Key      MessageKey `json:"key"`
	Reaction string     `json:"reaction"`
}

// NewReaction normalizes and validates r.
func NewReaction(r Reaction) (Reaction, error) {
	r.Number = strings.TrimSpace(r.Number)
	r.Key.RemoteJID = strings.TrimSpace(r.Key.RemoteJID)
	if r.Key.RemoteJID == "" && r.Number != "" {
		r.Key.RemoteJID = r.Number + "@s.whatsapp.net"
	}
	return r, r.Validate()
}

func (Reaction) Kind() Kind { return KindReaction }

func (r Reaction) Recipient() string {
	if r.Number != "" {
		return r.Number
	}
	return r.Key.RemoteJID
}

func (Reaction) path() string { return "/message/sendReaction" }

func (r Reaction) Validate() error {
	if r.Number != "" {
		if err := validateNumber(KindReaction, r.Number); err != nil {
			return err
		}
	}
	if r.Key.RemoteJID == "" {
		return invalid(KindReaction, "key.remoteJid", "is required")
	}
	return validateLen(KindReaction, "key.id", r.Key.ID, 1, 0)
}

func (r Reaction) payload() any {
	return reactionPayload{ReactionMessage: reactionBody{Key: r.Key, Reaction: r.Reaction}}
}
