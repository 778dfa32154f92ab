package evolution

// Request bodies as the upstream API expects them. Field names are fixed by
// the upstream and differ from the envelope tags on the message variants.

type textPayload struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	Delay  int    `json:"delay"`
}

type buttonText struct {
	DisplayText string `json:"displayText"`
}

type buttonPayload struct {
	ButtonID   string     `json:"buttonId"`
	ButtonText buttonText `json:"buttonText"`
	Type       int        `json:"type"`
}

type buttonsPayload struct {
	Number  string          `json:"number"`
	Text    string          `json:"text"`
	Footer  string          `json:"footer,omitempty"`
	Buttons []buttonPayload `json:"buttons"`
	Delay   int             `json:"delay"`
}

type pollPayload struct {
	Number          string   `json:"number"`
	Name            string   `json:"name"`
	SelectableCount int      `json:"selectableCount"`
	Values          []string `json:"values"`
	Delay           int      `json:"delay"`
}

type mediaPayload struct {
	Number    string `json:"number"`
	Media     string `json:"media"`
	MediaType string `json:"mediatype"`
	MimeType  string `json:"mimetype,omitempty"`
	Caption   string `json:"caption,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	Delay     int    `json:"delay"`
}

type audioPayload struct {
	Number string `json:"number"`
	Audio  string `json:"audio"`
	Delay  int    `json:"delay"`
}

type stickerPayload struct {
	Number  string `json:"number"`
	Sticker string `json:"sticker"`
	Delay   int    `json:"delay"`
}

type locationPayload struct {
	Number    string  `json:"number"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
	Delay     int     `json:"delay"`
}

type listPayload struct {
	Number      string        `json:"number"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	ButtonText  string        `json:"buttonText"`
	Footer      string        `json:"footer,omitempty"`
	Sections    []ListSection `json:"sections"`
	Delay       int           `json:"delay"`
}

type reactionBody struct {
	Key      MessageKey `json:"key"`
	Reaction string     `json:"reaction"`
}

type reactionPayload struct {
	ReactionMessage reactionBody `json:"reactionMessage"`
}
