package gateway

import (
	"time"

	"github.com/mcdev12/timing/go/internal/textfmt"
)

// MessageType distinguishes what the server sends to observers.
type MessageType string

const (
	MessageTypeNotice     MessageType = "notice"
	MessageTypeDisconnect MessageType = "disconnect"
)

// Message is the JSON document written to observer connections. Text is the
// plain rendering of Markup.
type Message struct {
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	Markup    string      `json:"markup"`
	Timestamp time.Time   `json:"timestamp"`
}

func newMessage(typ MessageType, markup string) Message {
	return Message{
		Type:      typ,
		Text:      textfmt.Plain(markup),
		Markup:    markup,
		Timestamp: time.Now().UTC(),
	}
}

// maxCloseReason is the largest reason a websocket close frame can carry.
const maxCloseReason = 123

// closeReason trims text to fit a close frame without splitting a rune.
func closeReason(text string) string {
	if len(text) <= maxCloseReason {
		return text
	}
	cut := maxCloseReason
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
