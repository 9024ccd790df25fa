package maxapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"prodmax/internal/bot"
)

// Update types delivered to the webhook.
const (
	UpdateMessageCreated  = "message_created"
	UpdateMessageCallback = "message_callback"
)

// Update is one webhook delivery. Besides the documented envelope it accepts
// a flat {user_id, text} shape sent by older integrations.
type Update struct {
	UpdateType string    `json:"update_type"`
	Timestamp  int64     `json:"timestamp,omitempty"`
	Message    *Message  `json:"message,omitempty"`
	Callback   *Callback `json:"callback,omitempty"`

	UserID  int64           `json:"user_id,omitempty"`
	Text    string          `json:"text,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is a received message.
type Message struct {
	Sender    *User         `json:"sender,omitempty"`
	Recipient WireRecipient `json:"recipient"`
	Body      MessageBody   `json:"body"`
}

// WireRecipient is the recipient block of a received message. Its user_id is
// the bot itself, so replies go to chat_id.
type WireRecipient struct {
	ChatID   int64  `json:"chat_id,omitempty"`
	ChatType string `json:"chat_type,omitempty"`
	UserID   int64  `json:"user_id,omitempty"`
}

// MessageBody carries the message text.
type MessageBody struct {
	MID  string `json:"mid,omitempty"`
	Text string `json:"text"`
}

// Callback is an inline button press.
type Callback struct {
	CallbackID string `json:"callback_id,omitempty"`
	Payload    string `json:"payload"`
	User       *User  `json:"user,omitempty"`
}

// ParseUpdate extracts the user message from a webhook body. It reports false
// for updates that carry nothing to answer.
func ParseUpdate(data []byte) (bot.Incoming, bool, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return bot.Incoming{}, false, fmt.Errorf("decode update: %w", err)
	}

	if u.UpdateType == UpdateMessageCallback {
		return u.callbackIncoming()
	}

	if m := u.Message; m != nil {
		in := bot.Incoming{Text: m.Body.Text, Recipient: bot.Recipient{ChatID: m.Recipient.ChatID}}
		if m.Sender != nil {
			in.MaxUserID = m.Sender.UserID
			in.Name = m.Sender.DisplayName()
		}
		return in, in.MaxUserID != 0, nil
	}

	if u.UserID != 0 && u.Text != "" {
		return bot.Incoming{MaxUserID: u.UserID, Text: u.Text}, true, nil
	}
	return bot.Incoming{}, false, nil
}

func (u Update) callbackIncoming() (bot.Incoming, bool, error) {
	var in bot.Incoming
	payload := ""
	switch {
	case u.Callback != nil:
		payload = u.Callback.Payload
		if u.Callback.User != nil {
			in.MaxUserID = u.Callback.User.UserID
			in.Name = u.Callback.User.DisplayName()
		}
	case len(u.Payload) > 0:
		payload = string(u.Payload)
	}
	if in.MaxUserID == 0 {
		in.MaxUserID = u.UserID
	}
	if m := u.Message; m != nil {
		in.Recipient = bot.Recipient{ChatID: m.Recipient.ChatID}
		if in.MaxUserID == 0 && m.Sender != nil {
			in.MaxUserID = m.Sender.UserID
		}
	}

	in.Text = callbackCommand(payload)
	return in, in.MaxUserID != 0 && in.Text != "", nil
}

// callbackCommand accepts {"command": "..."}, a JSON string holding that
// object, or a bare command string.
func callbackCommand(payload string) string {
	raw := bytes.TrimSpace([]byte(payload))
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return ""
		}
		return callbackCommand(s)
	}
	if raw[0] == '{' {
		var obj struct {
			Command string `json:"command"`
		}
		if json.Unmarshal(raw, &obj) != nil {
			return ""
		}
		return obj.Command
	}
	return string(raw)
}
