// Package bot turns messenger text into service calls and formats the replies.
package bot

import "context"

// Recipient addresses a reply. ChatID wins when both are set.
type Recipient struct {
	ChatID int64
	UserID int64
}

// Button is one keyboard button. A button without Command sends its Text back
// as a plain message; one with Command triggers a callback carrying it.
type Button struct {
	Text    string
	Command string
}

// Reply is an outgoing message.
type Reply struct {
	Text    string
	Buttons []Button
}

// Incoming is one user message, already extracted from the transport's update
// format.
type Incoming struct {
	MaxUserID int64
	Name      string
	Text      string
	// Recipient is where the conversation happens; zero means reply to the
	// user directly.
	Recipient Recipient
}

// Messenger delivers replies.
type Messenger interface {
	Send(ctx context.Context, to Recipient, r Reply) error
}
