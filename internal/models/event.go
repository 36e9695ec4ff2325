package models

import "time"

// EventKind classifies an inbound chat event.
type EventKind string

const (
	EventMessage      EventKind = "message"
	EventCommand      EventKind = "command"
	EventCallback     EventKind = "callback"
	EventMemberJoined EventKind = "member_joined"
	EventMemberLeft   EventKind = "member_left"
)

// Event is what the transport layer hands to the dispatcher. IsPrivileged is
// resolved by the transport (chat admin or configured bot admin). For command
// events Text holds the raw argument string and Args its fields.
type Event struct {
	ID                 string
	Kind               EventKind
	ChatID             int64
	ChatTitle          string
	UserID             int64
	Username           string
	DisplayName        string
	MessageID          int
	Text               string
	Command            string
	Args               []string
	Callback           string
	IsPrivileged       bool
	ReplyToUserID      int64
	ReplyToDisplayName string
	Time               time.Time
}

// Button is one inline keyboard choice.
type Button struct {
	Text string
	Data string
}

// OutgoingMessage is a reply to send back into the chat.
type OutgoingMessage struct {
	Text     string
	HTML     bool
	Keyboard [][]Button
	ReplyTo  int
	// Edit replaces the message the callback came from instead of sending a new one.
	Edit bool
}

// SideEffectKind names an action the transport performs against the chat.
type SideEffectKind string

const (
	EffectMute          SideEffectKind = "mute"
	EffectDeleteMessage SideEffectKind = "delete_message"
)

// SideEffect asks the transport to act on a user or message.
type SideEffect struct {
	Kind      SideEffectKind
	UserID    int64
	MessageID int
	Duration  time.Duration
}

// Response is the dispatcher's answer to one event.
type Response struct {
	Messages       []OutgoingMessage
	Effects        []SideEffect
	AnswerCallback string
}

// Reply appends a plain text message.
func (r *Response) Reply(text string) {
	r.Messages = append(r.Messages, OutgoingMessage{Text: text})
}

// ReplyHTML appends an HTML message.
func (r *Response) ReplyHTML(text string, keyboard [][]Button) {
	r.Messages = append(r.Messages, OutgoingMessage{Text: text, HTML: true, Keyboard: keyboard})
}
