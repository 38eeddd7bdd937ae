package model

type MessageKind string

const (
	MessageKindWelcome       MessageKind = "welcome"
	MessageKindPasswordReset MessageKind = "password_reset"
)

// Message is an outbound email.
type Message struct {
	Kind       MessageKind
	Recipients []string
	Subject    string
	Sender     string
	HTML       string
}
