package lineutil

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// GetSender creates a sender shown as the message avatar. Passing the same
// sender to every message of one reply keeps the avatar consistent.
func GetSender(name, iconURL string) *messaging_api.Sender {
	sender := &messaging_api.Sender{Name: name}
	if iconURL != "" {
		sender.IconUrl = iconURL
	}
	return sender
}

// ErrorMessageWithSender creates the generic fallback reply used when an
// operation fails for reasons the user cannot fix.
func ErrorMessageWithSender(sender *messaging_api.Sender) messaging_api.MessageInterface {
	return NewTextMessageWithSender(
		"Sorry, something went wrong on our side.\n\nPlease try again in a moment.",
		sender,
	)
}
