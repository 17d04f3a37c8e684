package bot

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/aldenlin/celebmatch-linebot-go/internal/lineutil"
)

// Fixed reply texts.
const (
	welcomeText = "Hi! I'm CelebMatch \U0001F3AC\n\nSend me a picture of a face and I'll tell you which celebrity you look like."

	confirmPromptText = "Want to find out which celebrity you look like?"

	sendPictureText = "Send me a picture of your face and I'll find your celebrity twin!"

	apologyText = "Sorry, I couldn't process that picture.\n\nPlease try again in a moment."

	rateLimitedText = "You're sending pictures a bit too fast. Give me a moment and try again."
)

// welcomeMessages builds the two-part follow reply: welcome text then the
// confirmation prompt, in that order.
func (r *Router) welcomeMessages(userID string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithSender(welcomeText, r.sender),
		r.confirmPrompt(userID),
	}
}

// confirmPrompt builds the try-me confirmation template. The acting
// user's ID rides along in the postback so the bot can fetch their
// profile picture without another round trip.
func (r *Router) confirmPrompt(userID string) messaging_api.MessageInterface {
	data := "action=tryme"
	if userID != "" {
		data += "&user_id=" + userID
	}
	msg := lineutil.NewConfirmTemplate(
		"Find your celebrity look-alike",
		confirmPromptText,
		lineutil.NewPostbackAction("Try me", data),
		lineutil.NewMessageAction("Later", "Maybe later"),
	)
	lineutil.SetSender(msg, r.sender)
	return msg
}

func (r *Router) apologyMessages() []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithSender(apologyText, r.sender),
	}
}

func (r *Router) textMessages(text string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithSender(text, r.sender),
	}
}
