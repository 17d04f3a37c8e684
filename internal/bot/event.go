package bot

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// EventKind is the closed set of webhook event variants the bot handles.
type EventKind int

// Event kinds, in dispatch precedence order.
const (
	KindUnknown EventKind = iota
	KindFollow
	KindJoin
	KindPostback
	KindImageMessage
	KindTextMessage
)

// String returns the metrics label for the event kind.
func (k EventKind) String() string {
	switch k {
	case KindFollow:
		return "follow"
	case KindJoin:
		return "join"
	case KindPostback:
		return "postback"
	case KindImageMessage:
		return "image"
	case KindTextMessage:
		return "text"
	default:
		return "unknown"
	}
}

// Event is the classified form of one webhook event. All type assertions
// against SDK event classes happen in classifyEvent; dispatch switches on
// Kind exhaustively with a default skip arm.
type Event struct {
	Kind       EventKind
	ReplyToken string
	Source     webhook.SourceInterface

	// Kind-specific payloads.
	Text         string // KindTextMessage
	MessageID    string // KindImageMessage
	PostbackData string // KindPostback
}

// Reply pairs a reply token with the messages to send for one event.
type Reply struct {
	Token    string
	Messages []messaging_api.MessageInterface
}

// classifyEvent maps an SDK event onto the closed Event union.
// Events outside the handled variants come back as KindUnknown.
func classifyEvent(event webhook.EventInterface) Event {
	switch e := event.(type) {
	case webhook.FollowEvent:
		return Event{Kind: KindFollow, ReplyToken: e.ReplyToken, Source: e.Source}
	case webhook.JoinEvent:
		return Event{Kind: KindJoin, ReplyToken: e.ReplyToken, Source: e.Source}
	case webhook.PostbackEvent:
		return Event{
			Kind:         KindPostback,
			ReplyToken:   e.ReplyToken,
			Source:       e.Source,
			PostbackData: e.Postback.Data,
		}
	case webhook.MessageEvent:
		switch msg := e.Message.(type) {
		case webhook.ImageMessageContent:
			return Event{
				Kind:       KindImageMessage,
				ReplyToken: e.ReplyToken,
				Source:     e.Source,
				MessageID:  msg.Id,
			}
		case webhook.TextMessageContent:
			return Event{
				Kind:       KindTextMessage,
				ReplyToken: e.ReplyToken,
				Source:     e.Source,
				Text:       msg.Text,
			}
		}
		return Event{Kind: KindUnknown}
	default:
		return Event{Kind: KindUnknown}
	}
}
