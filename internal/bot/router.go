// Package bot contains the event router: it classifies webhook events,
// dispatches them to the right handler and assembles the replies.
package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/aldenlin/celebmatch-linebot-go/internal/archive"
	"github.com/aldenlin/celebmatch-linebot-go/internal/bot/so"
	"github.com/aldenlin/celebmatch-linebot-go/internal/config"
	"github.com/aldenlin/celebmatch-linebot-go/internal/ctxutil"
	"github.com/aldenlin/celebmatch-linebot-go/internal/hosting"
	"github.com/aldenlin/celebmatch-linebot-go/internal/lineutil"
	"github.com/aldenlin/celebmatch-linebot-go/internal/logger"
	"github.com/aldenlin/celebmatch-linebot-go/internal/metrics"
	"github.com/aldenlin/celebmatch-linebot-go/internal/ratelimit"
)

// Matcher runs the classification flow for one hosted image.
type Matcher interface {
	HandleImage(ctx context.Context, imageURL, senderImageID string) ([]messaging_api.MessageInterface, error)
}

// ImageHosting is the slice of the hosting client the router needs.
type ImageHosting interface {
	Upload(ctx context.Context, r io.Reader, tag string) (*hosting.UploadResult, error)
	UploadRemote(ctx context.Context, imageURL, tag string) (*hosting.UploadResult, error)
	CompositeURL(celebImageID, senderImageID string, score, age int) string
	AltCompositeURL(senderImageID, gender string, age int) string
}

// ProfileProvider fetches a user's current profile picture URL.
type ProfileProvider interface {
	GetProfilePicture(ctx context.Context, userID string) (string, error)
}

// ContentProvider downloads the bytes of an inbound message attachment.
type ContentProvider interface {
	GetMessageContent(ctx context.Context, messageID string) ([]byte, string, error)
}

// Searcher queries the Stack Overflow search API for the legacy @so mode.
type Searcher interface {
	Search(ctx context.Context, query string) ([]so.Result, error)
}

// Router dispatches classified events to handlers. Events are processed
// sequentially in delivery order; one event's failure never blocks the
// next, and each reply token gets at most one reply.
type Router struct {
	matcher     Matcher
	hosting     ImageHosting
	profiles    ProfileProvider
	content     ContentProvider
	archiver    *archive.Archiver
	search      Searcher
	userLimiter *ratelimit.KeyedLimiter
	logger      *logger.Logger
	metrics     *metrics.Metrics
	sender      *messaging_api.Sender
	cfg         *config.BotConfig
}

// RouterConfig holds the router's collaborators.
type RouterConfig struct {
	Matcher     Matcher
	Hosting     ImageHosting
	Profiles    ProfileProvider
	Content     ContentProvider
	Archiver    *archive.Archiver
	Search      Searcher
	UserLimiter *ratelimit.KeyedLimiter
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	Sender      *messaging_api.Sender
	BotConfig   *config.BotConfig
}

// NewRouter creates an event router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		matcher:     cfg.Matcher,
		hosting:     cfg.Hosting,
		profiles:    cfg.Profiles,
		content:     cfg.Content,
		archiver:    cfg.Archiver,
		search:      cfg.Search,
		userLimiter: cfg.UserLimiter,
		logger:      cfg.Logger.WithModule("router"),
		metrics:     cfg.Metrics,
		sender:      cfg.Sender,
		cfg:         cfg.BotConfig,
	}
}

// HandleEvents processes one webhook batch sequentially in delivery
// order and returns the replies to send, one per reply token.
func (r *Router) HandleEvents(ctx context.Context, events []webhook.EventInterface) []Reply {
	replies := make([]Reply, 0, len(events))
	for _, raw := range events {
		ev := classifyEvent(raw)
		if ev.Kind == KindUnknown {
			r.logger.WithField("event_type", fmt.Sprintf("%T", raw)).Debug("Skipping unhandled event")
			continue
		}

		start := time.Now()
		messages := r.processEvent(ctx, ev)
		if r.metrics != nil {
			status := "handled"
			if len(messages) == 0 {
				status = "skipped"
			}
			r.metrics.RecordWebhook(ev.Kind.String(), status, time.Since(start).Seconds())
		}

		if len(messages) == 0 || ev.ReplyToken == "" {
			continue
		}
		if len(ev.ReplyToken) < r.cfg.MinReplyTokenLength {
			r.logger.WithField("token_length", len(ev.ReplyToken)).Debug("Invalid reply token; skipping reply")
			continue
		}
		if len(messages) > r.cfg.MaxMessagesPerReply {
			messages = messages[:r.cfg.MaxMessagesPerReply]
		}
		replies = append(replies, Reply{Token: ev.ReplyToken, Messages: messages})
	}
	return replies
}

// processEvent dispatches a single classified event.
func (r *Router) processEvent(ctx context.Context, ev Event) []messaging_api.MessageInterface {
	chatID := GetChatID(ev.Source)
	userID := GetUserID(ev.Source)
	ctx = ctxutil.WithChatID(ctx, chatID)
	ctx = ctxutil.WithUserID(ctx, userID)

	if allowed, messages := r.checkRateLimit(ev, chatID); !allowed {
		return messages
	}

	processCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), r.cfg.WebhookTimeout)
	defer cancel()

	switch ev.Kind {
	case KindFollow:
		r.logger.Info("New user followed the bot")
		return r.welcomeMessages(userID)
	case KindJoin:
		r.logger.Info("Bot joined a group or room")
		return []messaging_api.MessageInterface{r.confirmPrompt(userID)}
	case KindPostback:
		return r.handlePostback(processCtx, ev)
	case KindImageMessage:
		return r.handleImageMessage(processCtx, ev)
	case KindTextMessage:
		return r.handleText(processCtx, ev)
	default:
		return nil
	}
}

// checkRateLimit applies the per-chat limiter. Follow and join events are
// exempt so the welcome flow always works. Over-limit group events are
// dropped silently; personal chats get a polite note.
func (r *Router) checkRateLimit(ev Event, chatID string) (bool, []messaging_api.MessageInterface) {
	if ev.Kind == KindFollow || ev.Kind == KindJoin {
		return true, nil
	}
	if chatID == "" || r.userLimiter == nil {
		return true, nil
	}
	if r.userLimiter.Allow(chatID) {
		return true, nil
	}

	logChatID := chatID
	if len(chatID) > 8 {
		logChatID = chatID[:8] + "..."
	}
	r.logger.WithField("chat_id", logChatID).Warn("Chat rate limit exceeded")

	if IsPersonalChat(ev.Source) {
		return false, r.textMessages(rateLimitedText)
	}
	return false, nil
}

// handlePostback parses the postback payload once at the boundary, then
// dispatches on the action. Malformed data is skipped, not an error.
func (r *Router) handlePostback(ctx context.Context, ev Event) []messaging_api.MessageInterface {
	if len(ev.PostbackData) > r.cfg.MaxPostbackDataSize {
		r.logger.WithField("size", len(ev.PostbackData)).Warn("Postback data too long; skipping")
		return nil
	}

	pb, err := ParsePostback(ev.PostbackData)
	if err != nil {
		r.logger.WithError(err).Debug("Malformed postback data; skipping")
		return nil
	}

	switch pb.Action {
	case "tryme":
		return r.handleTryMe(ctx, pb)
	case "agree":
		return r.handleAgree(ev, pb)
	case "disagree":
		return r.handleDisagree(ev, pb)
	default:
		r.logger.WithField("action", pb.Action).Debug("Unknown postback action; skipping")
		return nil
	}
}

// handleTryMe runs the classification flow against the user's profile
// picture, or prompts for a picture when no user reference is present.
func (r *Router) handleTryMe(ctx context.Context, pb *PostbackData) []messaging_api.MessageInterface {
	userID, ok := pb.Get("user_id")
	if !ok || userID == "" {
		return r.textMessages(sendPictureText)
	}

	pictureURL, err := r.profiles.GetProfilePicture(ctx, userID)
	if err != nil {
		r.logger.WithError(err).Warn("Profile picture lookup failed")
		return r.apologyMessages()
	}
	if pictureURL == "" {
		return r.textMessages(sendPictureText)
	}

	upload, err := r.hosting.UploadRemote(ctx, pictureURL, "profile")
	if err != nil {
		r.logger.WithError(err).Warn("Profile picture upload failed")
		return r.apologyMessages()
	}

	messages, err := r.matcher.HandleImage(ctx, upload.URL, upload.PublicID)
	if err != nil {
		r.logger.WithError(err).Warn("Classification of profile picture failed")
		return r.apologyMessages()
	}
	return messages
}

// handleAgree builds the comparison image from the stored card params.
// The values are embedded into the URL exactly as carried by the wire.
func (r *Router) handleAgree(ev Event, pb *PostbackData) []messaging_api.MessageInterface {
	celebImg, okCeleb := pb.Get("celebImg")
	senderImg, okSender := pb.Get("senderImg")
	scoreStr, okScore := pb.Get("score")
	if !okCeleb || !okSender || !okScore {
		r.logger.Debug("Agree postback missing required params; skipping")
		return nil
	}
	score, err := strconv.Atoi(scoreStr)
	if err != nil {
		r.logger.WithError(err).Debug("Agree postback score is not a number; skipping")
		return nil
	}
	age := 0
	if ageStr, ok := pb.Get("age"); ok {
		age, _ = strconv.Atoi(ageStr)
	}

	url := r.hosting.CompositeURL(celebImg, senderImg, score, age)
	messages := []messaging_api.MessageInterface{r.imageMessage(url)}
	if !IsPersonalChat(ev.Source) {
		messages = append(messages, r.confirmPrompt(GetUserID(ev.Source)))
	}
	return messages
}

// handleDisagree builds the alternate composite from the sender image and
// the detected gender/age.
func (r *Router) handleDisagree(ev Event, pb *PostbackData) []messaging_api.MessageInterface {
	senderImg, okSender := pb.Get("senderImg")
	gender, okGender := pb.Get("gender")
	ageStr, okAge := pb.Get("age")
	if !okSender || !okGender || !okAge {
		r.logger.Debug("Disagree postback missing required params; skipping")
		return nil
	}
	age, err := strconv.Atoi(ageStr)
	if err != nil {
		r.logger.WithError(err).Debug("Disagree postback age is not a number; skipping")
		return nil
	}

	url := r.hosting.AltCompositeURL(senderImg, gender, age)
	messages := []messaging_api.MessageInterface{r.imageMessage(url)}
	if !IsPersonalChat(ev.Source) {
		messages = append(messages, r.confirmPrompt(GetUserID(ev.Source)))
	}
	return messages
}

// handleImageMessage downloads the inbound image, archives it, uploads it
// to hosting and runs the classification flow. Any failure collapses to
// exactly one apology reply.
func (r *Router) handleImageMessage(ctx context.Context, ev Event) []messaging_api.MessageInterface {
	data, contentType, err := r.content.GetMessageContent(ctx, ev.MessageID)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to download image content")
		return r.apologyMessages()
	}

	if r.archiver.Enabled() {
		if _, err := r.archiver.Archive(ctx, data, contentType); err != nil {
			r.logger.WithError(err).Warn("Image archival failed; continuing")
		}
	}

	upload, err := r.hosting.Upload(ctx, bytes.NewReader(data), "inbound")
	if err != nil {
		r.logger.WithError(err).Warn("Image upload failed")
		return r.apologyMessages()
	}

	messages, err := r.matcher.HandleImage(ctx, upload.URL, upload.PublicID)
	if err != nil {
		r.logger.WithError(err).Warn("Image classification failed")
		return r.apologyMessages()
	}
	return messages
}

// handleText serves the legacy @so mode: a case-insensitive prefix check
// on the trimmed text routes the rest to the Stack Overflow search. Any
// other text is ignored.
func (r *Router) handleText(ctx context.Context, ev Event) []messaging_api.MessageInterface {
	text := strings.TrimSpace(ev.Text)
	if len(text) < 3 || !strings.EqualFold(text[:3], "@so") || r.search == nil {
		return nil
	}

	query := strings.TrimSpace(text[3:])
	if query == "" {
		return r.textMessages("Add a search query after @so, for example: @so golang slices")
	}

	results, err := r.search.Search(ctx, query)
	if err != nil {
		r.logger.WithError(err).Warn("Stack Overflow search failed")
		return []messaging_api.MessageInterface{lineutil.ErrorMessageWithSender(r.sender)}
	}
	if len(results) == 0 {
		return r.textMessages(fmt.Sprintf("No Stack Overflow results for %q.", query))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Top Stack Overflow results for %q:\n", query))
	limit := 3
	if len(results) < limit {
		limit = len(results)
	}
	for _, result := range results[:limit] {
		b.WriteString(fmt.Sprintf("\n\u25CF %s\n%s", result.Title, result.Link))
	}
	return r.textMessages(b.String())
}

func (r *Router) imageMessage(url string) messaging_api.MessageInterface {
	msg := lineutil.NewImageMessage(url, url)
	msg.Sender = r.sender
	return msg
}
