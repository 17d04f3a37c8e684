package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/aldenlin/celebmatch-linebot-go/internal/bot/so"
	"github.com/aldenlin/celebmatch-linebot-go/internal/config"
	"github.com/aldenlin/celebmatch-linebot-go/internal/hosting"
	"github.com/aldenlin/celebmatch-linebot-go/internal/logger"
	"github.com/aldenlin/celebmatch-linebot-go/internal/ratelimit"
)

type fakeMatcher struct {
	messages []messaging_api.MessageInterface
	err      error
	calls    []string
}

func (f *fakeMatcher) HandleImage(_ context.Context, imageURL, _ string) ([]messaging_api.MessageInterface, error) {
	f.calls = append(f.calls, imageURL)
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

type fakeHosting struct {
	uploadErr   error
	remoteCalls []string
	uploadCalls int
}

func (f *fakeHosting) Upload(_ context.Context, _ io.Reader, _ string) (*hosting.UploadResult, error) {
	f.uploadCalls++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &hosting.UploadResult{URL: "https://img.test/senders/up.jpg", PublicID: "senders/up"}, nil
}

func (f *fakeHosting) UploadRemote(_ context.Context, imageURL, _ string) (*hosting.UploadResult, error) {
	f.remoteCalls = append(f.remoteCalls, imageURL)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &hosting.UploadResult{URL: "https://img.test/senders/remote.jpg", PublicID: "senders/remote"}, nil
}

func (f *fakeHosting) CompositeURL(celebImg, senderImg string, score, age int) string {
	return fmt.Sprintf("https://img.test/composite/%s/%s/%d/%d", celebImg, senderImg, score, age)
}

func (f *fakeHosting) AltCompositeURL(senderImg, gender string, age int) string {
	return fmt.Sprintf("https://img.test/alt/%s/%s/%d", senderImg, gender, age)
}

type fakeProfiles struct {
	pictureURL string
	err        error
}

func (f *fakeProfiles) GetProfilePicture(context.Context, string) (string, error) {
	return f.pictureURL, f.err
}

type fakeContent struct {
	data []byte
	err  error
}

func (f *fakeContent) GetMessageContent(context.Context, string) ([]byte, string, error) {
	return f.data, "image/jpeg", f.err
}

type fakeSearch struct {
	results []so.Result
	err     error
}

func (f *fakeSearch) Search(context.Context, string) ([]so.Result, error) {
	return f.results, f.err
}

type routerFixture struct {
	router  *Router
	matcher *fakeMatcher
	hosting *fakeHosting
	profile *fakeProfiles
	content *fakeContent
	search  *fakeSearch
}

func newTestRouter(t *testing.T, mutate func(*routerFixture)) *routerFixture {
	t.Helper()

	fx := &routerFixture{
		matcher: &fakeMatcher{messages: []messaging_api.MessageInterface{
			&messaging_api.TextMessage{Text: "match result"},
		}},
		hosting: &fakeHosting{},
		profile: &fakeProfiles{pictureURL: "https://profile.test/pic"},
		content: &fakeContent{data: []byte("image-bytes")},
		search:  &fakeSearch{},
	}
	if mutate != nil {
		mutate(fx)
	}

	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:       "chat",
		Burst:      100,
		RefillRate: 100,
	})
	t.Cleanup(limiter.Stop)

	botCfg := config.DefaultBotConfig()
	fx.router = NewRouter(RouterConfig{
		Matcher:     fx.matcher,
		Hosting:     fx.hosting,
		Profiles:    fx.profile,
		Content:     fx.content,
		Search:      fx.search,
		UserLimiter: limiter,
		Logger:      logger.NewWithWriter("error", io.Discard),
		BotConfig:   &botCfg,
	})
	return fx
}

func personalSource(userID string) webhook.SourceInterface {
	return webhook.UserSource{UserId: userID}
}

func textOf(t *testing.T, msg messaging_api.MessageInterface) string {
	t.Helper()
	text, ok := msg.(*messaging_api.TextMessage)
	if !ok {
		t.Fatalf("message is %T, want *TextMessage", msg)
	}
	return text.Text
}

func TestFollowRepliesWelcomeThenPrompt(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.FollowEvent{ReplyToken: "follow-token", Source: personalSource("U1")},
	})

	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	if replies[0].Token != "follow-token" {
		t.Errorf("token = %q, want follow-token", replies[0].Token)
	}
	if len(replies[0].Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(replies[0].Messages))
	}
	if got := textOf(t, replies[0].Messages[0]); got != welcomeText {
		t.Errorf("first message = %q, want welcome text", got)
	}
	if _, ok := replies[0].Messages[1].(*messaging_api.TemplateMessage); !ok {
		t.Errorf("second message is %T, want *TemplateMessage", replies[0].Messages[1])
	}
}

func TestJoinRepliesPromptOnly(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.JoinEvent{ReplyToken: "join-token", Source: webhook.GroupSource{GroupId: "G1", UserId: "U1"}},
	})

	if len(replies) != 1 || len(replies[0].Messages) != 1 {
		t.Fatalf("got %d replies, want 1 with 1 message", len(replies))
	}
	if _, ok := replies[0].Messages[0].(*messaging_api.TemplateMessage); !ok {
		t.Errorf("message is %T, want *TemplateMessage", replies[0].Messages[0])
	}
}

func TestImageFlowRepliesMatchResult(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.MessageEvent{
			ReplyToken: "img-token",
			Source:     personalSource("U1"),
			Message:    webhook.ImageMessageContent{Id: "m1"},
		},
	})

	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	if got := textOf(t, replies[0].Messages[0]); got != "match result" {
		t.Errorf("message = %q, want match result", got)
	}
	if fx.hosting.uploadCalls != 1 {
		t.Errorf("upload calls = %d, want 1", fx.hosting.uploadCalls)
	}
	if len(fx.matcher.calls) != 1 || fx.matcher.calls[0] != "https://img.test/senders/up.jpg" {
		t.Errorf("matcher calls = %v, want the uploaded URL", fx.matcher.calls)
	}
}

func TestImageFlowFailureRepliesSingleApology(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*routerFixture)
	}{
		{"content download fails", func(fx *routerFixture) { fx.content.err = errors.New("download failed") }},
		{"upload fails", func(fx *routerFixture) { fx.hosting.uploadErr = errors.New("upload failed") }},
		{"classification fails", func(fx *routerFixture) { fx.matcher.err = errors.New("vision down") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newTestRouter(t, tt.mutate)

			replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
				webhook.MessageEvent{
					ReplyToken: "img-token",
					Source:     personalSource("U1"),
					Message:    webhook.ImageMessageContent{Id: "m1"},
				},
			})

			if len(replies) != 1 {
				t.Fatalf("got %d replies, want exactly 1", len(replies))
			}
			if len(replies[0].Messages) != 1 {
				t.Fatalf("got %d messages, want exactly 1 apology", len(replies[0].Messages))
			}
			if got := textOf(t, replies[0].Messages[0]); got != apologyText {
				t.Errorf("message = %q, want apology text", got)
			}
		})
	}
}

func TestTryMeWithoutUserPromptsForPicture(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.PostbackEvent{
			ReplyToken: "pb-token",
			Source:     personalSource("U1"),
			Postback:   &webhook.PostbackContent{Data: "action=tryme"},
		},
	})

	if len(replies) != 1 || len(replies[0].Messages) != 1 {
		t.Fatalf("got %d replies, want 1 with 1 message", len(replies))
	}
	if got := textOf(t, replies[0].Messages[0]); got != sendPictureText {
		t.Errorf("message = %q, want send-picture prompt", got)
	}
	if len(fx.hosting.remoteCalls) != 0 {
		t.Errorf("remote upload should not run without a user reference")
	}
}

func TestTryMeWithUserRunsProfileFlow(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.PostbackEvent{
			ReplyToken: "pb-token",
			Source:     personalSource("U1"),
			Postback:   &webhook.PostbackContent{Data: "action=tryme&user_id=U1"},
		},
	})

	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	if got := textOf(t, replies[0].Messages[0]); got != "match result" {
		t.Errorf("message = %q, want match result", got)
	}
	if len(fx.hosting.remoteCalls) != 1 || fx.hosting.remoteCalls[0] != "https://profile.test/pic" {
		t.Errorf("remote calls = %v, want the profile picture URL", fx.hosting.remoteCalls)
	}
}

func TestAgreeBuildsCompositeImage(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.PostbackEvent{
			ReplyToken: "pb-token",
			Source:     personalSource("U1"),
			Postback:   &webhook.PostbackContent{Data: "action=agree&celebImg=celebs/star&senderImg=senders/42&score=87&age=25"},
		},
	})

	if len(replies) != 1 || len(replies[0].Messages) != 1 {
		t.Fatalf("got %d replies, want 1 with 1 message (personal chat)", len(replies))
	}
	img, ok := replies[0].Messages[0].(*messaging_api.ImageMessage)
	if !ok {
		t.Fatalf("message is %T, want *ImageMessage", replies[0].Messages[0])
	}
	want := "https://img.test/composite/celebs/star/senders/42/87/25"
	if img.OriginalContentUrl != want {
		t.Errorf("image URL = %q, want %q", img.OriginalContentUrl, want)
	}
}

func TestAgreeInGroupAppendsPrompt(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.PostbackEvent{
			ReplyToken: "pb-token",
			Source:     webhook.GroupSource{GroupId: "G1", UserId: "U1"},
			Postback:   &webhook.PostbackContent{Data: "action=agree&celebImg=c&senderImg=s&score=50"},
		},
	})

	if len(replies) != 1 || len(replies[0].Messages) != 2 {
		t.Fatalf("group agree should reply image plus prompt, got %+v", replies)
	}
	if _, ok := replies[0].Messages[1].(*messaging_api.TemplateMessage); !ok {
		t.Errorf("second message is %T, want *TemplateMessage", replies[0].Messages[1])
	}
}

func TestDisagreeBuildsAltComposite(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.PostbackEvent{
			ReplyToken: "pb-token",
			Source:     personalSource("U1"),
			Postback:   &webhook.PostbackContent{Data: "action=disagree&senderImg=42&gender=female&age=25"},
		},
	})

	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	img, ok := replies[0].Messages[0].(*messaging_api.ImageMessage)
	if !ok {
		t.Fatalf("message is %T, want *ImageMessage", replies[0].Messages[0])
	}
	if img.OriginalContentUrl != "https://img.test/alt/42/female/25" {
		t.Errorf("image URL = %q, should embed sender image 42 and the female variant", img.OriginalContentUrl)
	}
}

func TestMalformedPostbackSkipped(t *testing.T) {
	fx := newTestRouter(t, nil)

	for _, data := range []string{
		"no-equals-sign",
		"celebImg=a&action=agree",
		"action=agree&celebImg=a",         // missing senderImg and score
		"action=agree&celebImg=a&score=x", // non-numeric score
	} {
		replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
			webhook.PostbackEvent{
				ReplyToken: "pb-token",
				Source:     personalSource("U1"),
				Postback:   &webhook.PostbackContent{Data: data},
			},
		})
		if len(replies) != 0 {
			t.Errorf("postback %q should be skipped, got %d replies", data, len(replies))
		}
	}
}

func TestUnknownPostbackActionSkipped(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.PostbackEvent{
			ReplyToken: "pb-token",
			Source:     personalSource("U1"),
			Postback:   &webhook.PostbackContent{Data: "action=selfdestruct"},
		},
	})
	if len(replies) != 0 {
		t.Errorf("unknown action should be skipped, got %d replies", len(replies))
	}
}

func TestTextSearchCommand(t *testing.T) {
	fx := newTestRouter(t, func(fx *routerFixture) {
		fx.search.results = []so.Result{
			{Title: "How to reverse a string", Link: "https://stackoverflow.com/q/1"},
			{Title: "Reverse a rune slice", Link: "https://stackoverflow.com/q/2"},
		}
	})

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.MessageEvent{
			ReplyToken: "txt-token",
			Source:     personalSource("U1"),
			Message:    webhook.TextMessageContent{Text: "  @SO reverse string  "},
		},
	})

	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	got := textOf(t, replies[0].Messages[0])
	if !strings.Contains(got, "How to reverse a string") || !strings.Contains(got, "https://stackoverflow.com/q/2") {
		t.Errorf("reply should list result titles and links, got %q", got)
	}
}

func TestPlainTextIgnored(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.MessageEvent{
			ReplyToken: "txt-token",
			Source:     personalSource("U1"),
			Message:    webhook.TextMessageContent{Text: "hello there"},
		},
	})
	if len(replies) != 0 {
		t.Errorf("plain text should be ignored, got %d replies", len(replies))
	}
}

func TestBatchProcessedInOrder(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.FollowEvent{ReplyToken: "token-1", Source: personalSource("U1")},
		webhook.UnsendEvent{Source: personalSource("U1")},
		webhook.PostbackEvent{
			ReplyToken: "token-2",
			Source:     personalSource("U2"),
			Postback:   &webhook.PostbackContent{Data: "action=tryme"},
		},
	})

	if len(replies) != 2 {
		t.Fatalf("got %d replies, want 2 (unknown event skipped)", len(replies))
	}
	if replies[0].Token != "token-1" || replies[1].Token != "token-2" {
		t.Errorf("replies out of delivery order: %q then %q", replies[0].Token, replies[1].Token)
	}
}

func TestMissingReplyTokenDropsReply(t *testing.T) {
	fx := newTestRouter(t, nil)

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.FollowEvent{ReplyToken: "", Source: personalSource("U1")},
	})
	if len(replies) != 0 {
		t.Errorf("reply without token should be dropped, got %d replies", len(replies))
	}
}

func TestRateLimitPersonalChatGetsNotice(t *testing.T) {
	fx := newTestRouter(t, nil)
	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{Name: "chat", Burst: 1, RefillRate: 0.001})
	t.Cleanup(limiter.Stop)
	fx.router.userLimiter = limiter

	event := func(token string) webhook.EventInterface {
		return webhook.MessageEvent{
			ReplyToken: token,
			Source:     personalSource("U1"),
			Message:    webhook.ImageMessageContent{Id: "m1"},
		}
	}

	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		event("token-1"), event("token-2"),
	})

	if len(replies) != 2 {
		t.Fatalf("got %d replies, want 2", len(replies))
	}
	if got := textOf(t, replies[1].Messages[0]); got != rateLimitedText {
		t.Errorf("second reply = %q, want rate limit notice", got)
	}
	if len(fx.matcher.calls) != 1 {
		t.Errorf("matcher ran %d times, want 1 (second event limited)", len(fx.matcher.calls))
	}
}

func TestRateLimitGroupChatSilent(t *testing.T) {
	fx := newTestRouter(t, nil)
	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{Name: "chat", Burst: 1, RefillRate: 0.001})
	t.Cleanup(limiter.Stop)
	fx.router.userLimiter = limiter

	source := webhook.GroupSource{GroupId: "G1", UserId: "U1"}
	replies := fx.router.HandleEvents(context.Background(), []webhook.EventInterface{
		webhook.MessageEvent{ReplyToken: "token-1", Source: source, Message: webhook.ImageMessageContent{Id: "m1"}},
		webhook.MessageEvent{ReplyToken: "token-2", Source: source, Message: webhook.ImageMessageContent{Id: "m2"}},
	})

	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1 (limited group event dropped silently)", len(replies))
	}
}
