package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/aldenlin/celebmatch-linebot-go/internal/hosting"
	"github.com/aldenlin/celebmatch-linebot-go/internal/lineutil"
	"github.com/aldenlin/celebmatch-linebot-go/internal/storage"
)

// buildCarousel assembles up to MaxCards look-alike cards. Candidates
// with no celebrity record, or whose recorded sex disagrees with the
// detected gender, are skipped without consuming a cap slot. Returns nil
// when no candidate survives the filters.
func (h *Handler) buildCarousel(ctx context.Context, interp Interpretation, senderImageID string) (messaging_api.MessageInterface, error) {
	gender := ""
	age := 0
	if interp.Face != nil {
		gender = interp.Face.Gender
		age = interp.Face.EstimatedAge()
	}

	columns := make([]lineutil.CarouselColumn, 0, h.cfg.MaxCards)
	for _, candidate := range interp.Matches {
		if len(columns) >= h.cfg.MaxCards {
			break
		}

		celeb, err := h.store.FindCelebrityByID(ctx, candidate.Name)
		if err != nil {
			return nil, fmt.Errorf("look up celebrity %q: %w", candidate.Name, err)
		}
		if celeb == nil {
			if h.metrics != nil {
				h.metrics.RecordCacheMiss("celebs")
			}
			h.logger.WithField("celeb_id", candidate.Name).Debug("No record for candidate; skipping")
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordCacheHit("celebs")
		}
		if gender != "" && celeb.Sex != "" && !strings.EqualFold(celeb.Sex, gender) {
			continue
		}

		score := DisplayScore(candidate.Score, h.cfg.ScoreAdjustment)
		columns = append(columns, h.buildCard(celeb, senderImageID, score, gender, age, len(columns)))
	}

	if len(columns) == 0 {
		return nil, nil
	}

	msg := lineutil.NewCarouselTemplate("Your celebrity look-alikes", columns)
	lineutil.SetSender(msg, h.cfg.Sender)
	return msg, nil
}

// buildCard builds one carousel column. The share action alternates by
// card position: even index shares the bot, odd index adds it as friend.
func (h *Handler) buildCard(celeb *storage.Celebrity, senderImageID string, score int, gender string, age, index int) lineutil.CarouselColumn {
	agreeData := fmt.Sprintf("action=agree&celebImg=%s&senderImg=%s&score=%d", celeb.ImageID, senderImageID, score)
	if age > 0 {
		agreeData += fmt.Sprintf("&age=%d", age)
	}
	disagreeData := fmt.Sprintf("action=disagree&senderImg=%s&gender=%s&age=%d", senderImageID, gender, age)

	shareAction := lineutil.NewURIAction("Share", h.cfg.ShareURI)
	if index%2 == 1 {
		shareAction = lineutil.NewURIAction("Add as friend", h.cfg.AddFriendURI)
	}

	return lineutil.CarouselColumn{
		ThumbnailImageURL: h.thumbnailURL(celeb),
		Title:             lineutil.TruncateRunes(celeb.DisplayName(), h.cfg.TitleBudget),
		Text:              fmt.Sprintf("%d%% match", score),
		Actions: []lineutil.Action{
			lineutil.NewPostbackAction("Looks like me", agreeData),
			lineutil.NewPostbackAction("Not really", disagreeData),
			shareAction,
		},
	}
}

func (h *Handler) thumbnailURL(celeb *storage.Celebrity) string {
	if celeb.ImageID != "" {
		return h.hosting.FaceThumbnailURL(celeb.ImageID)
	}
	return hosting.EnsureHTTPS(celeb.ImageURL)
}
