package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	apperrors "github.com/aldenlin/celebmatch-linebot-go/internal/errors"
	"github.com/aldenlin/celebmatch-linebot-go/internal/lineutil"
	"github.com/aldenlin/celebmatch-linebot-go/internal/logger"
	"github.com/aldenlin/celebmatch-linebot-go/internal/metrics"
	"github.com/aldenlin/celebmatch-linebot-go/internal/storage"
	"github.com/aldenlin/celebmatch-linebot-go/internal/vision"
)

// VisionAPI is the slice of the vision client the handler needs.
type VisionAPI interface {
	Classify(ctx context.Context, imageURL string) ([]vision.ClassifierResult, error)
	DetectFaces(ctx context.Context, imageURL string) (*vision.Face, error)
}

// ImageHost builds delivery URLs for hosted images.
type ImageHost interface {
	FaceThumbnailURL(publicID string) string
}

// CelebrityStore looks up celebrity records by classifier label.
type CelebrityStore interface {
	FindCelebrityByID(ctx context.Context, id string) (*storage.Celebrity, error)
}

// Config holds the knobs for reply construction.
type Config struct {
	MaxCards          int
	ScoreAdjustment   float64
	Threshold         float64
	TitleBudget       int
	FaceDetectEnabled bool
	ShareURI          string
	AddFriendURI      string
	Sender            *messaging_api.Sender
}

// Handler runs the classification flow for one image and builds the reply.
type Handler struct {
	vision  VisionAPI
	hosting ImageHost
	store   CelebrityStore
	logger  *logger.Logger
	metrics *metrics.Metrics
	wrap    *apperrors.ErrorWrapper
	cfg     Config
}

// NewHandler creates a match handler.
func NewHandler(visionAPI VisionAPI, hosting ImageHost, store CelebrityStore, log *logger.Logger, m *metrics.Metrics, cfg Config) *Handler {
	if cfg.MaxCards <= 0 {
		cfg.MaxCards = 3
	}
	if cfg.TitleBudget <= 0 {
		cfg.TitleBudget = lineutil.MaxTemplateTitleLength
	}
	return &Handler{
		vision:  visionAPI,
		hosting: hosting,
		store:   store,
		logger:  log.WithModule("match"),
		metrics: m,
		wrap:    apperrors.NewWrapper("match", "handle_image"),
		cfg:     cfg,
	}
}

// HandleImage classifies a hosted image and builds the reply messages.
// senderImageID is the hosted public id of the sender's picture, embedded
// into the card postback actions.
func (h *Handler) HandleImage(ctx context.Context, imageURL, senderImageID string) ([]messaging_api.MessageInterface, error) {
	results, err := h.vision.Classify(ctx, imageURL)
	if err != nil {
		return nil, h.wrap.Wrap(err, "classify image")
	}

	var face *vision.Face
	faceChecked := false
	if h.cfg.FaceDetectEnabled {
		face, err = h.vision.DetectFaces(ctx, imageURL)
		switch {
		case err == nil, errors.Is(err, apperrors.ErrNoFace):
			// A definitive answer either way: ErrNoFace means the image
			// has no face, not that the detector failed.
			faceChecked = true
		default:
			// Fall back to the label heuristic rather than failing the
			// whole flow on a face-detection outage.
			h.logger.WithError(err).Warn("Face detection failed; using label heuristic")
			face = nil
		}
	}

	interp := Interpret(results, face, faceChecked, h.cfg.Threshold)
	if h.metrics != nil {
		h.metrics.RecordClassificationBranch(string(interp.Branch))
	}
	h.logger.WithField("branch", string(interp.Branch)).
		WithField("match_count", len(interp.Matches)).
		Debug("Interpreted classification result")

	switch interp.Branch {
	case BranchCarousel:
		msg, err := h.buildCarousel(ctx, interp, senderImageID)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			// Every candidate was filtered out; treat like a person with
			// no usable match.
			return h.personOnlyReply(interp), nil
		}
		return []messaging_api.MessageInterface{msg}, nil
	case BranchCelebrityOnly:
		return h.celebrityOnlyReply(interp), nil
	case BranchPersonOnly:
		return h.personOnlyReply(interp), nil
	default:
		return h.neitherReply(interp), nil
	}
}

func (h *Handler) celebrityOnlyReply(interp Interpretation) []messaging_api.MessageInterface {
	label := interp.BestSecondaryLabel
	if label == "" {
		label = interp.TopLabel
	}
	text := fmt.Sprintf("We could not spot a face, but this looks like %s to us.\n\nSend a clear picture of a face and we'll find your celebrity twin!", label)
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithSender(text, h.cfg.Sender),
	}
}

func (h *Handler) personOnlyReply(interp Interpretation) []messaging_api.MessageInterface {
	label := interp.TopLabel
	if label == "" {
		label = "a person"
	}
	text := fmt.Sprintf("We see %s, but no celebrity match stood out.\n\nTry another picture!", label)
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithSender(text, h.cfg.Sender),
	}
}

func (h *Handler) neitherReply(interp Interpretation) []messaging_api.MessageInterface {
	label := interp.TopLabel
	if label == "" {
		label = "something we could not identify"
	}
	text := fmt.Sprintf("Hmm, that looks like %s.\n\nSend a clearer picture of a face and we'll find your celebrity look-alike!", label)
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithSender(text, h.cfg.Sender),
	}
}
