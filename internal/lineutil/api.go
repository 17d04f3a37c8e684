package lineutil

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	apperrors "github.com/aldenlin/celebmatch-linebot-go/internal/errors"
)

// maxContentBytes caps inbound attachment downloads. LINE serves images
// up to 10 MB; the cap leaves headroom without risking unbounded reads.
const maxContentBytes = 20 << 20

// ProfileClient adapts the messaging API profile endpoint.
type ProfileClient struct {
	api *messaging_api.MessagingApiAPI
}

// NewProfileClient creates a profile lookup adapter.
func NewProfileClient(api *messaging_api.MessagingApiAPI) *ProfileClient {
	return &ProfileClient{api: api}
}

// GetProfilePicture returns the user's current profile picture URL.
// Users without a picture return "" and no error.
func (c *ProfileClient) GetProfilePicture(_ context.Context, userID string) (string, error) {
	profile, err := c.api.GetProfile(userID)
	if err != nil {
		return "", apperrors.NewExternalError("profile", apperrors.KindNetwork, err)
	}
	return profile.PictureUrl, nil
}

// ContentClient adapts the blob API for downloading message attachments.
type ContentClient struct {
	blob *messaging_api.MessagingApiBlobAPI
}

// NewContentClient creates an attachment download adapter.
func NewContentClient(blob *messaging_api.MessagingApiBlobAPI) *ContentClient {
	return &ContentClient{blob: blob}
}

// GetMessageContent downloads the bytes of one message attachment and
// returns them with the reported content type.
func (c *ContentClient) GetMessageContent(_ context.Context, messageID string) ([]byte, string, error) {
	resp, err := c.blob.GetMessageContent(messageID)
	if err != nil {
		return nil, "", apperrors.NewExternalError("content", apperrors.KindNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", apperrors.NewExternalError("content", apperrors.KindNotFound,
			fmt.Errorf("content download returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return nil, "", apperrors.NewExternalError("content", apperrors.KindNetwork, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
