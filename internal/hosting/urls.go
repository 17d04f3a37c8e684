package hosting

import (
	"fmt"
	"strings"
)

// buildURL assembles a delivery URL with the given transformation chain.
func (c *Client) buildURL(transformation, publicID string) string {
	if transformation == "" {
		return fmt.Sprintf("%s/%s/image/upload/%s", c.cfg.DeliveryBaseURL, c.cfg.CloudName, publicID)
	}
	return fmt.Sprintf("%s/%s/image/upload/%s/%s", c.cfg.DeliveryBaseURL, c.cfg.CloudName, transformation, publicID)
}

// overlayID converts a public id into the form used inside an overlay
// layer parameter (path separators become colons).
func overlayID(publicID string) string {
	return strings.ReplaceAll(publicID, "/", ":")
}

// EnsureHTTPS upgrades a plain-http delivery URL. Stored celebrity image
// URLs predate the account's https default, hence the p:/ to ps:/ swap.
func EnsureHTTPS(rawURL string) string {
	if strings.HasPrefix(rawURL, "http:/") {
		return strings.Replace(rawURL, "p:/", "ps:/", 1)
	}
	return rawURL
}

// FaceThumbnailURL returns a 240px face-cropped thumbnail of the image.
func (c *Client) FaceThumbnailURL(publicID string) string {
	return c.buildURL("c_thumb,g_face,w_240", publicID)
}

// PreviewURL returns a 240px-wide preview of the image.
func (c *Client) PreviewURL(publicID string) string {
	return EnsureHTTPS(c.buildURL("w_240", publicID))
}

// CompositeURL builds the agree comparison image: the celebrity image and
// the sender image side by side over the base template, with the display
// score rendered between them.
func (c *Client) CompositeURL(celebImageID, senderImageID string, score, age int) string {
	transformation := fmt.Sprintf(
		"l_%s,c_thumb,g_face,w_220,h_220,g_west,x_40/l_%s,c_thumb,g_face,w_220,h_220,g_east,x_40/l_text:Arial_48_bold:%d%%25,g_south,y_60",
		overlayID(celebImageID),
		overlayID(senderImageID),
		score,
	)
	if age > 0 {
		transformation += fmt.Sprintf("/l_text:Arial_28:age%%20%d,g_south,y_20", age)
	}
	return c.buildURL(transformation, c.cfg.CompositeTemplateID)
}

// AltCompositeURL builds the disagree image: the sender image over the
// per-gender base template with the detected age rendered below.
func (c *Client) AltCompositeURL(senderImageID, gender string, age int) string {
	template := c.cfg.CompositeMaleTemplateID
	if strings.EqualFold(gender, "female") {
		template = c.cfg.CompositeFemaleTemplate
	}
	transformation := fmt.Sprintf(
		"l_%s,c_thumb,g_face,w_260,h_260,g_center/l_text:Arial_32_bold:age%%20%d,g_south,y_40",
		overlayID(senderImageID),
		age,
	)
	return c.buildURL(transformation, template)
}
