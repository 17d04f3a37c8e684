package lineutil

// LINE API character limits (rune count).
// Reference: https://developers.line.biz/en/reference/messaging-api/
const (
	MaxTextMessageLength = 5000 // Text message max content length
	MaxAltTextLength     = 400  // Template message alt text length
	MaxPostbackData      = 300  // Postback action data length

	// Template message limits
	MaxTemplateTitleLength   = 40  // Buttons/Carousel template title
	MaxTemplateTextNoImage   = 160 // Buttons template text without image
	MaxTemplateTextWithImage = 60  // Buttons template text with image
	MaxCarouselTemplateText  = 60  // Carousel template text
	MaxCarouselColumnCount   = 10  // Max columns in a carousel
	MaxTemplateActionCount   = 4   // Max actions per template column

	// Quick reply limits
	MaxQuickReplyItemCount = 13 // Max items in a quick reply
	MaxQuickReplyLabel     = 20 // Max label length for quick reply item
)
