package bot

import (
	"fmt"
	"strings"
)

// PostbackData is the structured form of a postback payload.
// The wire format is ordered key=value segments joined by "&", with the
// first segment naming the action: "action=agree&celebImg=a&senderImg=b".
// Values are preserved verbatim; handlers embed them unchanged into
// generated URLs.
type PostbackData struct {
	Action string
	Params map[string]string

	// order keeps the original segment order for logging.
	order []string
}

// Get returns the value for a key and whether it was present.
func (p *PostbackData) Get(key string) (string, bool) {
	value, ok := p.Params[key]
	return value, ok
}

// Keys returns the parameter keys in wire order.
func (p *PostbackData) Keys() []string {
	return p.order
}

// ParsePostback parses a postback data string. The first segment must be
// "action=<name>"; later segments are action-specific parameters. Splits
// on "&" then on the first "=" so values may themselves contain "=".
func ParsePostback(data string) (*PostbackData, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, fmt.Errorf("empty postback data")
	}

	pb := &PostbackData{Params: make(map[string]string)}
	for i, segment := range strings.Split(data, "&") {
		if segment == "" {
			continue
		}
		key, value, found := strings.Cut(segment, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("malformed postback segment %q", segment)
		}
		if i == 0 {
			if key != "action" {
				return nil, fmt.Errorf("postback data must start with action=, got %q", segment)
			}
			pb.Action = value
			continue
		}
		pb.Params[key] = value
		pb.order = append(pb.order, key)
	}

	if pb.Action == "" {
		return nil, fmt.Errorf("postback action is empty")
	}
	return pb, nil
}
