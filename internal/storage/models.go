package storage

// Celebrity is a cached celebrity record.
// CelebID is the canonical identifier used in hosting URLs and postback
// data; lookups are case-insensitive (IDs are lowercased on write).
type Celebrity struct {
	CelebID   string
	EnName    string
	LocalName string
	ZhName    string
	Sex       string
	Age       int
	Country   string
	ImageURL  string
	ImageID   string
	CachedAt  int64
}

// DisplayName returns the name shown on carousel cards: the Chinese
// name when present, otherwise the local name, otherwise the English
// name, falling back to the raw ID.
func (c *Celebrity) DisplayName() string {
	switch {
	case c.ZhName != "":
		return c.ZhName
	case c.LocalName != "":
		return c.LocalName
	case c.EnName != "":
		return c.EnName
	default:
		return c.CelebID
	}
}
