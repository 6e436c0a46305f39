// Package polymarket holds the wire types shared by the Polymarket API
// clients: lenient number/list decoding, the event-slug field variants the
// different services use, and the browser-like request headers.
package polymarket

import (
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Upstream base URLs.
const (
	DataAPIURL = "https://data-api.polymarket.com"
	CLOBURL    = "https://clob.polymarket.com"
	GammaURL   = "https://gamma-api.polymarket.com"
	SiteURL    = "https://polymarket.com"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// SetBrowserHeaders applies the headers the public endpoints expect from a
// browser session. Some of them reject bare clients.
func SetBrowserHeaders(h http.Header) {
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "application/json")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Origin", SiteURL)
	h.Set("Referer", SiteURL+"/")
	h.Set("Cache-Control", "no-cache")
}

// JSONFloat handles both numeric and string JSON values.
type JSONFloat float64

func (j *JSONFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*j = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*j = JSONFloat(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*j = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*j = JSONFloat(f)
	return nil
}

func (j JSONFloat) Float64() float64 {
	return float64(j)
}

// FlexString accepts a JSON string or number and keeps its textual form.
// Event and group ids come back as either depending on the endpoint.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// StringList decodes either a JSON array of scalars or a string holding a
// JSON-encoded array, which is how Gamma ships outcomes and token ids.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*l = nil
			return nil
		}
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return err
		}
	}
	out := make(StringList, 0, len(raw))
	for _, r := range raw {
		var fs FlexString
		if err := json.Unmarshal(r, &fs); err != nil {
			return err
		}
		out = append(out, string(fs))
	}
	*l = out
	return nil
}

// Float returns element i parsed as a float, or 0 when absent or malformed.
func (l StringList) Float(i int) float64 {
	if i < 0 || i >= len(l) {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(l[i]), 64)
	if err != nil {
		return 0
	}
	return f
}

// SlugRef is a nested {slug, id} object.
type SlugRef struct {
	ID   FlexString `json:"id"`
	Slug string     `json:"slug"`
}

// SlugHints collects the fields different endpoints use to name a market's
// parent event. Embed it in a response type to pick them all up.
type SlugHints struct {
	GroupItemSlug  string    `json:"groupItemSlug"`
	EventSlugCamel string    `json:"eventSlug"`
	EventSlugSnake string    `json:"event_slug"`
	ParentSlug     string    `json:"parentSlug"`
	GroupSlug      string    `json:"groupSlug"`
	Events         []SlugRef `json:"events"`
	Event          *SlugRef  `json:"event"`
	Group          *SlugRef  `json:"group"`

	EventIDCamel FlexString `json:"eventId"`
	EventIDSnake FlexString `json:"event_id"`
	GroupID      FlexString `json:"group_id"`
}

// EventSlug returns the first non-empty event slug variant.
func (h SlugHints) EventSlug() string {
	candidates := []string{h.GroupItemSlug, h.EventSlugCamel, h.EventSlugSnake, h.ParentSlug, h.GroupSlug}
	if len(h.Events) > 0 {
		candidates = append(candidates, h.Events[0].Slug)
	}
	if h.Event != nil {
		candidates = append(candidates, h.Event.Slug)
	}
	if h.Group != nil {
		candidates = append(candidates, h.Group.Slug)
	}
	return FirstNonEmpty(candidates...)
}

// EventID returns the first non-empty event id variant.
func (h SlugHints) EventID() string {
	return FirstNonEmpty(string(h.EventIDSnake), string(h.EventIDCamel), string(h.GroupID))
}

// FirstNonEmpty returns the first argument that is not blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
