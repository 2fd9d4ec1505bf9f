package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultPostFormat is used when an integration has no custom post format.
const DefaultPostFormat = "🔗 URL: {url}"

// Post is the platform-agnostic result of a successful download.
type Post struct {
	// ID is the storage identifier. Zero means the post has not been saved yet.
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Author      string    `json:"author,omitempty"`
	Description string    `json:"description,omitempty"`
	Views       *int64    `json:"views,omitempty"`
	Likes       *int64    `json:"likes,omitempty"`
	Media       []byte    `json:"-"`
	Spoiler     bool      `json:"spoiler"`
	Created     time.Time `json:"created,omitempty"`

	// Format is the post format template of the integration the post came from.
	Format string `json:"-"`
}

// Persisted reports whether the post exists in storage.
func (p *Post) Persisted() bool {
	return p.ID != 0
}

// HasMedia reports whether a media payload is attached.
func (p *Post) HasMedia() bool {
	return len(p.Media) > 0
}

// String renders the post with its integration format, or the default one.
func (p *Post) String() string {
	return p.Render(p.Format)
}

// Render fills the placeholders of a post format template.
// Supported placeholders: {url} {author} {description} {views} {likes} {created}.
func (p *Post) Render(format string) string {
	if strings.TrimSpace(format) == "" {
		format = DefaultPostFormat
	}

	var views, likes, created string
	if p.Views != nil {
		views = HumanNumber(*p.Views)
	}
	if p.Likes != nil {
		likes = HumanNumber(*p.Likes)
	}
	if !p.Created.IsZero() {
		created = HumanDate(p.Created)
	}

	r := strings.NewReplacer(
		"{url}", p.URL,
		"{author}", p.Author,
		"{description}", p.Description,
		"{views}", views,
		"{likes}", likes,
		"{created}", created,
	)
	return r.Replace(format)
}

var numberSuffixes = []string{"", "K", "M", "B", "T"}

// HumanNumber formats a count with three significant digits and a magnitude suffix (1.23K, 4M).
func HumanNumber(n int64) string {
	num, _ := strconv.ParseFloat(strconv.FormatFloat(float64(n), 'g', 3, 64), 64)
	magnitude := 0
	for math.Abs(num) >= 1000 && magnitude < len(numberSuffixes)-1 {
		magnitude++
		num /= 1000
	}
	return strconv.FormatFloat(num, 'f', -1, 64) + numberSuffixes[magnitude]
}

// HumanDate drops the time of day when it is exactly midnight.
func HumanDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format("Jan 2, 2006")
	}
	return t.Format("15:04 · Jan 2, 2006")
}
