package delivery

import (
	"fmt"

	"embed-bot/models"
)

const (
	ellipsis        = "..."
	spoilerEllipsis = "||..."
)

// BuildCaption composes the message text for post. A spoiler post has its
// rendered text wrapped in spoiler markers. Captions longer than maxLength
// characters are cut so the result, marker included, is exactly maxLength.
func BuildCaption(post *models.Post, mention, decoration string, maxLength int) string {
	body := post.String()
	if post.Spoiler {
		body = "||" + body + "||"
	}
	return Truncate(fmt.Sprintf("Here you go %s %s.\n%s", mention, decoration, body), maxLength, post.Spoiler)
}

// Truncate shortens caption to maxLength characters. For spoiler captions the
// marker also closes the spoiler that the cut left open.
func Truncate(caption string, maxLength int, spoiler bool) string {
	runes := []rune(caption)
	if len(runes) <= maxLength {
		return caption
	}
	marker := ellipsis
	if spoiler {
		marker = spoilerEllipsis
	}
	keep := maxLength - len(marker)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + marker
}

// AttachmentName is the upload filename for a payload with extension ext.
func AttachmentName(ext string, spoiler bool) string {
	if spoiler {
		return "SPOILER_file" + ext
	}
	return "file" + ext
}
