package utils

import (
	"math/rand"
	"regexp"
)

var urlRe = regexp.MustCompile(`https?://[^\s]+`)

var emoji = []string{"😼", "😺", "😸", "😹", "😻", "🙀", "😿", "😾", "😩", "🙈", "🙉", "🙊", "😳"}

// FindFirstURL returns the first http(s) URL in s, or "".
func FindFirstURL(s string) string {
	return urlRe.FindString(s)
}

// RandomEmoji returns a decorative emoji for bot replies.
func RandomEmoji() string {
	return emoji[rand.Intn(len(emoji))]
}
