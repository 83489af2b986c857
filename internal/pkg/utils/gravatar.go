package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// GetGravatarURL returns the Gravatar image for email, falling back to the
// "mystery person" placeholder. Size defaults to 200px.
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = 200
	}

	hash := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=mp", hash, size)
}
