package agent

import (
	"regexp"
	"strings"
)

var imagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`!\[.*?\]\(data:image/[^)]+\)`),
	regexp.MustCompile(`<img[^>]*>`),
	regexp.MustCompile(`data:image/[^,]+,[A-Za-z0-9+/=]+`),
}

// StripImages removes inline image markup from model prose: markdown images
// with data URIs, <img> tags and bare base64 data URIs.
func StripImages(text string) string {
	for _, re := range imagePatterns {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}
