// Package reply post-processes final turn text before sending: media URL
// extraction and bounded-size chunking.
package reply

import (
	"regexp"
	"strings"
)

// MediaKind classifies an extracted media URL.
type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

var (
	imageURLRe = regexp.MustCompile(`(?i)(?:https?://|file:///)[^\s)]+?\.(?:png|jpg|jpeg|gif|bmp|webp)`)
	videoURLRe = regexp.MustCompile(`(?i)(?:https?://|file:///)[^\s)]+?\.(?:mp4|avi|mov|mkv)`)
	audioURLRe = regexp.MustCompile(`(?i)(?:https?://|file:///)[^\s)]+?\.(?:mp3|wav|ogg|aac|flac)`)

	// ![alt](url) and [text](url) collapse to the bare url.
	markdownLinkRe = regexp.MustCompile(`!?\[.*?\]\((.*?)\)`)
)

// Media is a media URL extracted from reply text.
type Media struct {
	Kind MediaKind
	URL  string

	// Text is the remaining reply text with markdown link syntax unwrapped
	// and the URL removed.
	Text string
}

// Extract finds the first media URL in text, checking images, then video,
// then audio. It returns nil when text carries no media.
func Extract(text string) *Media {
	for _, probe := range []struct {
		kind MediaKind
		re   *regexp.Regexp
	}{
		{MediaImage, imageURLRe},
		{MediaVideo, videoURLRe},
		{MediaAudio, audioURLRe},
	} {
		if url := probe.re.FindString(text); url != "" {
			remainder := markdownLinkRe.ReplaceAllString(text, "$1")
			remainder = strings.TrimSpace(strings.ReplaceAll(remainder, url, ""))
			return &Media{Kind: probe.kind, URL: url, Text: remainder}
		}
	}
	return nil
}
