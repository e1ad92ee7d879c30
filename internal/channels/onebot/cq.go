// Package onebot implements a OneBot v11 channel adapter over a forward
// WebSocket connection (go-cqhttp, NapCat and compatible implementations).
package onebot

import (
	"regexp"
	"strings"
)

// cqCodeRe matches one CQ segment, e.g. [CQ:at,qq=12345].
var cqCodeRe = regexp.MustCompile(`\[CQ:([a-zA-Z]+)((?:,[^\[\]]*)?)\]`)

var cqUnescaper = strings.NewReplacer(
	"&#91;", "[",
	"&#93;", "]",
	"&#44;", ",",
	"&amp;", "&",
)

var cqEscaper = strings.NewReplacer(
	"&", "&amp;",
	"[", "&#91;",
	"]", "&#93;",
	",", "&#44;",
)

// parsedMessage is the plain-text view of a raw CQ message.
type parsedMessage struct {
	Text      string
	AtMe      bool
	MediaURLs []string
}

// parseCQMessage strips CQ codes from raw, recording an at-mention of
// selfID and any attached media URLs.
func parseCQMessage(raw, selfID string) parsedMessage {
	var out parsedMessage

	text := cqCodeRe.ReplaceAllStringFunc(raw, func(code string) string {
		m := cqCodeRe.FindStringSubmatch(code)
		kind, params := m[1], parseCQParams(m[2])

		switch kind {
		case "at":
			if params["qq"] == selfID {
				out.AtMe = true
			}
		case "image", "record", "video":
			if url := params["url"]; url != "" {
				out.MediaURLs = append(out.MediaURLs, url)
			} else if file := params["file"]; strings.Contains(file, "://") {
				out.MediaURLs = append(out.MediaURLs, file)
			}
		}
		return ""
	})

	out.Text = strings.TrimSpace(cqUnescaper.Replace(text))
	return out
}

func parseCQParams(s string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(strings.TrimPrefix(s, ","), ",") {
		if k, v, ok := strings.Cut(part, "="); ok {
			params[k] = cqUnescaper.Replace(v)
		}
	}
	return params
}

// cqMedia renders a media URL as the CQ segment for its kind.
func cqMedia(kind, url string) string {
	segment := map[string]string{
		"image": "image",
		"video": "video",
		"audio": "record",
	}[kind]
	if segment == "" {
		return ""
	}
	return "[CQ:" + segment + ",file=" + cqEscaper.Replace(url) + "]"
}
