package reply

import "regexp"

// SilentToken is the marker a model emits when it decides no reply should be
// sent. Operators opt in by documenting it in the configured system prompt;
// the gateway drops replies carrying it.
const SilentToken = "NO_REPLY"

var (
	silentPrefixRe = regexp.MustCompile(`^\s*` + SilentToken + `(?:$|\W)`)
	silentSuffixRe = regexp.MustCompile(`\b` + SilentToken + `\b\W*$`)
)

// IsSilent reports whether text starts or ends with the silent-reply token.
// The token must sit on a word boundary so ordinary prose mentioning it
// mid-sentence does not trigger.
func IsSilent(text string) bool {
	if text == "" {
		return false
	}
	return silentPrefixRe.MatchString(text) || silentSuffixRe.MatchString(text)
}
