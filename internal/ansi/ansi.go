// Package ansi cleans terminal escape sequences out of captured process
// output so log tails read as plain text.
package ansi

import "regexp"

var (
	reCSI      = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)
	reOSC      = regexp.MustCompile(`\x1b\].*?(?:\x07|\x1b\\)`)
	reDCS      = regexp.MustCompile(`\x1bP.*?\x1b\\`)
	rePM       = regexp.MustCompile(`\x1b\^.*?\x1b\\`)
	reAPC      = regexp.MustCompile(`\x1b_.*?\x1b\\`)
	reOldTitle = regexp.MustCompile(`\x1bk.*?\x1b\\`)
	reCharset  = regexp.MustCompile(`\x1b[()][0-9A-Za-z]`)
	reKeypad   = regexp.MustCompile(`\x1b[=>]`)
	reSingle   = regexp.MustCompile(`\x1b.`)
)

// Strip removes ANSI escape sequences and control bytes from s, applying
// backspaces and dropping carriage returns. Newlines and tabs survive.
func Strip(s string) string {
	s = reCSI.ReplaceAllString(s, "")
	s = reOSC.ReplaceAllString(s, "")
	s = reDCS.ReplaceAllString(s, "")
	s = rePM.ReplaceAllString(s, "")
	s = reAPC.ReplaceAllString(s, "")
	s = reOldTitle.ReplaceAllString(s, "")
	s = reCharset.ReplaceAllString(s, "")
	s = reKeypad.ReplaceAllString(s, "")
	s = reSingle.ReplaceAllString(s, "")

	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\r' {
			continue
		}
		if ch == '\b' {
			if len(result) > 0 {
				result = result[:len(result)-1]
			}
			continue
		}
		if (ch < 0x20 || ch == 0x7f) && ch != '\n' && ch != '\t' {
			continue
		}
		result = append(result, ch)
	}
	return string(result)
}
