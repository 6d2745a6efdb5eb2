// Package markdown turns Markdown documents into plain text suitable for prompting.
package markdown

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Separator replaces horizontal rules.
const Separator = "----------"

var (
	reFenceBacktick = regexp.MustCompile("(?m)^[ \\t]*```[^\\n`]*\\n((?s:.*?))^[ \\t]*```[ \\t]*$")
	reFenceTilde    = regexp.MustCompile(`(?m)^[ \t]*~~~[^\n~]*\n((?s:.*?))^[ \t]*~~~[ \t]*$`)
	reInlineCode3   = regexp.MustCompile("```([^`\\n]+)```")
	reInlineCode2   = regexp.MustCompile("``([^`\\n]+)``")
	reInlineCode1   = regexp.MustCompile("`([^`\\n]+)`")

	reHeading   = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+(.*?)(?:[ \t]+#+)?[ \t]*$`)
	reRule      = regexp.MustCompile(`(?m)^[ \t]*(?:(?:-[ \t]*){3,}|(?:\*[ \t]*){3,}|(?:_[ \t]*){3,})$`)
	reBullet    = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+(.*)$`)
	reOrdered   = regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]+(.*)$`)
	reQuote     = regexp.MustCompile(`(?m)^[ \t]*>[ \t]*(.*?)[ \t]*$`)
	reImage     = regexp.MustCompile(`!\[([^\]]*)\]\((?:[^()]|\([^()]*\))*\)`)
	reLink      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reAutolink  = regexp.MustCompile(`<((?:https?|mailto):[^>\s]+)>`)
	reBoldStar  = regexp.MustCompile(`\*\*(\S(?:.*?\S)?)\*\*`)
	reBoldUnder = regexp.MustCompile(`__(\S(?:.*?\S)?)__`)
	reItalStar  = regexp.MustCompile(`\*(\S(?:[^*\n]*?\S)?)\*`)
	reItalUnder = regexp.MustCompile(`(^|[^\w])_(\S(?:[^_\n]*?\S)?)_([^\w]|$)`)
	reStrike    = regexp.MustCompile(`~~(\S(?:.*?\S)?)~~`)
	reBlankRuns = regexp.MustCompile(`\n{3,}`)
	reHolder    = regexp.MustCompile(`\x00(\d+)\x00`)
)

// Normalize converts Markdown to plain text. It never fails; input it does not
// understand passes through close to unchanged.
func Normalize(md string) string {
	text := strings.ReplaceAll(md, "\r\n", "\n")

	var code []string
	protect := func(groups []string) string {
		code = append(code, groups[1])
		return fmt.Sprintf("\x00%d\x00", len(code)-1)
	}
	text = replaceFunc(reFenceBacktick, text, protect)
	text = replaceFunc(reFenceTilde, text, protect)
	text = replaceFunc(reInlineCode3, text, protect)
	text = replaceFunc(reInlineCode2, text, protect)
	text = replaceFunc(reInlineCode1, text, protect)

	text = replaceFunc(reHeading, text, func(g []string) string {
		return strings.ToUpper(g[1])
	})
	text = reRule.ReplaceAllString(text, "\n"+Separator+"\n")
	text = reBullet.ReplaceAllString(text, "• ${1}")
	text = reOrdered.ReplaceAllString(text, "• ${1}")
	text = replaceFunc(reQuote, text, func(g []string) string {
		if g[1] == "" {
			return ""
		}
		return `"` + g[1] + `"`
	})

	text = reImage.ReplaceAllString(text, "${1}")
	text = reLink.ReplaceAllString(text, "${1}")
	text = reAutolink.ReplaceAllString(text, "${1}")

	text = reBoldStar.ReplaceAllString(text, "${1}")
	text = reBoldUnder.ReplaceAllString(text, "${1}")
	text = reStrike.ReplaceAllString(text, "${1}")
	text = reItalStar.ReplaceAllString(text, "${1}")
	// Adjacent underscore spans share a boundary character, so one pass can miss every other one.
	for {
		next := reItalUnder.ReplaceAllString(text, "${1}${2}${3}")
		if next == text {
			break
		}
		text = next
	}

	text = replaceFunc(reHolder, text, func(g []string) string {
		i, err := strconv.Atoi(g[1])
		if err != nil || i >= len(code) {
			return g[0]
		}
		return strings.TrimSuffix(code[i], "\n")
	})

	return reBlankRuns.ReplaceAllString(text, "\n\n")
}

// replaceFunc is ReplaceAllStringFunc with access to the submatches.
func replaceFunc(re *regexp.Regexp, s string, fn func(groups []string) string) string {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, loc := range locs {
		b.WriteString(s[last:loc[0]])
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = s[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
