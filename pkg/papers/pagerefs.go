package papers

import (
	"fmt"
	"regexp"
	"strings"
)

// Matches "(page 3)" and "(page 2, page 6)" citations emitted by the
// generation backend. Already-rewritten citations start with "([" and
// therefore never match again.
var pageRefPattern = regexp.MustCompile(`\(\s*page\s+(\d+(?:\s*,\s*page\s+\d+)*)\s*\)`)

var pageListSplit = regexp.MustCompile(`\s*,\s*page\s+`)

// RewritePageRefs turns inline page citations into markdown anchor
// links a document viewer can act on: "(page 3)" becomes
// "([page 3](#page-3))". The rewrite is purely textual and idempotent.
func RewritePageRefs(s string) string {
	return pageRefPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := pageRefPattern.FindStringSubmatch(match)
		pages := pageListSplit.Split(groups[1], -1)

		links := make([]string, 0, len(pages))
		for _, p := range pages {
			p = strings.TrimSpace(p)
			links = append(links, fmt.Sprintf("[page %s](#page-%s)", p, p))
		}
		return "(" + strings.Join(links, ", ") + ")"
	})
}
