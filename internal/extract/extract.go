// Package extract separates citation links from assistant reply text.
//
// The answer backend embeds its references as plain text: numbered
// citation lines ("1. https://..."), bare URLs, or bare domain names on
// their own line. Extract pulls those out as structured sources and
// returns the remaining prose untouched.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"ecochat/internal/models"
)

var (
	numberedLineRe = regexp.MustCompile(`^\s*(\d+)\.\s+(https?://\S+)\s*$`)
	urlRe          = regexp.MustCompile(`https?://[^\s<>"']+`)
	// bare domain: at least two dot-separated segments, alphabetic
	// final segment of two or more characters, no scheme.
	domainRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)
)

// Extract splits raw assistant text into prose body and citation sources.
// It is a pure function: the same input always yields the same output, and
// re-running it on the returned body yields the body unchanged with no
// sources. Duplicate links are kept as separate sources.
//
// A line holding both prose and a URL is consumed entirely; only the
// link survives, as a source.
func Extract(text string) (string, []models.Source) {
	var (
		kept    []string
		sources []models.Source
	)

	for _, line := range strings.Split(text, "\n") {
		if m := numberedLineRe.FindStringSubmatch(line); m != nil {
			sources = append(sources, models.Source{Label: m[1], URL: trimURL(m[2])})
			continue
		}

		if urls := urlRe.FindAllString(line, -1); len(urls) > 0 {
			for _, u := range urls {
				sources = append(sources, models.Source{
					Label: strconv.Itoa(len(sources) + 1),
					URL:   trimURL(u),
				})
			}
			continue
		}

		if domains := bareDomains(line); len(domains) > 0 {
			for _, d := range domains {
				sources = append(sources, models.Source{
					Label: strconv.Itoa(len(sources) + 1),
					URL:   "https://" + d,
				})
			}
			continue
		}

		kept = append(kept, line)
	}

	return strings.Join(kept, "\n"), sources
}

// trimURL strips sentence punctuation that the URL regexes drag along.
func trimURL(u string) string {
	return strings.TrimRight(u, ".,;:!?)")
}

// bareDomains scans a line without URLs for domain-like tokens.
func bareDomains(line string) []string {
	var domains []string
	for _, tok := range strings.Fields(line) {
		tok = strings.Trim(tok, `.,;:!?()[]{}"'`)
		if !strings.Contains(tok, ".") {
			continue
		}
		if domainRe.MatchString(tok) {
			domains = append(domains, tok)
		}
	}
	return domains
}
