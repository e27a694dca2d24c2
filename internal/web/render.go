package web

import (
	"html"
	"html/template"
	"strings"

	"ecochat/internal/models"
)

// markupTags are the paired tags the answer backend embeds in reply
// prose. They pass through source extraction untouched and become
// styled wrappers only here, at render time.
var markupTags = []struct{ tag, open, close string }{
	{"citation", `<div class="imfact-citation">`, `</div>`},
	{"key-fact", `<span class="key-fact">`, `</span>`},
	{"data-visualization", `<div class="data-visualization">`, `</div>`},
}

// renderBody escapes message text and expands the backend markup tags
// into their display wrappers.
func renderBody(content string) template.HTML {
	escaped := html.EscapeString(content)
	for _, t := range markupTags {
		escaped = strings.ReplaceAll(escaped, "&lt;"+t.tag+"&gt;", t.open)
		escaped = strings.ReplaceAll(escaped, "&lt;/"+t.tag+"&gt;", t.close)
	}
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return template.HTML(escaped)
}

// bubble is one rendered chat message.
type bubble struct {
	Role    models.Role
	Body    template.HTML
	Time    string
	Sources []models.Source
}

func toBubbles(msgs []*models.Message) []bubble {
	out := make([]bubble, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, bubble{
			Role:    m.Role,
			Body:    renderBody(m.Content),
			Time:    m.CreatedAt.Local().Format("15:04"),
			Sources: m.Sources,
		})
	}
	return out
}
