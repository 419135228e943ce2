package web

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"pdfchat/internal/models"
)

var transcriptMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type renderedTurn struct {
	Question template.HTML
	Answer   template.HTML
}

func renderTranscript(history []models.Turn) []renderedTurn {
	out := make([]renderedTurn, 0, len(history))
	for _, turn := range history {
		out = append(out, renderedTurn{
			Question: renderMarkdown("**Q:** " + turn.Question),
			Answer:   renderMarkdown("**A:** " + turn.Answer),
		})
	}
	return out
}

// renderMarkdown converts md to HTML. Raw HTML in md is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := transcriptMarkdown.Convert([]byte(md), &buf); err != nil {
		log.Warn().Err(err).Msg("Error rendering markdown")
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

func acceptList(exts []string) string {
	return strings.Join(exts, ",")
}
