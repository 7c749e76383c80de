package chat

import (
	"fmt"
	"strings"
)

// ExportFileName is the download name of the chat transcript.
const ExportFileName = "katje-chat-history.md"

// ExportMarkdown renders the whole log as one Markdown document with speaker
// attribution, media links and grounding sources.
func (s *Session) ExportMarkdown() string {
	messages := s.Messages()
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, s.renderMarkdown(m))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func (s *Session) renderMarkdown(m Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s:**\n\n%s", s.AuthorName(m), m.Text)

	if img, ok := m.Media.Image(); ok {
		fmt.Fprintf(&sb, "\n\n![Generated Image](%s)", img.URL)
	}
	if vid, ok := m.Media.Video(); ok {
		fmt.Fprintf(&sb, "\n\n[Generated Video](%s)", vid.URL)
	}

	var sources []string
	for _, c := range m.Citations {
		if c.URI == "" {
			continue
		}
		title := c.Title
		if title == "" {
			title = c.URI
		}
		sources = append(sources, fmt.Sprintf("- [%s](%s)", title, c.URI))
	}
	if len(sources) > 0 {
		sb.WriteString("\n\n**Sources:**\n")
		sb.WriteString(strings.Join(sources, "\n"))
	}
	return sb.String()
}
