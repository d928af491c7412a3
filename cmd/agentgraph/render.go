package main

import (
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
	"github.com/smallnest/agentgraph/schema"
)

// styles renders terminal output. With plain set every method returns its
// input unchanged.
type styles struct {
	plain bool

	header lipgloss.Style
	user   lipgloss.Style
	agent  lipgloss.Style
	tool   lipgloss.Style
	err    lipgloss.Style
	frame  lipgloss.Style
}

func newStyles(plain bool) styles {
	return styles{
		plain:  plain,
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		user:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575")),
		agent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3C8DBC")),
		tool:   lipgloss.NewStyle().Faint(true),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
		frame:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

func (s styles) render(st lipgloss.Style, text string) string {
	if s.plain {
		return text
	}
	return st.Render(text)
}

func (s styles) title(text string) string      { return s.render(s.header, text) }
func (s styles) userLabel(text string) string  { return s.render(s.user, text) }
func (s styles) agentLabel(text string) string { return s.render(s.agent, text) }
func (s styles) toolLine(text string) string   { return s.render(s.tool, text) }
func (s styles) errLine(text string) string    { return s.render(s.err, text) }

func (s styles) box(text string) string {
	return s.render(s.frame, strings.TrimRight(text, "\n"))
}

// transcriptMarkdown writes the conversation as markdown. Tool results are
// quoted under the call that produced them.
func transcriptMarkdown(title string, msgs []schema.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	for _, m := range msgs {
		switch m.Role {
		case schema.RoleHuman:
			fmt.Fprintf(&sb, "**You:** %s\n\n", m.Text())
		case schema.RoleAI:
			label := "Agent"
			if m.Name != "" {
				label = m.Name
			}
			if text := m.Text(); text != "" {
				fmt.Fprintf(&sb, "**%s:** %s\n\n", label, text)
			}
			for _, c := range m.ToolCalls {
				fmt.Fprintf(&sb, "*%s calls `%s` with `%s`*\n\n", label, c.Name, string(c.Arguments))
			}
		case schema.RoleTool:
			for _, line := range strings.Split(m.Text(), "\n") {
				fmt.Fprintf(&sb, "> %s\n", line)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// transcriptHTML renders the conversation as a standalone page. Model and
// tool output is untrusted, so the rendered body is sanitized.
func transcriptHTML(title string, msgs []schema.Message) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(transcriptMarkdown(title, msgs)))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	body := bluemonday.UGCPolicy().SanitizeBytes(markdown.Render(doc, renderer))

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n</head>\n<body>\n", stdhtml.EscapeString(title))
	sb.Write(body)
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}
