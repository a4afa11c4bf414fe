package notify

import (
	"strings"
	"time"
)

// Discord embed color constants.
const (
	ColorGreen = 0x00FF00 // Import finished
	ColorRed   = 0xFF0000 // Import failed or cancelled
	ColorBlue  = 0x5865F2 // Zone run (Discord blurple)
)

// MaxEmbedsPerRequest is the Discord API limit for embeds per message.
const MaxEmbedsPerRequest = 10

// maxDescriptionLen is the Discord limit for embed descriptions.
const maxDescriptionLen = 4096

// DiscordPayload represents a Discord webhook request body.
type DiscordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a Discord embed.
type DiscordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
}

// DiscordFooter is the small text under an embed.
type DiscordFooter struct {
	Text string `json:"text"`
}

// BuildPayloads creates Discord payloads from batched summaries.
// May return multiple payloads if summaries exceed MaxEmbedsPerRequest.
func BuildPayloads(summaries []Summary) []DiscordPayload {
	if len(summaries) == 0 {
		return nil
	}

	// Zone runs first, in the order they finished; imports last.
	var zones, imports []DiscordEmbed
	for _, s := range summaries {
		switch s.Kind {
		case SummaryZoneRun:
			zones = append(zones, buildZoneEmbed(s))
		case SummaryImport:
			imports = append(imports, buildImportEmbed(s))
		}
	}

	return splitIntoPayloads(append(zones, imports...))
}

func buildZoneEmbed(s Summary) DiscordEmbed {
	e := DiscordEmbed{
		Title:       "Zone Run: " + s.Title,
		Description: codeBlock(s.Lines),
		Color:       ColorBlue,
		Timestamp:   s.Ts.UTC().Format(time.RFC3339),
	}
	if s.Footer != "" {
		e.Footer = &DiscordFooter{Text: s.Footer}
	}
	return e
}

func buildImportEmbed(s Summary) DiscordEmbed {
	color := ColorGreen
	if s.Failed {
		color = ColorRed
	}
	e := DiscordEmbed{
		Title:       s.Title,
		Description: truncate(strings.Join(s.Lines, "\n"), maxDescriptionLen),
		Color:       color,
		Timestamp:   s.Ts.UTC().Format(time.RFC3339),
	}
	if s.Footer != "" {
		e.Footer = &DiscordFooter{Text: s.Footer}
	}
	return e
}

// codeBlock renders lines monospaced, dropping lines that would exceed the
// description limit.
func codeBlock(lines []string) string {
	const fence = "```"
	var b strings.Builder
	b.WriteString(fence + "\n")
	for _, l := range lines {
		if b.Len()+len(l)+1+len(fence) > maxDescriptionLen {
			break
		}
		b.WriteString(strings.ReplaceAll(l, fence, "'''"))
		b.WriteByte('\n')
	}
	b.WriteString(fence)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func splitIntoPayloads(embeds []DiscordEmbed) []DiscordPayload {
	if len(embeds) == 0 {
		return nil
	}

	var payloads []DiscordPayload
	for i := 0; i < len(embeds); i += MaxEmbedsPerRequest {
		end := i + MaxEmbedsPerRequest
		if end > len(embeds) {
			end = len(embeds)
		}
		payloads = append(payloads, DiscordPayload{Embeds: embeds[i:end]})
	}
	return payloads
}
