package chat

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/sqlassist/sqlassist/internal/assistant"
	"github.com/sqlassist/sqlassist/internal/conversation"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/query"
	"github.com/sqlassist/sqlassist/internal/schema"
)

// RenderReply writes the assistant entry of a turn followed by its result
// table or message. streamed means the raw model text was already shown.
func RenderReply(w io.Writer, reply assistant.Reply, streamed bool) {
	if streamed {
		_, _ = fmt.Fprintln(w)
	}
	switch reply.Outcome {
	case observability.OutcomeRefused:
		_, _ = fmt.Fprintln(w, pterm.Warning.Sprint(reply.Assistant.Content))
		return
	case observability.OutcomeSuccess:
		_, _ = fmt.Fprintln(w, reply.Assistant.Content)
	default:
		_, _ = fmt.Fprintln(w, pterm.Error.Sprint(reply.Assistant.Content))
		return
	}
	if reply.Result != nil {
		RenderOutcome(w, *reply.Result)
	}
}

func RenderOutcome(w io.Writer, outcome query.Outcome) {
	if outcome.Result != nil && len(outcome.Result.Rows) > 0 {
		renderTable(w, *outcome.Result)
	} else if outcome.Message != "" {
		_, _ = fmt.Fprintln(w, pterm.Info.Sprint(outcome.Message))
	}
	if outcome.Kind != query.KindWrite {
		return
	}
	if outcome.View != nil {
		title := "Updated table"
		if outcome.AffectedTable != "" {
			title = "Updated " + outcome.AffectedTable
		}
		_, _ = fmt.Fprintln(w, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint(title))
		renderTable(w, *outcome.View)
	}
	if outcome.Warning != "" {
		_, _ = fmt.Fprintln(w, pterm.Warning.Sprint(outcome.Warning))
	}
}

func renderTable(w io.Writer, result query.Result) {
	data := make(pterm.TableData, 0, len(result.Rows)+1)
	data = append(data, result.Columns)
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = formatCell(value)
		}
		data = append(data, cells)
	}
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		_, _ = fmt.Fprintln(w, pterm.Error.Sprint(err.Error()))
		return
	}
	_, _ = fmt.Fprintln(w, rendered)
}

func formatCell(value any) string {
	if value == nil {
		return "NULL"
	}
	return fmt.Sprint(value)
}

// RenderSchema shows the schema panel. fallbackErr is the introspection
// failure when the static description was substituted.
func RenderSchema(w io.Writer, description schema.Description, fallbackErr error, readOnly bool) {
	if fallbackErr != nil {
		_, _ = fmt.Fprintln(w, pterm.Warning.Sprint("Could not read schema, showing default: "+fallbackErr.Error()))
	}
	body := strings.TrimRight(description.String(), "\n")
	if body == "" {
		body = "(no tables)"
	}
	_, _ = fmt.Fprintln(w, pterm.DefaultBox.WithTitle("Database Schema").WithPadding(1).Sprint(body))

	items := make([]pterm.BulletListItem, 0, len(assistant.SampleCommands))
	for _, command := range assistant.SampleCommands {
		items = append(items, pterm.BulletListItem{Level: 0, Text: command})
	}
	_, _ = fmt.Fprintln(w, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint("Sample commands"))
	if list, err := pterm.DefaultBulletList.WithItems(items).Srender(); err == nil {
		_, _ = fmt.Fprint(w, list)
	}
	if readOnly {
		_, _ = fmt.Fprintln(w, pterm.Info.Sprint("Read-only mode: data-modifying statements are refused."))
	}
}

func RenderHistory(w io.Writer, turns []conversation.Turn) {
	if len(turns) == 0 {
		_, _ = fmt.Fprintln(w, pterm.Info.Sprint("No messages yet."))
		return
	}
	for _, turn := range turns {
		label := pterm.NewStyle(pterm.FgLightBlue, pterm.Bold).Sprint("you")
		if turn.Role == conversation.RoleAssistant {
			label = pterm.NewStyle(pterm.FgLightGreen, pterm.Bold).Sprint("assistant")
		}
		content := turn.Content
		if turn.Error {
			content = pterm.NewStyle(pterm.FgRed).Sprint(content)
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", label, content)
	}
}
