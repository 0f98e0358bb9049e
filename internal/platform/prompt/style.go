package prompt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nickalie/wingship/internal/core/provision"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorBlue  = lipgloss.Color("#3b82f6")
	colorDim   = lipgloss.Color("#6b7280")

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue).
			Padding(0, 2)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	okStyle = lipgloss.NewStyle().
		Foreground(colorGreen)

	failedStyle = lipgloss.NewStyle().
			Foreground(colorRed)
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"

	maxDetail = 200
)

// Banner renders the greeting shown before hosts are collected.
func Banner(version string) string {
	title := bannerStyle.Render("wingship")
	subtitle := subtitleStyle.Render(fmt.Sprintf("Pterodactyl Wings provisioner %s", version))
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle)
}

// FormatOutcome renders one report line for a host.
func FormatOutcome(o *provision.Outcome) string {
	if o == nil {
		return failedStyle.Render(crossMark) + " unknown host: no outcome"
	}

	name := o.Host.String()
	if o.Succeeded() {
		return fmt.Sprintf("%s %s is online (%s)", okStyle.Render(checkMark), name, o.Duration().Round(time.Second))
	}

	cause := "unknown error"
	if o.Err != nil {
		cause = firstLine(o.Err.Error())
		if d := detail(o.Err); d != "" && !strings.Contains(cause, d) {
			cause = fmt.Sprintf("%s: %s", cause, d)
		}
	}
	return fmt.Sprintf("%s %s failed during %s: %s", failedStyle.Render(crossMark), name, o.Stage, cause)
}

// FormatSummary renders the closing line of a run.
func FormatSummary(s provision.Summary) string {
	line := fmt.Sprintf("%d succeeded, %d failed", s.Succeeded, s.Failed)
	if s.Failed > 0 {
		return failedStyle.Render(line)
	}
	return okStyle.Render(line)
}

// detail picks what the remote side said: the last line a failed command
// printed, or the panel's response body on one line.
func detail(err error) string {
	var cmdErr *provision.CommandError
	if errors.As(err, &cmdErr) {
		return shorten(lastLine(cmdErr.Output))
	}

	var apiErr *provision.APIError
	if errors.As(err, &apiErr) {
		return shorten(strings.Join(strings.Fields(apiErr.Body), " "))
	}
	return ""
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func shorten(s string) string {
	if len(s) <= maxDetail {
		return s
	}
	return s[:maxDetail] + "..."
}

// firstLine drops the full command output from the report; it is in the log.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
