package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/ocupado/internal/device"
	"github.com/five82/ocupado/internal/state"
)

const (
	chipWidth    = 14 // widest chip is " disconnected "
	minNameWidth = 12

	lastSeenLayout = "15:04:05"
)

func (m Model) render() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.renderHelp())
	} else {
		b.WriteString(m.renderDevices())
		if m.showLogs {
			b.WriteString("\n\n")
			b.WriteString(m.renderLogs())
		}
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader shows the open count, the network label and the last error.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	count := m.snapshot.OpenCount()
	countStyle := styles.SuccessText
	if count > 0 {
		countStyle = styles.DangerText
	}

	parts := []string{
		bg.Render("ocupado", styles.Logo),
		bg.Render(fmt.Sprintf("%d open", count), countStyle),
		bg.Render(m.snapshot.NetworkLabel(), networkStyle(styles, m.snapshot.Network)),
	}
	if m.snapshot.LastError != nil {
		parts = append(parts, bg.Render(m.snapshot.LastError.Error(), styles.DangerText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

func networkStyle(styles Styles, network string) lipgloss.Style {
	switch network {
	case state.NetworkOnline:
		return styles.SuccessText
	case state.NetworkOffline:
		return styles.DangerText
	default:
		return styles.WarningText
	}
}

// renderDevices draws one row per configured device in config order.
func (m Model) renderDevices() string {
	styles := m.theme.Styles()
	devices := m.snapshot.View.Devices
	if !m.snapshot.HasView || len(devices) == 0 {
		return styles.MutedText.Render("  Waiting for devices...")
	}

	nameWidth := minNameWidth
	for _, d := range devices {
		if w := lipgloss.Width(d.Name); w > nameWidth {
			nameWidth = w
		}
	}

	rows := make([]string, 0, len(devices))
	for i, d := range devices {
		rows = append(rows, m.renderDevice(d, nameWidth, i%2 == 1))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderDevice(d device.Status, nameWidth int, alt bool) string {
	rowBg := m.theme.Background
	if alt {
		rowBg = m.theme.SurfaceAlt
	}
	styles := m.theme.Styles().WithBackground(rowBg)
	bg := NewBgStyle(rowBg)

	label := d.State()
	chip := styles.StatusStyle(label).Width(chipWidth).Align(lipgloss.Center).Render(label)
	name := styles.Text.Width(nameWidth).Render(d.Name)

	line := bg.Spaces(1) + chip + bg.Spaces(2) + name
	if string(d.ID) != d.Name {
		line += bg.Spaces(2) + bg.Render(string(d.ID), styles.FaintText)
	}
	if !d.LastSeen.IsZero() {
		line += bg.Spaces(2) + bg.Render("seen "+d.LastSeen.Local().Format(lastSeenLayout), styles.FaintText)
	}
	if m.width > 0 {
		return bg.FillLine(line, m.width)
	}
	return line
}

// renderLogs shows the newest log entries that fit below the device list.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	if m.logErr != nil {
		return styles.DangerText.Render("  " + m.logErr.Error())
	}
	if len(m.logs) == 0 {
		return styles.FaintText.Render("  No activity yet")
	}

	entries := m.logs
	if room := m.height - len(m.snapshot.View.Devices) - 5; room > 0 && len(entries) > room {
		entries = entries[len(entries)-room:]
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, styles.AccentText.Render("  Activity"))
	for _, e := range entries {
		lines = append(lines, "  "+logLevelStyle(styles, e.Level).Render(e.String()))
	}
	return strings.Join(lines, "\n")
}

func logLevelStyle(styles Styles, level string) lipgloss.Style {
	switch level {
	case "error", "fatal", "panic":
		return styles.DangerText
	case "warn":
		return styles.WarningText
	case "debug", "trace":
		return styles.FaintText
	default:
		return styles.MutedText
	}
}

func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	var lines []string
	for _, group := range m.keys.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			lines = append(lines,
				styles.AccentText.Width(6).Render(h.Key)+" "+styles.Text.Render(h.Desc))
		}
	}
	lines = append(lines, "", styles.MutedText.Render("Themes: "+strings.Join(ThemeNames(), ", ")))
	return styles.Help.Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	var parts []string
	for _, binding := range m.keys.ShortHelp() {
		h := binding.Help()
		parts = append(parts, bg.Render(h.Key, styles.AccentText)+bg.Spaces(1)+bg.Render(h.Desc, styles.MutedText))
	}
	parts = append(parts, bg.Render(m.theme.Name, styles.FaintText))
	if m.saveErr != nil {
		parts = append(parts, bg.Render("prefs not saved", styles.WarningText))
	}
	return styles.Footer.Width(m.width).Render(bg.Join(parts, "  "))
}
