package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dsrec/internal/ipc"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

var titleCaser = cases.Title(language.Und)

func renderStatus(status *ipc.StatusResponse, colorize bool) string {
	var lines []string
	lines = append(lines, renderSectionHeader("dsrec", colorize)...)

	role := "subordinate"
	if status.Master {
		role = "master"
	}
	lines = append(lines, renderStatusLine("Node", statusInfo, fmt.Sprintf("%s (pid %d)", role, status.PID), colorize))

	stateKind := statusOK
	switch {
	case !status.Running:
		stateKind = statusError
	case status.State == "recording":
		stateKind = statusWarn
	}
	state := titleCaser.String(status.State)
	if !status.Running {
		state = "Stopped"
	}
	lines = append(lines, renderStatusLine("State", stateKind, state, colorize))
	lines = append(lines, renderStatusLine("Identity", statusInfo,
		fmt.Sprintf("%s shot %d", sessionFolder(status.ActionID, status.PersonID), status.ShotID), colorize))

	queueKind := statusOK
	if status.PendingSaves > 0 {
		queueKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Pending saves", queueKind,
		fmt.Sprintf("%d (rgbd %d, event %d)", status.PendingSaves, status.RGBDPending, status.EventPending), colorize))
	lines = append(lines, renderStatusLine("Frames", statusInfo, fmt.Sprintf("%d acquired", status.FramesAcquired), colorize))

	previewKind := statusOK
	if status.UIDropped > 0 {
		previewKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Previews", previewKind,
		fmt.Sprintf("color %d, event %d, dropped %d/%d", status.ColorFrames, status.EventFrames, status.UIDropped, status.UIPublished), colorize))

	catalogKind := statusOK
	if status.SessionsFailed > 0 {
		catalogKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Sessions", catalogKind,
		fmt.Sprintf("%d saved, %d failed, %d failsafe", status.SessionsTotal, status.SessionsFailed, status.SessionsFailsafe), colorize))
	lines = append(lines, renderStatusLine("Dataset", statusInfo, status.DataDir, colorize))

	if len(status.Alerts) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Recent alerts", colorize)...)
		for _, alert := range status.Alerts {
			lines = append(lines, statusIndent+alert)
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
