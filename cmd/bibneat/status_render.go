package main

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"bibneat/internal/reconcile"
	"bibneat/internal/registry"
)

// statusColor is the terminal color for a lookup status.
func statusColor(status registry.Status) text.Colors {
	switch status {
	case registry.StatusFound:
		return text.Colors{text.FgGreen}
	case registry.StatusNotFound, registry.StatusInvalidIdentifier:
		return text.Colors{text.FgYellow}
	case registry.StatusTimeout, registry.StatusUnknownResponse, registry.StatusTransportError:
		return text.Colors{text.FgRed}
	default:
		return nil
	}
}

func renderStatus(status registry.Status, colorize bool) string {
	label := status.String()
	if !colorize {
		return label
	}
	if colors := statusColor(status); colors != nil {
		return colors.Sprint(label)
	}
	return label
}

func renderApplied(action reconcile.AppliedAction, colorize bool) string {
	label := action.String()
	if !colorize {
		return label
	}
	switch action {
	case reconcile.AppliedReplaced:
		return text.Colors{text.FgCyan}.Sprint(label)
	case reconcile.AppliedFlagged:
		return text.Colors{text.FgYellow}.Sprint(label)
	default:
		return label
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
