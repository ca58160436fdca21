package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"bibneat/internal/config"
	"bibneat/internal/services"
)

func validationErr(operation string, err error) error {
	return services.Wrap(services.ErrValidation, "cli", operation, "", err)
}

// readInput reads a file argument, with "-" meaning stdin.
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if strings.TrimSpace(path) == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", expanded, err)
	}
	return data, nil
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
