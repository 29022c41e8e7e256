//go:build !linux

package commands

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

var initClipboard = sync.OnceValue(clipboard.Init)

func writeClipboard(text string) error {
	if err := initClipboard(); err != nil {
		return fmt.Errorf("clipboard not available: %w", err)
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func readClipboard() (string, error) {
	if err := initClipboard(); err != nil {
		return "", fmt.Errorf("clipboard not available: %w", err)
	}
	return string(clipboard.Read(clipboard.FmtText)), nil
}
