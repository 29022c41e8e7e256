package commands

import "errors"

var errClipboardUnavailable = errors.New("clipboard not available on linux")

func writeClipboard(string) error {
	return errClipboardUnavailable
}

func readClipboard() (string, error) {
	return "", errClipboardUnavailable
}
