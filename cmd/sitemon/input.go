package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// readPassword is replaced in tests to keep the terminal out of them.
var readPassword = term.ReadPassword

// promptPassword asks for a password on w and reads it from the terminal
// without echo.
func promptPassword(w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
