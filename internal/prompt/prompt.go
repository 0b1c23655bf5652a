// Package prompt reads interactive input for local runs.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	input  = os.Stdin
	output io.Writer = os.Stderr
)

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	return term.IsTerminal(int(input.Fd()))
}

// Password prompts on stderr and reads a line from stdin. Input is hidden
// when stdin is a terminal.
func Password(label string) (string, error) {
	fmt.Fprint(output, label+": ")

	fd := int(input.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(output)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	// Piped input
	line, err := bufio.NewReader(input).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
