package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Confirm returns a yes/no prompt reading from in. When assumeYes is set every
// question is accepted. When in is not a terminal every question is declined.
func Confirm(in *os.File, out io.Writer, assumeYes bool) func(string) bool {
	return func(message string) bool {
		if assumeYes {
			Log.Info().Str("question", message).Msg("Assuming yes")
			return true
		}
		if !term.IsTerminal(int(in.Fd())) {
			Log.Warn().Str("question", message).Msg("Not a terminal, assuming no")
			return false
		}
		return ask(in, out, message)
	}
}

func ask(in io.Reader, out io.Writer, message string) bool {
	fmt.Fprintf(out, "%s [y/N] ", message)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
