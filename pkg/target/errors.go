package target

import (
	"fmt"
	"strings"

	"github.com/kairos-io/nextboot/internal/constants"
)

// NoMatchingEntryError lists every boot target the pattern was tried against.
type NoMatchingEntryError struct {
	Pattern   string
	Available []string
}

func (e *NoMatchingEntryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no boot entry matches %q", e.Pattern)
	if len(e.Available) == 0 {
		b.WriteString(", no boot targets are available")
		return b.String()
	}
	b.WriteString(", available boot targets:")
	for _, a := range e.Available {
		b.WriteString("\n  - ")
		b.WriteString(a)
	}
	return b.String()
}

func (e *NoMatchingEntryError) Unwrap() error {
	return constants.ErrNoMatchingEntry
}

func staleTarget(t BootTarget) error {
	return fmt.Errorf("%w: %s, %s", constants.ErrStaleTarget, t, constants.SetTargetHint)
}

func rootChanged(t SystemdBoot, current string) error {
	return fmt.Errorf("%w: %q was configured with root=%s but now boots root=%s; if the OS was reinstalled or moved to another disk %s",
		constants.ErrRootChanged, t.Title, t.Root, current, constants.SetTargetHint)
}
