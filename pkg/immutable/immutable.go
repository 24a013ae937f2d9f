// Package immutable toggles the immutable inode flag (chattr +i/-i) on a file.
//
// efivarfs marks most variables immutable on creation so that a stray rm does
// not brick the firmware. Writing such a variable requires clearing the flag
// first, even as root.
package immutable

import (
	"fmt"

	"github.com/kairos-io/nextboot/internal/constants"
)

// FlagImmutable is FS_IMMUTABLE_FL from include/uapi/linux/fs.h.
const FlagImmutable uint32 = 0x00000010

// Attrs reads and writes the inode flag word of a file.
type Attrs interface {
	GetFlags(path string) (uint32, error)
	SetFlags(path string, flags uint32) error
}

// AttributeError is returned when reading or writing the flags of Path failed.
type AttributeError struct {
	Op   string
	Path string
	Err  error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("%s attributes of %s: %v", e.Op, e.Path, e.Err)
}

func (e *AttributeError) Unwrap() []error {
	return []error{constants.ErrAttribute, e.Err}
}

// Guard clears and restores the immutable flag, leaving every other flag untouched.
type Guard struct {
	Attrs Attrs
}

func New(a Attrs) *Guard {
	return &Guard{Attrs: a}
}

// Remove clears the immutable flag of path. It reports whether the flag was
// set, so the caller knows if it has to put it back.
func (g *Guard) Remove(path string) (bool, error) {
	flags, err := g.Attrs.GetFlags(path)
	if err != nil {
		return false, &AttributeError{Op: "read", Path: path, Err: err}
	}
	if flags&FlagImmutable == 0 {
		return false, nil
	}
	if err := g.Attrs.SetFlags(path, flags&^FlagImmutable); err != nil {
		return false, &AttributeError{Op: "write", Path: path, Err: err}
	}
	return true, nil
}

// Add sets the immutable flag of path.
func (g *Guard) Add(path string) error {
	flags, err := g.Attrs.GetFlags(path)
	if err != nil {
		return &AttributeError{Op: "read", Path: path, Err: err}
	}
	if flags&FlagImmutable != 0 {
		return nil
	}
	if err := g.Attrs.SetFlags(path, flags|FlagImmutable); err != nil {
		return &AttributeError{Op: "write", Path: path, Err: err}
	}
	return nil
}
