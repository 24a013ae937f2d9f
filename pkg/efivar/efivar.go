// Package efivar reads and writes UEFI variables through efivarfs.
package efivar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/foxboron/go-uefi/efi/attributes"
	"github.com/gofrs/uuid"
	"github.com/kairos-io/nextboot/internal/constants"
	"github.com/kairos-io/nextboot/pkg/immutable"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-vfs/v4"
)

// DefaultAttributes are the attributes of a persistent variable visible at runtime.
const DefaultAttributes = uint32(attributes.EFI_VARIABLE_NON_VOLATILE |
	attributes.EFI_VARIABLE_BOOTSERVICE_ACCESS |
	attributes.EFI_VARIABLE_RUNTIME_ACCESS)

var (
	GlobalVariable = uuid.Must(uuid.FromString(constants.EFIGlobalVariable))
	SystemdBoot    = uuid.Must(uuid.FromString(constants.SystemdBootVendor))
)

// Vars gives access to the variables exposed under Dir.
type Vars struct {
	FS     vfs.FS
	Dir    string
	Guard  *immutable.Guard
	Logger zerolog.Logger
}

// Path returns the efivarfs file backing a variable.
func (v *Vars) Path(name string, vendor uuid.UUID) string {
	return filepath.Join(v.Dir, fmt.Sprintf("%s-%s", name, vendor.String()))
}

// Read returns the attributes and the data of a variable.
// A variable that does not exist returns an error matching fs.ErrNotExist.
func (v *Vars) Read(name string, vendor uuid.UUID) (uint32, []byte, error) {
	raw, err := v.FS.ReadFile(v.Path(name, vendor))
	if err != nil {
		return 0, nil, err
	}
	if len(raw) < 4 {
		return 0, nil, fmt.Errorf("variable %s-%s is truncated (%d bytes)", name, vendor, len(raw))
	}
	return binary.LittleEndian.Uint32(raw[:4]), raw[4:], nil
}

// Names lists the names of the variables of vendor, in directory order.
func (v *Vars) Names(vendor uuid.UUID) ([]string, error) {
	entries, err := v.FS.ReadDir(v.Dir)
	if err != nil {
		return nil, err
	}
	suffix := "-" + vendor.String()
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), suffix); ok && name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// Write sets a variable. An existing variable file that is immutable gets the
// flag cleared before the write and restored afterwards. Failing to clear the
// flag aborts before anything is written. Failing to restore it is only logged.
func (v *Vars) Write(name string, vendor uuid.UUID, attrs uint32, data []byte) error {
	path := v.Path(name, vendor)
	l := v.Logger.With().Str("variable", name).Str("path", path).Logger()

	removed := false
	if _, err := v.FS.Stat(path); err == nil {
		removed, err = v.Guard.Remove(path)
		if err != nil {
			return fmt.Errorf("unlocking efi variable %s: %w", name, err)
		}
		if removed {
			l.Debug().Msg("Cleared immutable flag")
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %w", constants.ErrPrivilegedWrite, path, err)
	}

	werr := v.write(path, attrs, data)
	if removed {
		if err := v.Guard.Add(path); err != nil {
			l.Warn().Err(err).Msg("Could not restore immutable flag, variable is left unprotected")
		} else {
			l.Debug().Msg("Restored immutable flag")
		}
	}
	if werr != nil {
		return fmt.Errorf("%w: writing efi variable %s: %w", constants.ErrPrivilegedWrite, name, werr)
	}
	l.Debug().Int("size", len(data)).Msg("Wrote efi variable")
	return nil
}

// efivarfs wants attributes and data in a single write call and rejects truncation.
func (v *Vars) write(path string, attrs uint32, data []byte) error {
	buf := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint32(buf, attrs)
	buf = append(buf, data...)

	// No O_TRUNC: efivarfs replaces the whole variable on write. On a regular
	// file a shorter value leaves the tail of a longer previous one in place.
	f, err := v.FS.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
