package target

import (
	"errors"
	"fmt"

	"github.com/kairos-io/nextboot/pkg/systemdboot"
	"github.com/kairos-io/nextboot/pkg/uefi"
	"github.com/rs/zerolog"
)

// EFICatalog is the firmware boot option backend.
type EFICatalog interface {
	List() ([]uefi.BootOption, error)
	MatchingPattern(pattern string) (*uefi.BootOption, error)
	SetBootNext(number uint16) error
}

// LoaderCatalog is the systemd-boot backend.
type LoaderCatalog interface {
	List() ([]systemdboot.Entry, error)
	MatchingPattern(pattern string) (*systemdboot.Entry, error)
	MatchingTitle(title string) (*systemdboot.Entry, error)
	MatchingRoot(root string) (*systemdboot.Entry, error)
	RenameTitle(entry systemdboot.Entry, title string) error
	SetOneShot(entry systemdboot.Entry) error
}

// Resolver ties both backends together. A nil catalog behaves as an empty
// one, e.g. on a machine without systemd-boot.
type Resolver struct {
	EFI    EFICatalog
	Loader LoaderCatalog
	// Confirm asks the user a yes/no question.
	Confirm func(message string) bool
	Logger  zerolog.Logger
}

// Resolve turns pattern into a BootTarget. Firmware boot options are tried
// before loader entries.
func (r *Resolver) Resolve(pattern string) (BootTarget, error) {
	if pattern == "" {
		return nil, errors.New("empty boot target pattern")
	}

	if r.EFI != nil {
		opt, err := r.EFI.MatchingPattern(pattern)
		if err != nil {
			return nil, err
		}
		if opt != nil {
			r.Logger.Debug().Str("pattern", pattern).Str("option", uefi.VariableName(opt.Number)).Str("title", opt.Title).Msg("Resolved to uefi boot option")
			return Efi{Pattern: pattern}, nil
		}
	}

	if r.Loader != nil {
		entry, err := r.Loader.MatchingPattern(pattern)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			r.Logger.Debug().Str("pattern", pattern).Str("entry", entry.ID).Str("title", entry.Title).Msg("Resolved to loader entry")
			return SystemdBoot{Title: entry.Title, Root: entry.Root}, nil
		}
	}

	return nil, r.noMatchingEntry(pattern)
}

func (r *Resolver) noMatchingEntry(pattern string) error {
	available, err := r.Available()
	if err != nil {
		return fmt.Errorf("no boot entry matches %q and listing boot targets failed: %w", pattern, err)
	}
	return &NoMatchingEntryError{Pattern: pattern, Available: available}
}

// Available returns the titles of every boot option and loader entry.
func (r *Resolver) Available() ([]string, error) {
	var titles []string
	if r.EFI != nil {
		options, err := r.EFI.List()
		if err != nil {
			return nil, err
		}
		for _, o := range options {
			titles = append(titles, o.Title)
		}
	}
	if r.Loader != nil {
		entries, err := r.Loader.List()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			titles = append(titles, e.Title)
		}
	}
	return titles, nil
}

// ConfigureNextBoot checks t against the current boot configuration and then
// sets it for the next boot. t was resolved in an earlier run and the entry
// it refers to may have been removed, renamed or reinstalled since.
func (r *Resolver) ConfigureNextBoot(t BootTarget) error {
	switch v := t.(type) {
	case Efi:
		return r.configureEfi(v)
	case SystemdBoot:
		return r.configureSystemdBoot(v)
	default:
		return fmt.Errorf("unknown boot target %T", t)
	}
}

func (r *Resolver) configureEfi(t Efi) error {
	if r.EFI == nil {
		return staleTarget(t)
	}
	opt, err := r.EFI.MatchingPattern(t.Pattern)
	if err != nil {
		return err
	}
	if opt == nil {
		return staleTarget(t)
	}
	return r.EFI.SetBootNext(opt.Number)
}

func (r *Resolver) configureSystemdBoot(t SystemdBoot) error {
	if r.Loader == nil {
		return staleTarget(t)
	}

	entry, err := r.Loader.MatchingTitle(t.Title)
	if err != nil {
		return err
	}
	if entry != nil {
		if entry.Root != t.Root {
			return rootChanged(t, entry.Root)
		}
		return r.Loader.SetOneShot(*entry)
	}

	entry, err = r.Loader.MatchingRoot(t.Root)
	if err != nil {
		return err
	}
	if entry == nil {
		return staleTarget(t)
	}

	r.Logger.Warn().Str("entry", entry.ID).Str("configured", t.Title).Str("current", entry.Title).Msg("Title of the boot entry changed")
	question := fmt.Sprintf("The title of boot entry %s changed from %q to %q, change it back?", entry.ID, t.Title, entry.Title)
	if r.Confirm != nil && r.Confirm(question) {
		if err := r.Loader.RenameTitle(*entry, t.Title); err != nil {
			return fmt.Errorf("renaming boot entry %s: %w", entry.ID, err)
		}
		entry.Title = t.Title
	}
	return r.Loader.SetOneShot(*entry)
}
