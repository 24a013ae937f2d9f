// Package systemdboot lists and edits systemd-boot loader entries and sets
// the LoaderEntryOneShot variable that picks the entry for the next boot.
package systemdboot

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/kairos-io/nextboot/internal/constants"
	"github.com/kairos-io/nextboot/pkg/efivar"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-vfs/v4"
)

// Catalog is a view over the loader entries directory. Nothing is cached,
// every call reads the directory again.
type Catalog struct {
	FS         vfs.FS
	EntriesDir string
	Vars       *efivar.Vars
	Logger     zerolog.Logger
}

// List parses every *.conf file of the entries directory, sorted by name.
// A single invalid entry fails the whole listing.
func (c *Catalog) List() ([]Entry, error) {
	files, err := c.FS.ReadDir(c.EntriesDir)
	if err != nil {
		return nil, fmt.Errorf("reading loader entries in %s: %w", c.EntriesDir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	var entries []Entry
	var errs *multierror.Error
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".conf") {
			continue
		}
		content, err := c.FS.ReadFile(filepath.Join(c.EntriesDir, f.Name()))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: reading %s: %w", constants.ErrCatalogParse, f.Name(), err))
			continue
		}
		entry, err := ParseEntry(f.Name(), content)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("loader entries in %s: %w", c.EntriesDir, err)
	}
	return entries, nil
}

// MatchingPattern returns the first entry whose title contains pattern,
// ignoring case. Several matches are not an error but are logged.
func (c *Catalog) MatchingPattern(pattern string) (*Entry, error) {
	entries, err := c.List()
	if err != nil {
		return nil, err
	}
	var matches []Entry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Title), strings.ToLower(pattern)) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		titles := make([]string, 0, len(matches))
		for _, m := range matches {
			titles = append(titles, m.Title)
		}
		c.Logger.Warn().Str("pattern", pattern).Strs("matches", titles).Str("using", matches[0].Title).Msg("Multiple loader entries match")
	}
	return &matches[0], nil
}

// MatchingTitle returns the first entry titled exactly title.
func (c *Catalog) MatchingTitle(title string) (*Entry, error) {
	return c.first(func(e Entry) bool { return e.Title == title })
}

// MatchingRoot returns the first entry booting root.
func (c *Catalog) MatchingRoot(root string) (*Entry, error) {
	return c.first(func(e Entry) bool { return e.Root == root })
}

func (c *Catalog) first(match func(Entry) bool) (*Entry, error) {
	entries, err := c.List()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if match(e) {
			return &e, nil
		}
	}
	return nil, nil
}

// RenameTitle changes the title of entry. The file is written to a temporary
// sibling and renamed over the original so it is never seen half written.
func (c *Catalog) RenameTitle(entry Entry, title string) error {
	path := filepath.Join(c.EntriesDir, entry.ID)
	tmp := filepath.Join(c.EntriesDir, "."+entry.ID+".tmp")

	info, err := c.FS.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", constants.ErrPrivilegedWrite, err)
	}
	content, err := c.FS.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", constants.ErrPrivilegedWrite, err)
	}
	updated, ok := replaceTitle(content, title)
	if !ok {
		return &ParseError{ID: entry.ID, Reason: "no title line"}
	}

	// A temp file left behind by an interrupted run is overwritten.
	if err := c.FS.WriteFile(tmp, updated, info.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: writing %s: %w", constants.ErrPrivilegedWrite, tmp, err)
	}
	if err := c.FS.Chmod(tmp, info.Mode().Perm()); err != nil {
		_ = c.FS.Remove(tmp)
		return fmt.Errorf("%w: chmod %s: %w", constants.ErrPrivilegedWrite, tmp, err)
	}
	if err := c.FS.Rename(tmp, path); err != nil {
		_ = c.FS.Remove(tmp)
		return fmt.Errorf("%w: renaming %s: %w", constants.ErrPrivilegedWrite, tmp, err)
	}
	c.Logger.Info().Str("entry", entry.ID).Str("from", entry.Title).Str("to", title).Msg("Renamed loader entry")
	return nil
}

// SetOneShot makes entry the default for the next boot only.
func (c *Catalog) SetOneShot(entry Entry) error {
	value, err := efivar.EncodeUTF16(entry.ID)
	if err != nil {
		return fmt.Errorf("encoding entry id %q: %w", entry.ID, err)
	}
	if err := c.Vars.Write(constants.LoaderEntryOneShot, efivar.SystemdBoot, efivar.DefaultAttributes, value); err != nil {
		return fmt.Errorf("configuring systemd-boot oneshot: %w", err)
	}
	c.Logger.Info().Str("entry", entry.ID).Str("title", entry.Title).Msg("Set systemd-boot oneshot entry")
	return nil
}

// OneShot returns the entry id currently pending in LoaderEntryOneShot, or
// an empty string when none is set.
func (c *Catalog) OneShot() (string, error) {
	_, data, err := c.Vars.Read(constants.LoaderEntryOneShot, efivar.SystemdBoot)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	// systemd itself stores the id NUL terminated.
	if id, _, err := efivar.CutUTF16String(data); err == nil {
		return id, nil
	}
	return efivar.DecodeUTF16(data)
}
