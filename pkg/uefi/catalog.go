// Package uefi lists the firmware boot options (Boot####) and sets BootNext.
package uefi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/kairos-io/nextboot/internal/constants"
	"github.com/kairos-io/nextboot/pkg/efivar"
	"github.com/rs/zerolog"
)

// BootOption is a firmware load option. Numbers are assigned by the
// firmware and can change across firmware updates.
type BootOption struct {
	Title  string
	Number uint16
}

func (o BootOption) String() string {
	return o.Title
}

// Catalog reads the boot options from efivarfs on every call.
type Catalog struct {
	Vars   *efivar.Vars
	Logger zerolog.Logger
}

// List returns the boot options in BootOrder order followed by the options
// missing from BootOrder, by number.
func (c *Catalog) List() ([]BootOption, error) {
	numbers, err := c.numbers()
	if err != nil {
		return nil, err
	}
	order, err := c.bootOrder()
	if err != nil {
		return nil, err
	}

	var sorted []uint16
	seen := map[uint16]bool{}
	for _, n := range order {
		if numbers[n] && !seen[n] {
			sorted = append(sorted, n)
			seen[n] = true
		}
	}
	var rest []uint16
	for n := range numbers {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	sorted = append(sorted, rest...)

	var options []BootOption
	var errs *multierror.Error
	for _, n := range sorted {
		name := VariableName(n)
		_, data, err := c.Vars.Read(name, efivar.GlobalVariable)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("reading %s: %w", name, err))
			continue
		}
		title, err := ParseLoadOption(data)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s: %w", constants.ErrCatalogParse, name, err))
			continue
		}
		options = append(options, BootOption{Title: title, Number: n})
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("uefi boot options: %w", err)
	}
	return options, nil
}

// MatchingPattern returns the first option whose description contains
// pattern, ignoring case. Several matches are not an error but are logged.
func (c *Catalog) MatchingPattern(pattern string) (*BootOption, error) {
	options, err := c.List()
	if err != nil {
		return nil, err
	}
	var matches []BootOption
	for _, o := range options {
		if strings.Contains(strings.ToLower(o.Title), strings.ToLower(pattern)) {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		titles := make([]string, 0, len(matches))
		for _, m := range matches {
			titles = append(titles, fmt.Sprintf("%s (%s)", m.Title, VariableName(m.Number)))
		}
		c.Logger.Warn().Str("pattern", pattern).Strs("matches", titles).Str("using", VariableName(matches[0].Number)).Msg("Multiple boot options match")
	}
	return &matches[0], nil
}

// SetBootNext makes the firmware boot option number for the next boot only.
func (c *Catalog) SetBootNext(number uint16) error {
	value := binary.LittleEndian.AppendUint16(nil, number)
	if err := c.Vars.Write(constants.BootNext, efivar.GlobalVariable, efivar.DefaultAttributes, value); err != nil {
		return fmt.Errorf("configuring uefi bootnext: %w", err)
	}
	c.Logger.Info().Str("option", VariableName(number)).Msg("Set BootNext")
	return nil
}

// BootNext returns the pending BootNext option, if any.
func (c *Catalog) BootNext() (uint16, bool, error) {
	_, data, err := c.Vars.Read(constants.BootNext, efivar.GlobalVariable)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(data) != 2 {
		return 0, false, fmt.Errorf("BootNext has %d bytes, expected 2", len(data))
	}
	return binary.LittleEndian.Uint16(data), true, nil
}

// SecureBoot reports whether the firmware enforces Secure Boot. A missing
// variable means the firmware does not support it.
func (c *Catalog) SecureBoot() (bool, error) {
	_, data, err := c.Vars.Read(constants.SecureBoot, efivar.GlobalVariable)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) != 1 {
		return false, fmt.Errorf("SecureBoot has %d bytes, expected 1", len(data))
	}
	return data[0] == 1, nil
}

// VariableName returns the Boot#### name of an option number.
func VariableName(number uint16) string {
	return fmt.Sprintf("Boot%04X", number)
}

// numbers returns the option numbers that have a Boot#### variable.
func (c *Catalog) numbers() (map[uint16]bool, error) {
	names, err := c.Vars.Names(efivar.GlobalVariable)
	if err != nil {
		return nil, fmt.Errorf("listing efi variables: %w", err)
	}
	numbers := map[uint16]bool{}
	for _, name := range names {
		hex, ok := strings.CutPrefix(name, "Boot")
		if !ok || len(hex) != 4 {
			continue
		}
		n, err := strconv.ParseUint(hex, 16, 16)
		if err != nil {
			// BootNext, BootOrder, BootCurrent...
			continue
		}
		numbers[uint16(n)] = true
	}
	return numbers, nil
}

func (c *Catalog) bootOrder() ([]uint16, error) {
	_, data, err := c.Vars.Read(constants.BootOrder, efivar.GlobalVariable)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading BootOrder: %w", err)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: BootOrder has odd length %d", constants.ErrCatalogParse, len(data))
	}
	order := make([]uint16, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		order = append(order, binary.LittleEndian.Uint16(data[i:]))
	}
	return order, nil
}

// ParseLoadOption returns the description of an EFI_LOAD_OPTION:
// UINT32 Attributes, UINT16 FilePathListLength, CHAR16 Description[].
func ParseLoadOption(data []byte) (string, error) {
	if len(data) < 6 {
		return "", fmt.Errorf("load option too short (%d bytes)", len(data))
	}
	desc, rest, err := efivar.CutUTF16String(data[6:])
	if err != nil {
		return "", err
	}
	if fpLen := int(binary.LittleEndian.Uint16(data[4:6])); fpLen > len(rest) {
		return "", fmt.Errorf("file path list length %d exceeds remaining %d bytes", fpLen, len(rest))
	}
	return desc, nil
}
