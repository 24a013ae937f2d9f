// Package target resolves a user supplied pattern into a durable reference to
// a bootable OS and configures that OS for the next boot.
package target

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// BootTarget is either Efi or SystemdBoot. The variant decides which catalog
// is queried and how the next boot is configured.
type BootTarget interface {
	fmt.Stringer
	isBootTarget()
}

// Efi targets a firmware boot option. The pattern is kept rather than the
// option number because firmware updates renumber options.
type Efi struct {
	Pattern string `yaml:"pattern"`
}

// SystemdBoot targets a loader entry. The root is kept next to the title so
// an entry that was renamed can still be found.
type SystemdBoot struct {
	Title string `yaml:"title"`
	Root  string `yaml:"root"`
}

func (Efi) isBootTarget()         {}
func (SystemdBoot) isBootTarget() {}

func (t Efi) String() string {
	return fmt.Sprintf("uefi boot option matching %q", t.Pattern)
}

func (t SystemdBoot) String() string {
	return fmt.Sprintf("systemd-boot entry %q (root=%s)", t.Title, t.Root)
}

type document struct {
	Efi         *Efi         `yaml:"efi,omitempty"`
	SystemdBoot *SystemdBoot `yaml:"systemd-boot,omitempty"`
}

// Marshal serializes t.
func Marshal(t BootTarget) ([]byte, error) {
	var doc document
	switch v := t.(type) {
	case Efi:
		doc.Efi = &v
	case SystemdBoot:
		doc.SystemdBoot = &v
	default:
		return nil, fmt.Errorf("unknown boot target %T", t)
	}
	return yaml.Marshal(doc)
}

// Unmarshal parses data written by Marshal.
func Unmarshal(data []byte) (BootTarget, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding boot target: %w", err)
	}

	switch {
	case doc.Efi != nil && doc.SystemdBoot != nil:
		return nil, errors.New("decoding boot target: both efi and systemd-boot are set")
	case doc.Efi != nil:
		if doc.Efi.Pattern == "" {
			return nil, errors.New("decoding boot target: empty efi pattern")
		}
		return *doc.Efi, nil
	case doc.SystemdBoot != nil:
		if doc.SystemdBoot.Title == "" || doc.SystemdBoot.Root == "" {
			return nil, errors.New("decoding boot target: systemd-boot needs a title and a root")
		}
		return *doc.SystemdBoot, nil
	default:
		return nil, errors.New("decoding boot target: no target set")
	}
}
