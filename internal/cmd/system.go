package cmd

import (
	"os"

	"github.com/kairos-io/nextboot/internal/utils"
	"github.com/kairos-io/nextboot/pkg/efivar"
	"github.com/kairos-io/nextboot/pkg/immutable"
	"github.com/kairos-io/nextboot/pkg/store"
	"github.com/kairos-io/nextboot/pkg/systemdboot"
	"github.com/kairos-io/nextboot/pkg/target"
	"github.com/kairos-io/nextboot/pkg/uefi"
	"github.com/twpayne/go-vfs/v4"
	"github.com/urfave/cli/v2"
)

// system bundles the handles on the boot configuration of this machine.
type system struct {
	efi      *uefi.Catalog
	loader   *systemdboot.Catalog
	store    *store.File
	resolver *target.Resolver
}

func newSystem(c *cli.Context, fs vfs.FS) *system {
	vars := &efivar.Vars{
		FS:     fs,
		Dir:    stringFlag(c, "efivars-dir"),
		Guard:  immutable.New(immutable.Ioctl{FS: fs}),
		Logger: utils.Log,
	}
	s := &system{
		efi:   &uefi.Catalog{Vars: vars, Logger: utils.Log},
		store: &store.File{FS: fs, Path: stringFlag(c, "state-file")},
	}
	s.resolver = &target.Resolver{
		EFI:     s.efi,
		Confirm: utils.Confirm(os.Stdin, os.Stderr, boolFlag(c, "yes")),
		Logger:  utils.Log,
	}

	entries := stringFlag(c, "entries-dir")
	if entries == "" {
		var err error
		entries, err = utils.FindEntriesDir(fs)
		if err != nil {
			utils.Log.Debug().Err(err).Msg("systemd-boot entries not found, only uefi boot options are used")
		}
	}
	if entries != "" {
		s.loader = &systemdboot.Catalog{FS: fs, EntriesDir: entries, Vars: vars, Logger: utils.Log}
		s.resolver.Loader = s.loader
	}
	return s
}
