package cmd

import (
	"fmt"
	"time"

	cnst "github.com/kairos-io/nextboot/internal/constants"
	"github.com/kairos-io/nextboot/internal/utils"
	"github.com/kairos-io/nextboot/internal/version"
	"github.com/kairos-io/nextboot/pkg/state"
	"github.com/kairos-io/nextboot/pkg/target"
	"github.com/kairos-io/nextboot/pkg/uefi"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
	"github.com/urfave/cli/v2"
)

// Flags are shared by the default action and every command.
var Flags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "debug",
		EnvVars: []string{"NEXTBOOT_DEBUG"},
	},
	&cli.StringFlag{
		Name:    "entries-dir",
		Usage:   "systemd-boot loader entries directory, discovered on the ESP when empty",
		EnvVars: []string{"NEXTBOOT_ENTRIES_DIR"},
	},
	&cli.StringFlag{
		Name:    "efivars-dir",
		Value:   cnst.EfivarsDir,
		EnvVars: []string{"NEXTBOOT_EFIVARS_DIR"},
	},
	&cli.StringFlag{
		Name:    "state-file",
		Usage:   "where the boot target is stored",
		Value:   cnst.StateFile,
		EnvVars: []string{"NEXTBOOT_STATE_FILE"},
	},
	&cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "answer yes to every question",
	},
}

// NextBootFlags only apply to the default action.
var NextBootFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "dry-run",
		Usage:   "print the steps and exit",
		EnvVars: []string{"NEXTBOOT_DRY_RUN"},
	},
	&cli.BoolFlag{
		Name:  "no-reboot",
		Usage: "configure the next boot but do not reboot",
	},
	&cli.DurationFlag{
		Name:    "delay",
		Usage:   "countdown before rebooting",
		Value:   cnst.DefaultRebootDelay * time.Second,
		EnvVars: []string{"NEXTBOOT_REBOOT_DELAY"},
	},
}

// NextBoot configures the stored boot target for the next boot and reboots.
func NextBoot(c *cli.Context) error {
	utils.SetLogger(boolFlag(c, "debug"))
	sys := newSystem(c, vfs.OSFS)

	if enabled, err := sys.efi.SecureBoot(); err == nil {
		utils.Log.Debug().Bool("secureboot", enabled).Msg("Firmware state")
	}

	s := &state.State{
		Logger:        utils.Log,
		Store:         sys.store,
		Resolver:      sys.resolver,
		EfivarsDir:    stringFlag(c, "efivars-dir"),
		RebootDelay:   c.Duration("delay"),
		RebootCommand: []string{"systemctl", "reboot"},
		NoReboot:      c.Bool("no-reboot"),
	}
	g := herd.DAG(herd.EnableInit)
	if err := s.RegisterNextBoot(g); err != nil {
		return err
	}
	utils.Log.Debug().Msg(s.WriteDAG(g))

	if c.Bool("dry-run") {
		fmt.Fprint(c.App.Writer, s.WriteDAG(g))
		return nil
	}

	err := s.RunDAG(c.Context, g)
	s.LogIfError(err, "next boot")
	utils.Log.Debug().Msg(s.WriteDAG(g))
	return err
}

var Commands = []*cli.Command{
	{
		Name:      "set-target",
		Usage:     "resolve a pattern to a boot entry and store it",
		ArgsUsage: "PATTERN",
		Flags:     Flags,
		Description: `
Looks for PATTERN (case insensitive) in the descriptions of the UEFI boot options
first, then in the titles of the systemd-boot loader entries. The match is stored
and used by every later run without arguments.
`,
		Action: func(c *cli.Context) error {
			utils.SetLogger(boolFlag(c, "debug"))
			if c.NArg() != 1 {
				return cli.Exit("set-target needs exactly one PATTERN argument", 1)
			}
			sys := newSystem(c, vfs.OSFS)

			t, err := sys.resolver.Resolve(c.Args().First())
			if err != nil {
				return err
			}
			data, err := target.Marshal(t)
			if err != nil {
				return err
			}
			if err := sys.store.Store(data); err != nil {
				return err
			}
			utils.Log.Info().Str("target", t.String()).Str("file", sys.store.Path).Msg("Boot target stored")
			return nil
		},
	},
	{
		Name:  "show",
		Usage: "print the stored boot target and any pending one-time boot",
		Flags: Flags,
		Action: func(c *cli.Context) error {
			utils.SetLogger(boolFlag(c, "debug"))
			sys := newSystem(c, vfs.OSFS)

			data, err := sys.store.Load()
			if err != nil {
				return err
			}
			t, err := target.Unmarshal(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "target: %s\n", t)

			if enabled, err := sys.efi.SecureBoot(); err != nil {
				utils.Log.Debug().Err(err).Msg("reading SecureBoot")
			} else {
				fmt.Fprintf(c.App.Writer, "secure boot: %t\n", enabled)
			}

			if next, ok, err := sys.efi.BootNext(); err != nil {
				utils.Log.Debug().Err(err).Msg("reading BootNext")
			} else if ok {
				fmt.Fprintf(c.App.Writer, "pending BootNext: %s\n", uefi.VariableName(next))
			}
			if sys.loader != nil {
				if id, err := sys.loader.OneShot(); err != nil {
					utils.Log.Debug().Err(err).Msg("reading LoaderEntryOneShot")
				} else if id != "" {
					fmt.Fprintf(c.App.Writer, "pending LoaderEntryOneShot: %s\n", id)
				}
			}
			return nil
		},
	},
	{
		Name:  "list",
		Usage: "list the UEFI boot options and systemd-boot entries",
		Flags: Flags,
		Action: func(c *cli.Context) error {
			utils.SetLogger(boolFlag(c, "debug"))
			sys := newSystem(c, vfs.OSFS)

			options, err := sys.efi.List()
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "uefi boot options:")
			for _, o := range options {
				fmt.Fprintf(c.App.Writer, "  %s  %s\n", uefi.VariableName(o.Number), o.Title)
			}
			if sys.loader == nil {
				return nil
			}
			entries, err := sys.loader.List()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "systemd-boot entries (%s):\n", sys.loader.EntriesDir)
			for _, e := range entries {
				fmt.Fprintf(c.App.Writer, "  %s  (root=%s, id=%s)\n", e.Title, e.Root, e.ID)
			}
			return nil
		},
	},
	{
		Name:  "version",
		Usage: "version",
		Action: func(c *cli.Context) error {
			v := version.Get()
			utils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg("nextboot")
			return nil
		},
	},
}
