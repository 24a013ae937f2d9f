package cmd

import (
	"github.com/kairos-io/nextboot/internal/version"
	"github.com/urfave/cli/v2"
)

// NewApp returns the nextboot cli. The shared Flags are accepted both before
// and after a command name.
func NewApp() *cli.App {
	app := cli.NewApp()
	app.Name = "nextboot"
	app.Usage = "boot another OS on the next boot only"
	app.Version = version.GetVersion()
	app.Authors = []*cli.Author{{Name: "Kairos authors"}}
	app.Copyright = "kairos authors"
	app.Flags = append(append([]cli.Flag{}, Flags...), NextBootFlags...)
	app.Action = NextBoot
	app.Commands = Commands
	return app
}

// flagContext returns the context the flag name was given to. A command
// declares the shared flags too, so its own context would otherwise shadow a
// value passed before the command name with the default.
func flagContext(c *cli.Context, name string) *cli.Context {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(name) {
			return ctx
		}
	}
	return c
}

func stringFlag(c *cli.Context, name string) string {
	return flagContext(c, name).String(name)
}

func boolFlag(c *cli.Context, name string) bool {
	return flagContext(c, name).Bool(name)
}
