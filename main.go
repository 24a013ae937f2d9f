package main

import (
	"fmt"
	"os"

	"github.com/kairos-io/nextboot/internal/cmd"
	cnst "github.com/kairos-io/nextboot/internal/constants"
	"github.com/kairos-io/nextboot/internal/utils"
)

// Boot another OS once.
func main() {
	// Settings from the env file feed the same NEXTBOOT_* variables as the flags.
	if err := utils.LoadEnvFile(cnst.EnvFile); err != nil {
		utils.Log.Warn().Err(err).Str("file", cnst.EnvFile).Msg("Ignoring env file")
	}

	err := cmd.NewApp().Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
