package state

import (
	cnst "github.com/kairos-io/nextboot/internal/constants"
	"github.com/spectrocloud-labs/herd"
)

// RegisterNextBoot registers the steps that configure the stored boot target
// for the next boot and reboot into it. Steps form a single chain, each one
// only runs if the previous one succeeded.
func (s *State) RegisterNextBoot(g *herd.Graph) error {
	var err error

	if err = s.LogIfErrorAndReturn(s.CheckEfivarfsDagStep(g), "check efivarfs"); err != nil {
		return err
	}
	if err = s.LogIfErrorAndReturn(s.CheckPrivilegesDagStep(g, herd.WithDeps(cnst.OpCheckEfivarfs)), "check privileges"); err != nil {
		return err
	}
	if err = s.LogIfErrorAndReturn(s.LoadTargetDagStep(g, herd.WithDeps(cnst.OpCheckPrivileges)), "load target"); err != nil {
		return err
	}
	if err = s.LogIfErrorAndReturn(s.ConfigureNextBootDagStep(g, herd.WithDeps(cnst.OpLoadTarget)), "configure next boot"); err != nil {
		return err
	}
	if s.NoReboot {
		return nil
	}
	return s.LogIfErrorAndReturn(s.RebootDagStep(g, herd.WithDeps(cnst.OpConfigureNextBoot)), "reboot")
}
