package state

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/avast/retry-go"
	cnst "github.com/kairos-io/nextboot/internal/constants"
	internalUtils "github.com/kairos-io/nextboot/internal/utils"
	"github.com/kairos-io/nextboot/pkg/target"
	"github.com/spectrocloud-labs/herd"
)

// CheckEfivarfsDagStep fails early when efivarfs is not mounted, every
// write would fail otherwise.
func (s *State) CheckEfivarfsDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpCheckEfivarfs, append(opts, herd.WithCallback(s.step(func(_ context.Context) error {
		mounted := s.EfivarfsMounted
		if mounted == nil {
			mounted = internalUtils.EfivarfsMounted
		}
		ok, err := mounted(s.EfivarsDir)
		if err != nil {
			return fmt.Errorf("checking efivarfs mount: %w", err)
		}
		if !ok {
			return fmt.Errorf("efivarfs is not mounted on %s, is this an UEFI system?", s.EfivarsDir)
		}
		return nil
	})))...)
}

// CheckPrivilegesDagStep fails early without root, gaining privileges is up to the caller.
func (s *State) CheckPrivilegesDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpCheckPrivileges, append(opts, herd.WithCallback(s.step(func(_ context.Context) error {
		if !s.privileged() {
			return errors.New("configuring the next boot needs root privileges")
		}
		return nil
	})))...)
}

// LoadTargetDagStep reads the boot target configured with set-target.
func (s *State) LoadTargetDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpLoadTarget, append(opts, herd.WithCallback(s.step(func(_ context.Context) error {
		data, err := s.Store.Load()
		if err != nil {
			return err
		}
		t, err := target.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("%w, %s", err, cnst.SetTargetHint)
		}
		s.target = t
		s.Logger.Info().Str("target", t.String()).Msg("Loaded boot target")
		return nil
	})))...)
}

// ConfigureNextBootDagStep validates the loaded target against the current
// boot entries and configures it for the next boot.
func (s *State) ConfigureNextBootDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpConfigureNextBoot, append(opts, herd.WithCallback(s.step(func(_ context.Context) error {
		if s.target == nil {
			return errNoTargetLoaded
		}
		return s.Resolver.ConfigureNextBoot(s.target)
	})))...)
}

// RebootDagStep counts down RebootDelay and reboots.
func (s *State) RebootDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpReboot, append(opts, herd.WithCallback(s.step(func(ctx context.Context) error {
		for left := s.RebootDelay; left > 0; left -= time.Second {
			s.Logger.Info().Msgf("Rebooting in %s", left)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}

		run := s.Run
		if run == nil {
			run = runCommand
		}
		return retry.Do(
			func() error { return run(ctx, s.RebootCommand) },
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(2*time.Second),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				s.Logger.Warn().Err(err).Uint("attempt", n+1).Msg("Reboot failed")
			}),
		)
	})))...)
}

func runCommand(ctx context.Context, command []string) error {
	if len(command) == 0 {
		return errors.New("no reboot command configured")
	}
	out, err := exec.CommandContext(ctx, command[0], command[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %v: %w: %s", command, err, out)
	}
	return nil
}
