package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kairos-io/nextboot/pkg/target"
	"github.com/rs/zerolog"
	"github.com/spectrocloud-labs/herd"
	"golang.org/x/sys/unix"
)

// Loader returns the persisted boot target bytes.
type Loader interface {
	Load() ([]byte, error)
}

// State holds what the run pipeline needs to configure the next boot and reboot.
type State struct {
	Logger     zerolog.Logger
	Store      Loader
	Resolver   *target.Resolver
	EfivarsDir string // e.g. /sys/firmware/efi/efivars

	RebootDelay   time.Duration // countdown before rebooting
	RebootCommand []string      // e.g. systemctl reboot
	NoReboot      bool          // stop after configuring the next boot

	// Overridable system access, defaults are used when nil.
	EfivarfsMounted func(dir string) (bool, error)
	Privileged      func() bool
	Run             func(ctx context.Context, command []string) error

	target target.BootTarget
	err    error
}

// Target returns the boot target loaded by the pipeline, if any.
func (s *State) Target() target.BootTarget {
	return s.target
}

// WriteDAG writes the dag.
func (s *State) WriteDAG(g *herd.Graph) (out string) {
	for i, layer := range g.Analyze() {
		out += fmt.Sprintf("%d.\n", i+1)
		for _, op := range layer {
			if op.Error != nil {
				out += fmt.Sprintf(" <%s> (error: %s) (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Error.Error(), op.Background, op.WeakDeps, op.Executed)
			} else {
				out += fmt.Sprintf(" <%s> (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Background, op.WeakDeps, op.Executed)
			}
		}
	}
	return
}

// RunDAG runs g and returns the error of the first step that failed, so
// callers can match it with errors.Is.
func (s *State) RunDAG(ctx context.Context, g *herd.Graph) error {
	err := g.Run(ctx)
	if s.err != nil {
		return s.err
	}
	return err
}

// LogIfError will log if there is an error with the given context as message
// Context can be empty.
func (s *State) LogIfError(e error, msgContext string) {
	if e != nil {
		s.Logger.Err(e).Msg(msgContext)
	}
}

// LogIfErrorAndReturn will log if there is an error with the given context as message
// Context can be empty
// Will also return the error.
func (s *State) LogIfErrorAndReturn(e error, msgContext string) error {
	if e != nil {
		s.Logger.Err(e).Msg(msgContext)
	}
	return e
}

// step records the first failure, herd only keeps errors per op.
func (s *State) step(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if s.err != nil {
			return fmt.Errorf("skipped, an earlier step failed: %w", s.err)
		}
		err := fn(ctx)
		if err != nil {
			s.err = err
		}
		return err
	}
}

func (s *State) privileged() bool {
	if s.Privileged != nil {
		return s.Privileged()
	}
	return unix.Geteuid() == 0
}

var errNoTargetLoaded = errors.New("no boot target loaded")
