package mocks

import (
	"fmt"
	"io/fs"
)

// Attrs is an in memory flag word per path, implementing immutable.Attrs.
type Attrs struct {
	Flags map[string]uint32
	// GetErr and SetErr make the next calls on a path fail.
	GetErr map[string]error
	SetErr map[string]error
	// Calls records "get <path>" and "set <path> 0x..." in order.
	Calls []string
}

func NewAttrs() *Attrs {
	return &Attrs{
		Flags:  map[string]uint32{},
		GetErr: map[string]error{},
		SetErr: map[string]error{},
	}
}

func (a *Attrs) GetFlags(path string) (uint32, error) {
	a.Calls = append(a.Calls, "get "+path)
	if err := a.GetErr[path]; err != nil {
		return 0, err
	}
	return a.Flags[path], nil
}

func (a *Attrs) SetFlags(path string, flags uint32) error {
	a.Calls = append(a.Calls, fmt.Sprintf("set %s %#x", path, flags))
	if err := a.SetErr[path]; err != nil {
		return err
	}
	a.Flags[path] = flags
	return nil
}

// ErrPermission mimics what the kernel returns without CAP_LINUX_IMMUTABLE.
var ErrPermission = fs.ErrPermission
