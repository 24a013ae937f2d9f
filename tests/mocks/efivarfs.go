package mocks

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/kairos-io/nextboot/internal/constants"
	"github.com/kairos-io/nextboot/pkg/efivar"
)

const (
	EfivarsDir = "/sys/firmware/efi/efivars"
	EntriesDir = "/boot/efi/loader/entries"
)

// Var returns the efivarfs file content of a variable.
func Var(attrs uint32, data []byte) []byte {
	return append(binary.LittleEndian.AppendUint32(nil, attrs), data...)
}

// GlobalVarPath is the efivarfs path of an EFI global variable.
func GlobalVarPath(name string) string {
	return filepath.Join(EfivarsDir, fmt.Sprintf("%s-%s", name, constants.EFIGlobalVariable))
}

// OneShotPath is the efivarfs path of LoaderEntryOneShot.
func OneShotPath() string {
	return filepath.Join(EfivarsDir, fmt.Sprintf("%s-%s", constants.LoaderEntryOneShot, constants.SystemdBootVendor))
}

// BootOption returns the efivarfs file of an active load option with an
// empty device path list.
func BootOption(description string) []byte {
	desc, err := efivar.EncodeUTF16(description)
	if err != nil {
		panic(err)
	}
	data := binary.LittleEndian.AppendUint32(nil, 1) // LOAD_OPTION_ACTIVE
	data = binary.LittleEndian.AppendUint16(data, 0)
	data = append(data, desc...)
	data = append(data, 0, 0)
	return Var(efivar.DefaultAttributes, data)
}

// BootOrder returns the efivarfs file of BootOrder.
func BootOrder(numbers ...uint16) []byte {
	var data []byte
	for _, n := range numbers {
		data = binary.LittleEndian.AppendUint16(data, n)
	}
	return Var(efivar.DefaultAttributes, data)
}

// Entry returns a minimal loader entry file.
func Entry(title, root string) string {
	return fmt.Sprintf("title %s\nlinux /vmlinuz\ninitrd /initrd.img\noptions root=%s rw quiet\n", title, root)
}

// UTF16 encodes s like systemd-boot expects its variables.
func UTF16(s string) []byte {
	b, err := efivar.EncodeUTF16(s)
	if err != nil {
		panic(err)
	}
	return b
}
