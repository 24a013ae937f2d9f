package constants

import "errors"

// DefaultESPPaths are the mountpoints probed for loader/entries when no entries dir is configured.
func DefaultESPPaths() []string {
	return []string{"/efi", "/boot", "/boot/efi"}
}

var (
	ErrNoMatchingEntry = errors.New("no boot entry matches")
	ErrStaleTarget     = errors.New("configured boot target no longer exists")
	ErrRootChanged     = errors.New("root of configured boot target changed")
	ErrCatalogParse    = errors.New("invalid boot entry")
	ErrAttribute       = errors.New("file attribute operation failed")
	ErrPrivilegedWrite = errors.New("privileged write failed")
	ErrNoTarget        = errors.New("no boot target configured")
)

const (
	OpCheckEfivarfs     = "check-efivarfs"
	OpCheckPrivileges   = "check-privileges"
	OpLoadTarget        = "load-target"
	OpConfigureNextBoot = "configure-next-boot"
	OpReboot            = "reboot"

	EfivarsDir    = "/sys/firmware/efi/efivars"
	LoaderEntries = "loader/entries"
	StateFile     = "/var/lib/nextboot/target.yaml"
	EnvFile       = "/etc/nextboot.env"

	// EFIGlobalVariable is the vendor of BootNext, BootOrder and BootXXXX.
	EFIGlobalVariable = "8be4df61-93ca-11d2-aa0d-00e098032b8c"
	// SystemdBootVendor is the vendor of the systemd-boot loader interface variables.
	SystemdBootVendor = "4a67b082-0a4c-41cf-b6c7-440b29bb8c4f"

	LoaderEntryOneShot = "LoaderEntryOneShot"
	BootNext           = "BootNext"
	BootOrder          = "BootOrder"
	SecureBoot         = "SecureBoot"

	DefaultRebootDelay = 5
	SetTargetHint      = "re-run with set-target to configure the boot target again"
)
