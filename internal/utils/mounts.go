package utils

import (
	"fmt"
	"path/filepath"

	"github.com/kairos-io/nextboot/internal/constants"
	"github.com/moby/sys/mountinfo"
	"github.com/twpayne/go-vfs/v4"
)

// getMounts is overridden in tests.
var getMounts = mountinfo.GetMounts

// EfivarfsMounted reports whether an efivarfs is mounted on dir.
func EfivarfsMounted(dir string) (bool, error) {
	mounts, err := getMounts(mountinfo.FSTypeFilter("efivarfs"))
	if err != nil {
		return false, err
	}
	for _, m := range mounts {
		if filepath.Clean(m.Mountpoint) == filepath.Clean(dir) {
			return true, nil
		}
	}
	return false, nil
}

// FindEntriesDir locates the systemd-boot loader entries directory.
// vfat mountpoints are tried first, then the well known ESP locations.
func FindEntriesDir(fs vfs.FS) (string, error) {
	var candidates []string
	mounts, err := getMounts(mountinfo.FSTypeFilter("vfat"))
	if err != nil {
		Log.Debug().Err(err).Msg("reading mountinfo")
	}
	for _, m := range mounts {
		candidates = append(candidates, m.Mountpoint)
	}
	candidates = append(candidates, constants.DefaultESPPaths()...)

	for _, c := range UniqueSlice(candidates) {
		dir := filepath.Join(c, constants.LoaderEntries)
		info, err := fs.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		Log.Debug().Str("dir", dir).Msg("found loader entries")
		return dir, nil
	}
	return "", fmt.Errorf("no %s directory found in %v", constants.LoaderEntries, candidates)
}

// UniqueSlice removes duplicates keeping the first occurrence.
func UniqueSlice(slice []string) []string {
	keys := make(map[string]bool)
	var list []string
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}
