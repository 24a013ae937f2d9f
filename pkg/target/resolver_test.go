package target_test

import (
	"bytes"
	"errors"
	"path/filepath"

	"github.com/kairos-io/nextboot/internal/constants"
	"github.com/kairos-io/nextboot/pkg/efivar"
	"github.com/kairos-io/nextboot/pkg/immutable"
	"github.com/kairos-io/nextboot/pkg/systemdboot"
	"github.com/kairos-io/nextboot/pkg/target"
	"github.com/kairos-io/nextboot/pkg/uefi"
	"github.com/kairos-io/nextboot/tests/mocks"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-vfs/v4"
	"github.com/twpayne/go-vfs/v4/vfst"
)

var _ = Describe("Resolver", func() {
	var fsys vfs.FS
	var cleanup func()
	var attrs *mocks.Attrs
	var questions []string
	var answer bool
	var resolver *target.Resolver

	entry := func(id string) string { return filepath.Join(mocks.EntriesDir, id) }

	setup := func(files map[string]interface{}) {
		files[mocks.EfivarsDir] = &vfst.Dir{Perm: 0o755}
		if _, ok := files[mocks.EntriesDir]; !ok {
			files[mocks.EntriesDir] = &vfst.Dir{Perm: 0o755}
		}
		var err error
		fsys, cleanup, err = vfst.NewTestFS(files)
		Expect(err).ToNot(HaveOccurred())
		attrs = mocks.NewAttrs()
		l := zerolog.New(&bytes.Buffer{})
		vars := &efivar.Vars{FS: fsys, Dir: mocks.EfivarsDir, Guard: immutable.New(attrs), Logger: l}
		resolver = &target.Resolver{
			EFI:    &uefi.Catalog{Vars: vars, Logger: l},
			Loader: &systemdboot.Catalog{FS: fsys, EntriesDir: mocks.EntriesDir, Vars: vars, Logger: l},
			Confirm: func(message string) bool {
				questions = append(questions, message)
				return answer
			},
			Logger: l,
		}
	}

	oneShot := func() string {
		content, err := fsys.ReadFile(mocks.OneShotPath())
		Expect(err).ToNot(HaveOccurred())
		id, err := efivar.DecodeUTF16(content[4:])
		Expect(err).ToNot(HaveOccurred())
		return id
	}

	noOneShot := func() {
		_, err := fsys.Stat(mocks.OneShotPath())
		Expect(err).To(HaveOccurred())
	}

	BeforeEach(func() {
		questions = nil
		answer = false
	})

	AfterEach(func() {
		cleanup()
	})

	Context("Resolve", func() {
		It("picks the loader entry when no boot option matches", func() {
			setup(map[string]interface{}{
				mocks.GlobalVarPath("Boot0001"): mocks.BootOption("Linux Boot Manager"),
				entry("ubuntu.conf"):            mocks.Entry("Ubuntu", "/dev/sda2"),
				entry("windows.conf"):           mocks.Entry("Windows", "/dev/sda3"),
			})
			t, err := resolver.Resolve("win")
			Expect(err).ToNot(HaveOccurred())
			Expect(t).To(Equal(target.SystemdBoot{Title: "Windows", Root: "/dev/sda3"}))
		})

		It("prefers uefi boot options and keeps the pattern", func() {
			setup(map[string]interface{}{
				mocks.GlobalVarPath("Boot0001"): mocks.BootOption("Windows Boot Manager"),
				entry("windows.conf"):           mocks.Entry("Windows", "/dev/sda3"),
			})
			t, err := resolver.Resolve("Win")
			Expect(err).ToNot(HaveOccurred())
			Expect(t).To(Equal(target.Efi{Pattern: "Win"}))
		})

		It("lists every title when nothing matches", func() {
			setup(map[string]interface{}{
				mocks.GlobalVarPath("Boot0001"): mocks.BootOption("Linux Boot Manager"),
				entry("ubuntu.conf"):            mocks.Entry("Ubuntu", "/dev/sda2"),
				entry("fedora.conf"):            mocks.Entry("Fedora", "/dev/sda4"),
			})
			_, err := resolver.Resolve("windows")
			Expect(err).To(MatchError(constants.ErrNoMatchingEntry))
			var nomatch *target.NoMatchingEntryError
			Expect(errors.As(err, &nomatch)).To(BeTrue())
			Expect(nomatch.Available).To(Equal([]string{"Linux Boot Manager", "Fedora", "Ubuntu"}))
			Expect(err.Error()).To(ContainSubstring("\n  - Fedora"))
		})

		It("rejects an empty pattern", func() {
			setup(map[string]interface{}{})
			_, err := resolver.Resolve("")
			Expect(err).To(HaveOccurred())
		})

		It("fails on an invalid loader entry", func() {
			setup(map[string]interface{}{
				entry("windows.conf"): mocks.Entry("Windows", "/dev/sda3"),
				entry("broken.conf"):  "title Broken\n",
			})
			_, err := resolver.Resolve("win")
			Expect(err).To(MatchError(constants.ErrCatalogParse))
		})

		It("works without a loader catalog", func() {
			setup(map[string]interface{}{mocks.GlobalVarPath("Boot0001"): mocks.BootOption("Linux Boot Manager")})
			resolver.Loader = nil
			t, err := resolver.Resolve("linux")
			Expect(err).ToNot(HaveOccurred())
			Expect(t).To(Equal(target.Efi{Pattern: "linux"}))

			_, err = resolver.Resolve("windows")
			Expect(err).To(MatchError(constants.ErrNoMatchingEntry))
		})
	})

	Context("ConfigureNextBoot", func() {
		It("sets BootNext to the option matching the pattern", func() {
			setup(map[string]interface{}{
				mocks.GlobalVarPath("Boot0001"):  mocks.BootOption("Linux Boot Manager"),
				mocks.GlobalVarPath("Boot0004"):  mocks.BootOption("Windows Boot Manager"),
				mocks.GlobalVarPath("BootOrder"): mocks.BootOrder(1, 4),
			})
			Expect(resolver.ConfigureNextBoot(target.Efi{Pattern: "windows"})).To(Succeed())
			content, err := fsys.ReadFile(mocks.GlobalVarPath("BootNext"))
			Expect(err).ToNot(HaveOccurred())
			Expect(content[4:]).To(Equal([]byte{4, 0}))
		})

		It("fails with a stale uefi target", func() {
			setup(map[string]interface{}{mocks.GlobalVarPath("Boot0001"): mocks.BootOption("Linux Boot Manager")})
			err := resolver.ConfigureNextBoot(target.Efi{Pattern: "windows"})
			Expect(err).To(MatchError(constants.ErrStaleTarget))
			Expect(err.Error()).To(ContainSubstring("set-target"))
		})

		It("sets the oneshot entry when title and root still match", func() {
			setup(map[string]interface{}{
				entry("ubuntu.conf"):  mocks.Entry("Ubuntu", "/dev/sda2"),
				entry("windows.conf"): mocks.Entry("Windows", "/dev/sda3"),
			})
			Expect(resolver.ConfigureNextBoot(target.SystemdBoot{Title: "Windows", Root: "/dev/sda3"})).To(Succeed())
			Expect(oneShot()).To(Equal("windows.conf"))
			Expect(questions).To(BeEmpty())
		})

		It("refuses an entry whose root changed", func() {
			setup(map[string]interface{}{entry("windows.conf"): mocks.Entry("Windows", "/dev/sda9")})
			err := resolver.ConfigureNextBoot(target.SystemdBoot{Title: "Windows", Root: "/dev/sda3"})
			Expect(err).To(MatchError(constants.ErrRootChanged))
			Expect(err.Error()).To(ContainSubstring("/dev/sda9"))
			noOneShot()
		})

		It("renames an entry back when confirmed", func() {
			setup(map[string]interface{}{entry("windows.conf"): mocks.Entry("Win11", "/dev/sda3")})
			answer = true
			Expect(resolver.ConfigureNextBoot(target.SystemdBoot{Title: "Windows", Root: "/dev/sda3"})).To(Succeed())

			Expect(questions).To(HaveLen(1))
			Expect(questions[0]).To(ContainSubstring("Win11"))
			content, err := fsys.ReadFile(entry("windows.conf"))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal(mocks.Entry("Windows", "/dev/sda3")))
			Expect(oneShot()).To(Equal("windows.conf"))

			// The entry now matches again, so the next run does not ask.
			Expect(resolver.ConfigureNextBoot(target.SystemdBoot{Title: "Windows", Root: "/dev/sda3"})).To(Succeed())
			Expect(questions).To(HaveLen(1))
		})

		It("keeps the new title when the rename is declined", func() {
			setup(map[string]interface{}{entry("windows.conf"): mocks.Entry("Win11", "/dev/sda3")})
			Expect(resolver.ConfigureNextBoot(target.SystemdBoot{Title: "Windows", Root: "/dev/sda3"})).To(Succeed())
			content, err := fsys.ReadFile(entry("windows.conf"))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal(mocks.Entry("Win11", "/dev/sda3")))
			Expect(oneShot()).To(Equal("windows.conf"))
		})

		It("fails with a stale loader target", func() {
			setup(map[string]interface{}{entry("ubuntu.conf"): mocks.Entry("Ubuntu", "/dev/sda2")})
			err := resolver.ConfigureNextBoot(target.SystemdBoot{Title: "Windows", Root: "/dev/sda3"})
			Expect(err).To(MatchError(constants.ErrStaleTarget))
			noOneShot()
		})

		It("writes the same state when run twice", func() {
			setup(map[string]interface{}{entry("windows.conf"): mocks.Entry("Windows", "/dev/sda3")})
			t := target.SystemdBoot{Title: "Windows", Root: "/dev/sda3"}
			Expect(resolver.ConfigureNextBoot(t)).To(Succeed())
			first, err := fsys.ReadFile(mocks.OneShotPath())
			Expect(err).ToNot(HaveOccurred())
			Expect(resolver.ConfigureNextBoot(t)).To(Succeed())
			second, err := fsys.ReadFile(mocks.OneShotPath())
			Expect(err).ToNot(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("configures what Resolve returned", func() {
			setup(map[string]interface{}{
				mocks.GlobalVarPath("Boot0002"): mocks.BootOption("UEFI OS"),
				entry("arch.conf"):              mocks.Entry("Arch Linux", "UUID=abcd"),
			})
			for _, pattern := range []string{"uefi", "arch"} {
				t, err := resolver.Resolve(pattern)
				Expect(err).ToNot(HaveOccurred())
				Expect(resolver.ConfigureNextBoot(t)).To(Succeed())
			}
			Expect(oneShot()).To(Equal("arch.conf"))
			n, ok, err := resolver.EFI.(*uefi.Catalog).BootNext()
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(uint16(2)))
		})
	})
})
