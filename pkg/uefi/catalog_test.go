package uefi_test

import (
	"bytes"

	"github.com/kairos-io/nextboot/internal/constants"
	"github.com/kairos-io/nextboot/pkg/efivar"
	"github.com/kairos-io/nextboot/pkg/immutable"
	"github.com/kairos-io/nextboot/pkg/uefi"
	"github.com/kairos-io/nextboot/tests/mocks"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-vfs/v4"
	"github.com/twpayne/go-vfs/v4/vfst"
)

var _ = Describe("Catalog", func() {
	var fsys vfs.FS
	var cleanup func()
	var attrs *mocks.Attrs
	var logs *bytes.Buffer
	var catalog *uefi.Catalog

	setup := func(files map[string]interface{}) {
		files[mocks.EfivarsDir] = &vfst.Dir{Perm: 0o755}
		var err error
		fsys, cleanup, err = vfst.NewTestFS(files)
		Expect(err).ToNot(HaveOccurred())
		attrs = mocks.NewAttrs()
		logs = &bytes.Buffer{}
		l := zerolog.New(logs)
		catalog = &uefi.Catalog{
			Vars:   &efivar.Vars{FS: fsys, Dir: mocks.EfivarsDir, Guard: immutable.New(attrs), Logger: l},
			Logger: l,
		}
	}

	AfterEach(func() {
		cleanup()
	})

	Context("List", func() {
		It("follows BootOrder then the remaining options by number", func() {
			setup(map[string]interface{}{
				mocks.GlobalVarPath("Boot0000"):    mocks.BootOption("UEFI Shell"),
				mocks.GlobalVarPath("Boot0001"):    mocks.BootOption("Windows Boot Manager"),
				mocks.GlobalVarPath("Boot000A"):    mocks.BootOption("Linux Boot Manager"),
				mocks.GlobalVarPath("Boot0003"):    mocks.BootOption("PXE IPv4"),
				mocks.GlobalVarPath("BootOrder"):   mocks.BootOrder(0x000a, 0x0001, 0x0042),
				mocks.GlobalVarPath("BootCurrent"): mocks.Var(efivar.DefaultAttributes, []byte{0x0a, 0}),
			})
			options, err := catalog.List()
			Expect(err).ToNot(HaveOccurred())
			Expect(options).To(Equal([]uefi.BootOption{
				{Title: "Linux Boot Manager", Number: 0x000a},
				{Title: "Windows Boot Manager", Number: 0x0001},
				{Title: "UEFI Shell", Number: 0x0000},
				{Title: "PXE IPv4", Number: 0x0003},
			}))
		})

		It("works without BootOrder", func() {
			setup(map[string]interface{}{
				mocks.GlobalVarPath("Boot0002"): mocks.BootOption("b"),
				mocks.GlobalVarPath("Boot0001"): mocks.BootOption("a"),
			})
			options, err := catalog.List()
			Expect(err).ToNot(HaveOccurred())
			Expect(options).To(HaveLen(2))
			Expect(options[0].Number).To(Equal(uint16(1)))
		})

		It("fails on a malformed load option", func() {
			setup(map[string]interface{}{
				mocks.GlobalVarPath("Boot0001"): mocks.BootOption("fine"),
				mocks.GlobalVarPath("Boot0002"): mocks.Var(efivar.DefaultAttributes, []byte{1, 0, 0, 0, 0, 0, 'x', 0}),
			})
			_, err := catalog.List()
			Expect(err).To(MatchError(constants.ErrCatalogParse))
			Expect(err.Error()).To(ContainSubstring("Boot0002"))
		})

		It("fails on a BootOrder of odd length", func() {
			setup(map[string]interface{}{
				mocks.GlobalVarPath("Boot0001"):  mocks.BootOption("fine"),
				mocks.GlobalVarPath("BootOrder"): mocks.Var(efivar.DefaultAttributes, []byte{1, 0, 2}),
			})
			_, err := catalog.List()
			Expect(err).To(MatchError(constants.ErrCatalogParse))
		})
	})

	It("matches descriptions ignoring case and warns about ambiguity", func() {
		setup(map[string]interface{}{
			mocks.GlobalVarPath("Boot0001"):  mocks.BootOption("Windows Boot Manager"),
			mocks.GlobalVarPath("Boot0002"):  mocks.BootOption("Linux Boot Manager"),
			mocks.GlobalVarPath("BootOrder"): mocks.BootOrder(2, 1),
		})
		o, err := catalog.MatchingPattern("boot manager")
		Expect(err).ToNot(HaveOccurred())
		Expect(*o).To(Equal(uefi.BootOption{Title: "Linux Boot Manager", Number: 2}))
		Expect(logs.String()).To(ContainSubstring("Multiple boot options match"))

		o, err = catalog.MatchingPattern("WINDOWS")
		Expect(err).ToNot(HaveOccurred())
		Expect(o.Number).To(Equal(uint16(1)))

		o, err = catalog.MatchingPattern("macos")
		Expect(err).ToNot(HaveOccurred())
		Expect(o).To(BeNil())
	})

	Context("BootNext", func() {
		It("writes the option number little endian", func() {
			setup(map[string]interface{}{})
			Expect(catalog.SetBootNext(0x1a02)).To(Succeed())
			content, err := fsys.ReadFile(mocks.GlobalVarPath("BootNext"))
			Expect(err).ToNot(HaveOccurred())
			Expect(content).To(Equal(mocks.Var(efivar.DefaultAttributes, []byte{0x02, 0x1a})))

			n, ok, err := catalog.BootNext()
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(uint16(0x1a02)))
		})

		It("clears and restores the immutable flag of an existing BootNext", func() {
			path := mocks.GlobalVarPath("BootNext")
			setup(map[string]interface{}{path: mocks.Var(efivar.DefaultAttributes, []byte{1, 0})})
			attrs.Flags[path] = immutable.FlagImmutable
			Expect(catalog.SetBootNext(3)).To(Succeed())
			Expect(attrs.Flags[path]).To(Equal(immutable.FlagImmutable))
			Expect(attrs.Calls).To(HaveLen(4))
		})

		It("reports no pending BootNext", func() {
			setup(map[string]interface{}{})
			_, ok, err := catalog.BootNext()
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Context("SecureBoot", func() {
		It("reads the state from the configured directory", func() {
			setup(map[string]interface{}{mocks.GlobalVarPath("SecureBoot"): mocks.Var(0x6, []byte{1})})
			Expect(catalog.SecureBoot()).To(BeTrue())
		})
		It("is disabled when the variable is zero", func() {
			setup(map[string]interface{}{mocks.GlobalVarPath("SecureBoot"): mocks.Var(0x6, []byte{0})})
			Expect(catalog.SecureBoot()).To(BeFalse())
		})
		It("is disabled when the firmware has no such variable", func() {
			setup(map[string]interface{}{})
			Expect(catalog.SecureBoot()).To(BeFalse())
		})
		It("rejects a malformed value", func() {
			setup(map[string]interface{}{mocks.GlobalVarPath("SecureBoot"): mocks.Var(0x6, []byte{1, 0})})
			_, err := catalog.SecureBoot()
			Expect(err).To(HaveOccurred())
		})
	})

	It("names variables with four uppercase hex digits", func() {
		Expect(uefi.VariableName(0)).To(Equal("Boot0000"))
		Expect(uefi.VariableName(0xbeef)).To(Equal("BootBEEF"))
	})

	It("rejects load options whose file path list overruns the data", func() {
		data := []byte{1, 0, 0, 0, 0x10, 0, 'a', 0, 0, 0}
		_, err := uefi.ParseLoadOption(data)
		Expect(err).To(HaveOccurred())
	})
})
