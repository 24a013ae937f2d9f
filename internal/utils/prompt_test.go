package utils

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ask", func() {
	DescribeTable("reads the answer",
		func(input string, expected bool) {
			out := &bytes.Buffer{}
			Expect(ask(strings.NewReader(input), out, "Rename entry?")).To(Equal(expected))
			Expect(out.String()).To(Equal("Rename entry? [y/N] "))
		},
		Entry("y", "y\n", true),
		Entry("yes in capitals", "YES\n", true),
		Entry("yes without newline", "yes", true),
		Entry("no", "n\n", false),
		Entry("empty line", "\n", false),
		Entry("eof", "", false),
		Entry("anything else", "sure\n", false),
	)
})
