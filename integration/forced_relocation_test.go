// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package integration_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/dhasenan/softie"
)

var _ = Describe("Forced relocation", func() {
	It("relocates an entry that outgrows its neighbour, zero-filling the new tail", func() {
		path := scratchPath("scenario3.sfm")

		mf, err := softie.Open(path, true)
		Expect(err).ToNot(HaveOccurred())
		defer mf.Close()

		Expect(mf.Write("A", 0, []byte("aaaa"))).To(Succeed())
		Expect(mf.Write("B", 0, []byte("bbbb"))).To(Succeed())
		Expect(mf.Write("C", 0, []byte("cccc"))).To(Succeed())

		// Grow A well past where B starts: A must relocate. Writing at
		// offset 132 leaves [4,132) to the relocation's zero fill.
		Expect(mf.Write("A", 132, bytes.Repeat([]byte("A"), 64))).To(Succeed())

		b, ok, err := mf.Read("B")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(string(b)).To(Equal("bbbb"))

		c, ok, err := mf.Read("C")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(string(c)).To(Equal("cccc"))

		a, ok, err := mf.Read("A")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(a[:4]).To(Equal([]byte("aaaa")))
		Expect(a[4:132]).To(Equal(make([]byte, 128)))
		Expect(a[132:196]).To(Equal(bytes.Repeat([]byte("A"), 64)))
	})
})
