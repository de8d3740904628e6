// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package integration_test

import (
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/dhasenan/softie"
)

var _ = Describe("Index relocation", func() {
	It("relocates the self-hosted index once it outgrows its reserved slot, and the file still opens after", func() {
		path := scratchPath("scenario4.sfm")

		mf, err := softie.Open(path, true)
		Expect(err).ToNot(HaveOccurred())

		// Enough entries, each with a reasonably long name, that the
		// index's serialized header area outgrows the 50% growth margin
		// it was given on its first write and must relocate itself.
		for i := 0; i < 300; i++ {
			name := fmt.Sprintf("subfile-with-a-long-descriptive-name-%04d", i)
			Expect(mf.Write(name, 0, []byte{byte(i)})).To(Succeed())
		}
		Expect(mf.Close()).To(Succeed())

		reopened, err := softie.Open(path, false)
		Expect(err).ToNot(HaveOccurred())
		defer reopened.Close()

		for i := 0; i < 300; i++ {
			name := fmt.Sprintf("subfile-with-a-long-descriptive-name-%04d", i)
			got, ok, err := reopened.Read(name)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal([]byte{byte(i)}))
		}

		// 300 subfiles plus the self-hosted index entry itself.
		stats, err := reopened.Stats()
		Expect(err).ToNot(HaveOccurred())
		Expect(stats.EntryCount).To(Equal(301))
	})
})
