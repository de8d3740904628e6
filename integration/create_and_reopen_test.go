// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package integration_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/dhasenan/softie"
)

var _ = Describe("Create, two small writes, reopen", func() {
	It("reads back both subfiles unchanged after a close and reopen", func() {
		path := scratchPath("scenario1.sfm")

		mf, err := softie.Open(path, true)
		Expect(err).ToNot(HaveOccurred())

		Expect(mf.Write("r1", 0, []byte{1, 1, 2, 3, 5, 8, 13, 21, 34, 55})).To(Succeed())
		Expect(mf.Write("r2", 0, []byte("A british tar is a soaring soul"))).To(Succeed())
		Expect(mf.Close()).To(Succeed())

		reopened, err := softie.Open(path, false)
		Expect(err).ToNot(HaveOccurred())
		defer reopened.Close()

		r1, ok, err := reopened.Read("r1")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(r1).To(Equal([]byte{1, 1, 2, 3, 5, 8, 13, 21, 34, 55}))

		r2, ok, err := reopened.Read("r2")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(string(r2)).To(Equal("A british tar is a soaring soul"))
	})
})
