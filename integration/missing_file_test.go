// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package integration_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/dhasenan/softie"
)

var _ = Describe("Missing file", func() {
	It("fails with KindNotFound when create is false", func() {
		path := scratchPath("scenario6-absent.sfm")

		_, err := softie.Open(path, false)
		Expect(err).To(HaveOccurred())

		serr, ok := err.(*softie.Error)
		Expect(ok).To(BeTrue())
		Expect(serr.Kind).To(Equal(softie.KindNotFound))
	})

	It("creates the file and reads a miss when create is true", func() {
		path := scratchPath("scenario6-created.sfm")

		mf, err := softie.Open(path, true)
		Expect(err).ToNot(HaveOccurred())
		defer mf.Close()

		_, ok, err := mf.Read("none")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})
