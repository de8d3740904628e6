// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package integration_test

import (
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/dhasenan/softie"
)

var _ = Describe("Bad magic", func() {
	It("refuses to open a file whose header isn't a softie signature", func() {
		path := scratchPath("scenario5.sfm")
		Expect(os.WriteFile(path, []byte("not a softie file at all, just junk"), 0o666)).To(Succeed())

		_, err := softie.Open(path, false)
		Expect(err).To(HaveOccurred())

		serr, ok := err.(*softie.Error)
		Expect(ok).To(BeTrue())
		Expect(serr.Kind).To(Equal(softie.KindBadMagic))
	})
})
