// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package softie

import "go.uber.org/zap"

// Logger is the sugared logger used for softie's handful of warn/error
// traces (an entry relocation, a corrupted on-disk Index detected while
// loading). It is never on the hot path of Read/Write and callers may
// replace it wholesale before opening a Multifile.
var Logger = zap.Must(zap.NewProduction()).Sugar()
