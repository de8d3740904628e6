package softie

import "io"

// logClose calls Close on the subject and logs the error, if any. Handy
// to call from defer.
func logClose(c io.Closer) {
	if err := c.Close(); err != nil {
		Logger.Errorf("close: %s", err)
	}
}
