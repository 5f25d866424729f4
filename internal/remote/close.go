package remote

import (
	"errors"
	"io"
	"net"
)

// CloseAll closes every closer in order and joins the errors. Closing an
// already closed connection is not reported.
func CloseAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && !isClosedError(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
