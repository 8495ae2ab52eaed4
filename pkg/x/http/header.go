package http

import (
	"bytes"
	"errors"

	"github.com/omalloc/courier/pkg/bufio"
)

// Headers the proxy supplies itself; the serialized client lines matching
// these prefixes are dropped from the pass-through block. The match is a
// case-sensitive prefix match on the raw line, the way the fields are
// conventionally serialized.
var dropHeaders = [][]byte{
	[]byte("Connection:"),
	[]byte("Proxy-Connection:"),
	[]byte("User-Agent:"),
	[]byte("Host:"),
}

var (
	ErrHeaderOverflow = errors.New("pass-through headers exceed buffer")
	ErrHeaderEOF      = errors.New("end of stream before header terminator")
)

var crlf = []byte("\r\n")

// ReadPassthroughHeaders consumes request header lines from r up to and
// including the empty CRLF terminator, drops the hop-by-hop and identity
// lines the proxy rewrites, and returns the remaining lines verbatim —
// terminator included. The concatenated result is bounded by max bytes.
//
// Filtering is idempotent: running the returned block through the filter
// again yields the same block.
func ReadPassthroughHeaders(r *bufio.Reader, max int) ([]byte, error) {
	out := make([]byte, 0, max)
	line := make([]byte, max)

	for {
		n, err := r.ReadLine(line)
		if err != nil || n == 0 {
			return nil, ErrHeaderEOF
		}

		// every line is checked against the budget, dropped or not, and a
		// line that fills the line buffer without its terminator is an
		// overflow, so an oversized header cannot slip past the filter in
		// fragments
		if len(out)+n > max || (n == len(line) && line[n-1] != '\n') {
			return nil, ErrHeaderOverflow
		}
		if !dropLine(line[:n]) {
			out = append(out, line[:n]...)
		}

		if bytes.Equal(line[:n], crlf) {
			return out, nil
		}
	}
}

func dropLine(line []byte) bool {
	for _, prefix := range dropHeaders {
		if bytes.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
