package http

import (
	"errors"
	"strings"

	"github.com/omalloc/courier/internal/constants"
)

var ErrMalformedURI = errors.New("malformed absolute-form URI")

// ParseURI splits an absolute-form HTTP URI into host, port and path.
// The scheme must be exactly "http". Missing port defaults to "80",
// missing path to "/". Component length bounds fail the parse.
//
// ParseURI is the left inverse of canonical URI construction: for any
// well-formed host, port and '/'-prefixed path,
// parsing "http://host:port/path" yields exactly (host, port, path).
func ParseURI(uri string) (host, port, path string, err error) {
	rest, ok := strings.CutPrefix(uri, "http://")
	if !ok {
		return "", "", "", ErrMalformedURI
	}

	// split authority from path at the first '/'
	authority := rest
	path = constants.DefaultPath
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		authority = rest[:i]
		path = rest[i:]
	}

	// split host from port at the first ':'
	host = authority
	port = constants.DefaultPort
	if i := strings.IndexByte(authority, ':'); i >= 0 {
		host = authority[:i]
		port = authority[i+1:]
	}

	if host == "" || len(host) > constants.HostLen {
		return "", "", "", ErrMalformedURI
	}
	if port == "" || len(port) >= constants.PortLen {
		return "", "", "", ErrMalformedURI
	}
	if len(path) > constants.LineBufferBytes {
		return "", "", "", ErrMalformedURI
	}
	return host, port, path, nil
}
