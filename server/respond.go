package server

import (
	"fmt"
	"io"

	perrors "github.com/omalloc/courier/pkg/errors"
)

func badRequest(cause string) *perrors.Error {
	return perrors.New(400, "Bad Request", "Proxy received a malformed request").WithCause(cause)
}

func notImplemented(cause string) *perrors.Error {
	return perrors.New(501, "Not Implemented", "Proxy does not implement this method").WithCause(cause)
}

func internalError(cause string) *perrors.Error {
	return perrors.New(500, "Internal Server Error", "Proxy cannot generate new request").WithCause(cause)
}

func serviceUnavailable(long, cause string) *perrors.Error {
	return perrors.New(503, "Service Unavailable", long).WithCause(cause)
}

// writeError emits a well-formed HTTP/1.0 error response. Best effort:
// write failures are swallowed, the connection is going away either way.
func writeError(w io.Writer, e *perrors.Error) {
	body := fmt.Sprintf(
		"<!DOCTYPE html>\r\n"+
			"<html>\r\n"+
			"<head><title>Courier Error</title></head>\r\n"+
			"<body bgcolor=\"ffffff\">\r\n"+
			"<h1>%d: %s</h1>\r\n"+
			"<p>%s: %s</p>\r\n"+
			"<hr /><em>The courier proxy</em>\r\n"+
			"</body></html>\r\n",
		e.Code, e.Short, e.Long, e.Cause())

	head := fmt.Sprintf(
		"HTTP/1.0 %d %s\r\n"+
			"Content-Type: text/html\r\n"+
			"Content-Length: %d\r\n\r\n",
		e.Code, e.Short, len(body))

	if _, err := io.WriteString(w, head); err != nil {
		return
	}
	_, _ = io.WriteString(w, body)
}
