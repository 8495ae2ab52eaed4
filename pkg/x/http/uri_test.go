package http_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	xhttp "github.com/omalloc/courier/pkg/x/http"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		host, port string
		path       string
	}{
		{"http://example.com/index.html", "example.com", "80", "/index.html"},
		{"http://example.com", "example.com", "80", "/"},
		{"http://example.com/", "example.com", "80", "/"},
		{"http://example.com:8080/a/b?q=1", "example.com", "8080", "/a/b?q=1"},
		{"http://10.0.0.1:8000/", "10.0.0.1", "8000", "/"},
		{"http://Example.COM/Path", "Example.COM", "80", "/Path"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			host, port, path, err := xhttp.ParseURI(tt.uri)
			assert.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.path, path)
		})
	}
}

// Parsing is a left inverse of canonical construction.
func TestParseURIRoundTrip(t *testing.T) {
	hosts := []string{"a", "example.com", "my-host.sub.domain.org", "0.0.0.0"}
	ports := []string{"80", "8080", "1"}
	paths := []string{"/", "/a", "/a/b/c.bin", "/q?x=1&y=2"}

	for _, h := range hosts {
		for _, p := range ports {
			for _, pa := range paths {
				uri := fmt.Sprintf("http://%s:%s%s", h, p, pa)
				host, port, path, err := xhttp.ParseURI(uri)
				assert.NoError(t, err)
				assert.Equal(t, h, host)
				assert.Equal(t, p, port)
				assert.Equal(t, pa, path)
			}
		}
	}
}

func TestParseURIMalformed(t *testing.T) {
	tests := []string{
		"/relative/path",
		"example.com/no/scheme",
		"https://example.com/",
		"ftp://example.com/",
		"HTTP://example.com/",
		"http:/example.com/",
		"http://",
		"http://:80/",
		"http://host:/",
		"http://host:123456789/",
		"http://" + strings.Repeat("h", 257) + "/",
	}

	for _, uri := range tests {
		t.Run(uri[:min(len(uri), 32)], func(t *testing.T) {
			_, _, _, err := xhttp.ParseURI(uri)
			assert.ErrorIs(t, err, xhttp.ErrMalformedURI)
		})
	}
}
