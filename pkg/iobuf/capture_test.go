package iobuf_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omalloc/courier/pkg/iobuf"
)

func TestCaptureWithinLimit(t *testing.T) {
	c := iobuf.NewCapture(16)

	_, _ = c.Write([]byte("hello "))
	_, _ = c.Write([]byte("wo\x00rld"))

	assert.False(t, c.Overflowed())
	assert.Equal(t, []byte("hello wo\x00rld"), c.Bytes())
	assert.Equal(t, int64(12), c.Total())
}

func TestCaptureExactLimit(t *testing.T) {
	c := iobuf.NewCapture(8)

	_, _ = c.Write(bytes.Repeat([]byte{'x'}, 8))

	assert.False(t, c.Overflowed())
	assert.Len(t, c.Bytes(), 8)
}

func TestCaptureOverflowKeepsCounting(t *testing.T) {
	c := iobuf.NewCapture(8)

	_, _ = c.Write(bytes.Repeat([]byte{'x'}, 6))
	_, _ = c.Write(bytes.Repeat([]byte{'y'}, 6))
	_, _ = c.Write(bytes.Repeat([]byte{'z'}, 6))

	assert.True(t, c.Overflowed())
	assert.Equal(t, int64(18), c.Total())
	// the copy stops at the write that would burst the limit
	assert.Equal(t, bytes.Repeat([]byte{'x'}, 6), c.Bytes())
}
