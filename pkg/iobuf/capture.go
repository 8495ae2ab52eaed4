package iobuf

// CaptureBuffer accumulates a bounded copy of a stream that is being
// relayed elsewhere. Writes past the limit stop copying but keep counting,
// so the caller can tell after the fact whether the full stream fit.
// Copies are length-counted; the payload may contain NUL bytes.
type CaptureBuffer struct {
	buf   []byte
	total int64
	limit int64
}

// NewCapture returns a capture buffer that retains at most limit bytes.
func NewCapture(limit int64) *CaptureBuffer {
	return &CaptureBuffer{
		buf:   make([]byte, 0, limit),
		limit: limit,
	}
}

// Write records p. It never fails; once the running total would exceed the
// limit the copy is abandoned but the total keeps tracking the stream.
func (c *CaptureBuffer) Write(p []byte) (int, error) {
	if c.total+int64(len(p)) <= c.limit {
		c.buf = append(c.buf, p...)
	}
	c.total += int64(len(p))
	return len(p), nil
}

// Overflowed reports whether the stream outgrew the limit. An overflowed
// capture holds a truncated prefix and must not be published.
func (c *CaptureBuffer) Overflowed() bool {
	return c.total > c.limit
}

// Bytes returns the captured copy. Only meaningful when !Overflowed().
func (c *CaptureBuffer) Bytes() []byte {
	return c.buf
}

// Total returns the cumulative stream length seen, including bytes past
// the limit.
func (c *CaptureBuffer) Total() int64 {
	return c.total
}
