package encoding

// Codec serializes values for wire and log surfaces.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

var defaultCodec Codec

// SetDefaultCodec installs the process-wide codec. Called once at startup.
func SetDefaultCodec(c Codec) {
	defaultCodec = c
}

// GetCodec returns the process-wide codec.
func GetCodec() Codec {
	return defaultCodec
}
