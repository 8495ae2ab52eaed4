package mapstruct

import (
	"github.com/go-viper/mapstructure/v2"
)

// Decode maps a decoded configuration tree onto a typed struct using the
// json tag names, parsing duration strings along the way.
func Decode(input any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: nil,
		TagName:  "json",
		Result:   output,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}
