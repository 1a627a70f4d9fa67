package daemonapi

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/json-iterator/go/extra"
)

// Numeric fields may arrive as strings or floats and empty objects as [];
// the fuzzy decoders coerce those instead of rejecting the payload.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	extra.RegisterFuzzyDecoders()
}
