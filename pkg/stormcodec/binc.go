package stormcodec

import (
	ugorji "github.com/ugorji/go/codec"
)

// Binc is a codec that encodes to and decodes from Binc.
// See https://github.com/ugorji/binc
var Binc = &handleCodec{
	name: "binc",
	handle: func() ugorji.Handle {
		return &ugorji.BincHandle{}
	},
}
