package stormcodec

import (
	ugorji "github.com/ugorji/go/codec"
)

// CBOR is a codec that encodes to and decodes from CBOR (Concise Binary Object Representation).
// http://cbor.io/
// https://tools.ietf.org/html/rfc7049
var CBOR = &handleCodec{
	name: "cbor",
	handle: func() ugorji.Handle {
		h := &ugorji.CborHandle{}
		// The builtin CBOR time tags are decoded at microsecond precision.
		// time.Time's binary form keeps the nanoseconds and the zone offset.
		h.TimeNotBuiltin = true
		return h
	},
}
