// Package stormcodec provides extra Storm codecs based on ugorji's codec library
// and a way to pick one of them by name.
package stormcodec

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/asdine/storm/v3/codec"
	"github.com/asdine/storm/v3/codec/msgpack"
	ugorji "github.com/ugorji/go/codec"
)

var codecs = map[string]codec.MarshalUnmarshaler{
	msgpack.Codec.Name(): msgpack.Codec,
	CBOR.Name():          CBOR,
	Binc.Name():          Binc,
}

// Lookup returns the codec registered under the given name.
// An empty name returns the default MessagePack codec.
func Lookup(name string) (codec.MarshalUnmarshaler, error) {
	if name == "" {
		return msgpack.Codec, nil
	}

	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown storm codec %q (available: %v)", name, Names())
	}
	return c, nil
}

// Names returns the sorted names of all available codecs.
func Names() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type handleCodec struct {
	name   string
	handle func() ugorji.Handle
}

func (c *handleCodec) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := ugorji.NewEncoder(&b, c.handle())
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c *handleCodec) Unmarshal(b []byte, v any) error {
	dec := ugorji.NewDecoderBytes(b, c.handle())
	return dec.Decode(v)
}

func (c *handleCodec) Name() string {
	return c.name
}
