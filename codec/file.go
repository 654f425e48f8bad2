package codec

import (
	"bytes"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/msg"
	"google.golang.org/protobuf/encoding/protowire"
)

// Magic starts every message file.
var Magic = []byte("STRMSG1\n")

// ErrProtocolMismatch is returned when a file holds another protocol than
// the caller expects.
var ErrProtocolMismatch = errors.New("protocol mismatch")

// Field numbers of a header record.
const (
	headerProtocol protowire.Number = 1
)

// Field numbers of a message record.
const (
	fieldOpcode        protowire.Number = 1
	fieldSamples       protowire.Number = 2
	fieldComplex       protowire.Number = 3
	fieldValue         protowire.Number = 4
	fieldMetadataID    protowire.Number = 5
	fieldMetadataValue protowire.Number = 6
)

// FileCodec reads and writes message files on the local file system.
type FileCodec struct{}

// Read decodes all messages of the file at path.
func (FileCodec) Read(path, protocol string) ([]msg.Message, error) {
	return ReadFile(path, protocol)
}

// Write encodes msgs into the file at path, replacing its content.
func (FileCodec) Write(path, protocol string, msgs []msg.Message) error {
	return WriteFile(path, protocol, msgs)
}

// ReadFile decodes the file at path. An empty protocol accepts any protocol
// recorded in the file.
func ReadFile(path, protocol string) ([]msg.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read message file")
	}

	got, msgs, err := Decode(data)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}

	if protocol != "" && got != protocol {
		return nil, errors.Wrapf(ErrProtocolMismatch,
			"%s holds %s, expected %s", path, got, protocol)
	}

	return msgs, nil
}

// WriteFile encodes msgs with the given protocol and writes them to path.
func WriteFile(path, protocol string, msgs []msg.Message) error {
	data, err := Encode(protocol, msgs)
	if err != nil {
		return errors.WithMessage(err, path)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write message file")
	}

	return nil
}

// Encode serializes msgs. Integral samples are coerced to the protocol's
// value range.
func Encode(protocol string, msgs []msg.Message) ([]byte, error) {
	p, err := Lookup(protocol)
	if err != nil {
		return nil, err
	}

	buf := append([]byte{}, Magic...)

	var header []byte
	header = protowire.AppendTag(header, headerProtocol, protowire.BytesType)
	header = protowire.AppendString(header, p.Name)
	buf = protowire.AppendBytes(buf, header)

	for i, m := range msgs {
		c, err := p.Coerce(m)
		if err != nil {
			return nil, errors.WithMessagef(err, "message %d", i)
		}

		buf = protowire.AppendBytes(buf, encodeMessage(c))
	}

	return buf, nil
}

func encodeMessage(m msg.Message) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldOpcode, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Opcode))

	switch m.Opcode {
	case msg.OpSample:
		if m.IsComplex() {
			packed := make([]byte, 0, 16*len(m.Complex))
			for _, v := range m.Complex {
				packed = protowire.AppendFixed64(packed, math.Float64bits(real(v)))
				packed = protowire.AppendFixed64(packed, math.Float64bits(imag(v)))
			}
			b = protowire.AppendTag(b, fieldComplex, protowire.BytesType)
			b = protowire.AppendBytes(b, packed)

			break
		}

		packed := make([]byte, 0, 8*len(m.Samples))
		for _, v := range m.Samples {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		b = protowire.AppendTag(b, fieldSamples, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	case msg.OpTime, msg.OpSampleInterval:
		b = protowire.AppendTag(b, fieldValue, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(m.Value))
	case msg.OpMetadata:
		b = protowire.AppendTag(b, fieldMetadataID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Metadata.ID))
		b = protowire.AppendTag(b, fieldMetadataValue, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Metadata.Value)
	}

	return b
}

// Decode parses a message file and returns the recorded protocol name and
// its messages.
func Decode(data []byte) (string, []msg.Message, error) {
	if !bytes.HasPrefix(data, Magic) {
		return "", nil, errors.New("not a message file")
	}
	data = data[len(Magic):]

	header, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return "", nil, errors.Wrap(protowire.ParseError(n), "header")
	}
	data = data[n:]

	protocol, err := decodeHeader(header)
	if err != nil {
		return "", nil, err
	}

	p, err := Lookup(protocol)
	if err != nil {
		return "", nil, err
	}

	msgs := []msg.Message{}
	for len(data) > 0 {
		record, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return "", nil, errors.Wrapf(protowire.ParseError(n),
				"message %d", len(msgs))
		}
		data = data[n:]

		m, err := decodeMessage(record)
		if err != nil {
			return "", nil, errors.WithMessagef(err, "message %d", len(msgs))
		}

		if err := p.Check(m); err != nil {
			return "", nil, errors.WithMessagef(err, "message %d", len(msgs))
		}

		msgs = append(msgs, m)
	}

	return protocol, msgs, nil
}

func decodeHeader(b []byte) (string, error) {
	protocol := ""

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != headerProtocol || typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		v, n := protowire.ConsumeString(b)
		protocol = v

		return n, nil
	})
	if err != nil {
		return "", errors.WithMessage(err, "header")
	}

	if protocol == "" {
		return "", errors.New("header carries no protocol name")
	}

	return protocol, nil
}

func decodeMessage(b []byte) (msg.Message, error) {
	var m msg.Message

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldOpcode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Opcode = msg.Opcode(v)
			return n, nil
		case num == fieldSamples && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			samples, err := unpackDoubles(v)
			m.Samples = samples
			return n, err
		case num == fieldComplex && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			parts, err := unpackDoubles(v)
			if err == nil && len(parts)%2 != 0 {
				err = errors.New("complex payload has an odd number of parts")
			}
			m.Complex = make([]complex128, len(parts)/2)
			for i := range m.Complex {
				m.Complex[i] = complex(parts[2*i], parts[2*i+1])
			}
			return n, err
		case num == fieldValue && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			m.Value = math.Float64frombits(v)
			return n, nil
		case num == fieldMetadataID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if v > math.MaxUint32 {
				return n, errors.Errorf("metadata id %d exceeds 32 bits", v)
			}
			m.Metadata.ID = uint32(v)
			return n, nil
		case num == fieldMetadataValue && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Metadata.Value = v
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	if err != nil {
		return msg.Message{}, err
	}

	if m.Opcode == msg.OpSample && m.Samples == nil && m.Complex == nil {
		m.Samples = []float64{}
	}

	return m, nil
}

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func consumeFields(b []byte, f fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := f(num, typ, b)
		if err != nil {
			return err
		}

		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}

	return nil
}

func unpackDoubles(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, errors.Errorf("packed doubles have %d bytes", len(b))
	}

	values := make([]float64, 0, len(b)/8)
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		values = append(values, math.Float64frombits(v))
		b = b[n:]
	}

	return values, nil
}
