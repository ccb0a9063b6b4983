package xvalue

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// MaxStringLength bounds the length prefix accepted by ReadString so a corrupt prefix cannot
// trigger a huge allocation.
const MaxStringLength = 1 << 20

var (
	ErrUnknownType    = errors.New("xvalue: unknown value type")
	ErrStringTooLarge = errors.New("xvalue: string length exceeds limit")
)

// Encoder appends big-endian binary data to an internal buffer.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 64)}
}

// NewEncoderWith starts an encoder whose output begins with prefix.
func NewEncoderWith(prefix ...byte) *Encoder {
	buf := make([]byte, 0, 64+len(prefix))
	return &Encoder{buf: append(buf, prefix...)}
}

// Bytes returns the encoded bytes. The slice is only valid until the next write.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteByte appends a single byte. It never fails; the error is there to satisfy io.ByteWriter.
func (e *Encoder) WriteByte(b byte) error {
	e.buf = append(e.buf, b)
	return nil
}

func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *Encoder) WriteBool(b bool) {
	if b {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

func (e *Encoder) WriteUint16(v uint16) {
	e.buf = append(e.buf, byte(v>>8), byte(v))
}

func (e *Encoder) WriteUint32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *Encoder) WriteUint64(v uint64) {
	e.buf = append(e.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *Encoder) WriteInt32(v int32) {
	e.WriteUint32(uint32(v))
}

func (e *Encoder) WriteInt64(v int64) {
	e.WriteUint64(uint64(v))
}

func (e *Encoder) WriteFloat32(v float32) {
	e.WriteUint32(math.Float32bits(v))
}

// WriteString appends a uint32 length prefix followed by the raw UTF-8 bytes.
func (e *Encoder) WriteString(s string) {
	e.WriteUint32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteValue appends the type tag of v followed by its encoding. Unknown values are written
// as a lone tag.
func (e *Encoder) WriteValue(v Value) {
	e.buf = append(e.buf, byte(v.typ))
	switch v.typ {
	case TypeInt:
		e.WriteInt32(v.i)
	case TypeUInt:
		e.WriteUint32(v.u)
	case TypeFloat:
		e.WriteFloat32(v.f)
	case TypeString:
		e.WriteString(v.s)
	}
}

// Decoder is a read cursor over a byte slice.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

func (d *Decoder) Position() int {
	return d.pos
}

// Rest returns every unread byte without advancing the cursor.
func (d *Decoder) Rest() []byte {
	return d.buf[d.pos:]
}

func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadBytes returns the next n bytes. The slice aliases the decoder's buffer.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (d *Decoder) ReadUint64() (uint64, error) {
	hi, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	lo, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

func (d *Decoder) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	return math.Float32frombits(v), err
}

func (d *Decoder) ReadString() (string, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return "", err
	}
	if n > MaxStringLength {
		return "", ErrStringTooLarge
	}
	b, err := d.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadValue consumes one tagged value. An unrecognized tag is a protocol violation and is
// reported as ErrUnknownType; the cursor is left just past the bad tag.
func (d *Decoder) ReadValue() (Value, error) {
	tag, err := d.ReadByte()
	if err != nil {
		return Value{}, err
	}
	switch Type(tag) {
	case Unknown:
		return Value{}, nil
	case TypeInt:
		v, err := d.ReadInt32()
		return Int(v), err
	case TypeUInt:
		v, err := d.ReadUint32()
		return UInt(v), err
	case TypeFloat:
		v, err := d.ReadFloat32()
		return Float(v), err
	case TypeString:
		v, err := d.ReadString()
		return String(v), err
	default:
		return Value{}, fmt.Errorf("%w: tag %d at offset %d", ErrUnknownType, tag, d.pos-1)
	}
}
