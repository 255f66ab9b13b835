package utils

import (
	"encoding/binary"
	"errors"

	"github.com/PolyhedraZK/ProvableVM/field"
)

// ErrShortBuffer is reported by InputBuf once a read runs past the end.
var ErrShortBuffer = errors.New("unexpected end of buffer")

type OutputBuf struct {
	buf []byte
}

func (o *OutputBuf) AppendFieldElement(x field.Element) {
	b := field.ToBytes(x)
	o.buf = append(o.buf, b[:]...)
}

func (o *OutputBuf) AppendUint32(x uint32) {
	o.buf = binary.LittleEndian.AppendUint32(o.buf, x)
}

func (o *OutputBuf) AppendUint64(x uint64) {
	o.buf = binary.LittleEndian.AppendUint64(o.buf, x)
}

func (o *OutputBuf) AppendUint8(x uint8) {
	o.buf = append(o.buf, x)
}

// AppendBytes writes a length-prefixed blob.
func (o *OutputBuf) AppendBytes(b []byte) {
	o.AppendUint64(uint64(len(b)))
	o.buf = append(o.buf, b...)
}

func (o *OutputBuf) AppendFixedBytes(b []byte) {
	o.buf = append(o.buf, b...)
}

func (o *OutputBuf) Bytes() []byte {
	return o.buf
}

// InputBuf reads what OutputBuf wrote. Reads past the end or of non
// canonical field elements record a sticky error and return zero values,
// so a decoder can read a whole record and check Err once.
type InputBuf struct {
	buf []byte
	err error
}

func NewInputBuf(buf []byte) *InputBuf {
	return &InputBuf{buf: buf}
}

func (i *InputBuf) take(n int) []byte {
	if i.err != nil {
		return nil
	}
	if n < 0 || len(i.buf) < n {
		i.err = ErrShortBuffer
		return nil
	}
	b := i.buf[:n]
	i.buf = i.buf[n:]
	return b
}

func (i *InputBuf) ReadUint32() uint32 {
	b := i.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (i *InputBuf) ReadUint64() uint64 {
	b := i.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (i *InputBuf) ReadUint8() uint8 {
	b := i.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (i *InputBuf) ReadBytes() []byte {
	n := i.ReadUint64()
	if i.err != nil {
		return nil
	}
	if n > uint64(len(i.buf)) {
		i.err = ErrShortBuffer
		return nil
	}
	return i.take(int(n))
}

func (i *InputBuf) ReadFixedBytes(n int) []byte {
	return i.take(n)
}

func (i *InputBuf) ReadFieldElement() field.Element {
	b := i.take(field.Bytes)
	if b == nil {
		return field.Element{}
	}
	e, err := field.FromBytes(b)
	if err != nil {
		i.err = err
		return field.Element{}
	}
	return e
}

func (i *InputBuf) IsEnd() bool {
	return len(i.buf) == 0
}

func (i *InputBuf) Err() error {
	return i.err
}
