package leb128

import (
	"errors"
	"fmt"
	"io"
)

const (
	maxVarintLen32 = 5

	continuation = 0x80
	payloadMask  = 0x7f
)

var (
	ErrOverflow32    = errors.New("overflows a 32-bit integer")
	ErrUnexpectedEnd = errors.New("unexpected end of LEB128 input")
)

// EncodeUint32 encodes the value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_unsigned_integer
func EncodeUint32(value uint32) []byte {
	return AppendUint32(make([]byte, 0, maxVarintLen32), value)
}

// AppendUint32 appends the LEB128 encoding of value to dst and returns the extended slice.
func AppendUint32(dst []byte, value uint32) []byte {
	for {
		b := byte(value & payloadMask)
		value >>= 7
		if value == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|continuation)
	}
}

// DecodeUint32 reads an unsigned LEB128 value from r, returning the value and the count of bytes read.
func DecodeUint32(r io.Reader) (ret uint32, num uint64, err error) {
	b := make([]byte, 1)
	for shift := 0; shift < 35; shift += 7 {
		if _, err = io.ReadFull(r, b); err != nil {
			return 0, 0, fmt.Errorf("readByte failed: %w", err)
		}
		num++
		if shift == 28 && b[0] > 0x0f {
			return 0, 0, ErrOverflow32
		}
		ret |= uint32(b[0]&payloadMask) << shift
		if b[0]&continuation == 0 {
			return
		}
	}
	return 0, 0, ErrOverflow32
}

// LoadUint32 is like DecodeUint32, but reads directly from the head of buf.
func LoadUint32(buf []byte) (ret uint32, num uint64, err error) {
	for shift := 0; shift < 35; shift += 7 {
		if int(num) >= len(buf) {
			return 0, 0, ErrUnexpectedEnd
		}
		b := buf[num]
		num++
		if shift == 28 && b > 0x0f {
			return 0, 0, ErrOverflow32
		}
		ret |= uint32(b&payloadMask) << shift
		if b&continuation == 0 {
			return
		}
	}
	return 0, 0, ErrOverflow32
}
