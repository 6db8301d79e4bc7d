package file

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrBufferOverflow is returned when a write would run past the end of a
// Page's underlying buffer.
var ErrBufferOverflow = errors.New("buffer overflow")

const secondsPerDay = 24 * 60 * 60

// Page is a mutable, fixed-size byte buffer with typed accessors at
// arbitrary offsets. It is the in-memory counterpart of a disk block.
// Writes are bounds-checked against the buffer and fail with
// ErrBufferOverflow; reads are not bounds-checked beyond the underlying
// slice.
type Page struct {
	buffer []byte
}

// NewPage creates a Page with a zero-filled buffer of the given block size.
func NewPage(blockSize int) *Page {
	return &Page{buffer: make([]byte, blockSize)}
}

// NewPageFromBytes wraps an existing byte slice as a Page, without copying.
func NewPageFromBytes(bytes []byte) *Page {
	return &Page{buffer: bytes}
}

func (p *Page) fits(offset, size int) error {
	if offset < 0 || size < 0 || offset+size > len(p.buffer) {
		return fmt.Errorf("write at offset %d, size %d exceeds page of %d bytes: %w", offset, size, len(p.buffer), ErrBufferOverflow)
	}
	return nil
}

// GetInt retrieves a signed 32-bit integer at the specified offset.
func (p *Page) GetInt(offset int) int32 {
	return int32(binary.BigEndian.Uint32(p.buffer[offset:]))
}

// SetInt writes a signed 32-bit integer at the specified offset.
func (p *Page) SetInt(offset int, n int32) error {
	if err := p.fits(offset, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(p.buffer[offset:], uint32(n))
	return nil
}

// GetShort retrieves a signed 16-bit integer at the specified offset.
func (p *Page) GetShort(offset int) int16 {
	return int16(binary.BigEndian.Uint16(p.buffer[offset:]))
}

// SetShort writes a signed 16-bit integer at the specified offset.
func (p *Page) SetShort(offset int, n int16) error {
	if err := p.fits(offset, 2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(p.buffer[offset:], uint16(n))
	return nil
}

// GetBool retrieves a one-byte boolean at the specified offset.
func (p *Page) GetBool(offset int) bool {
	return p.buffer[offset] != 0
}

// SetBool writes a one-byte boolean at the specified offset.
func (p *Page) SetBool(offset int, b bool) error {
	if err := p.fits(offset, 1); err != nil {
		return err
	}
	if b {
		p.buffer[offset] = 1
	} else {
		p.buffer[offset] = 0
	}
	return nil
}

// GetDate retrieves a date stored as days since the Unix epoch at the
// specified offset.
func (p *Page) GetDate(offset int) time.Time {
	days := int64(p.GetInt(offset))
	return time.Unix(days*secondsPerDay, 0).UTC()
}

// SetDate writes a date as days since the Unix epoch at the specified
// offset. The time-of-day component of date is discarded.
func (p *Page) SetDate(offset int, date time.Time) error {
	days := date.UTC().Unix() / secondsPerDay
	return p.SetInt(offset, int32(days))
}

// GetBytes retrieves a length-prefixed byte sequence at the specified
// offset: a 4-byte big-endian length followed by that many raw bytes.
func (p *Page) GetBytes(offset int) []byte {
	length := int(binary.BigEndian.Uint32(p.buffer[offset:]))
	start := offset + 4
	b := make([]byte, length)
	copy(b, p.buffer[start:start+length])
	return b
}

// SetBytes writes a length-prefixed byte sequence at the specified offset.
func (p *Page) SetBytes(offset int, b []byte) error {
	if err := p.fits(offset, 4+len(b)); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(p.buffer[offset:], uint32(len(b)))
	copy(p.buffer[offset+4:], b)
	return nil
}

// GetString retrieves a length-prefixed UTF-8 string at the specified
// offset, using the same encoding as GetBytes.
func (p *Page) GetString(offset int) (string, error) {
	b := p.GetBytes(offset)
	if !utf8.Valid(b) {
		return "", errors.New("invalid UTF-8 encoding")
	}
	return string(b), nil
}

// SetString writes a length-prefixed UTF-8 string at the specified offset.
// The string is normalized to Unicode NFC before encoding, so that two
// values that render identically but were composed of different
// combining-character sequences are persisted identically.
func (p *Page) SetString(offset int, s string) error {
	if !utf8.ValidString(s) {
		return errors.New("string contains invalid UTF-8 characters")
	}
	return p.SetBytes(offset, norm.NFC.Bytes([]byte(s)))
}

// MaxLength returns the number of bytes needed to encode a string of n
// characters: a 4-byte length prefix plus n bytes, under the assumption
// that the payload is ASCII (sufficient for the log record layout).
func MaxLength(n int) int {
	return 4 + n
}

// Contents returns the Page's underlying byte buffer.
func (p *Page) Contents() []byte {
	return p.buffer
}
