package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/yanun0323/errors"
	"golang.org/x/text/encoding/simplifiedchinese"

	"ctpbridge/pkg/exception"
)

// fieldVisitor walks the fields of one record in native layout order.
// The same visit function drives decoding, encoding and size calculation,
// so a layout is declared exactly once.
type fieldVisitor interface {
	str(v *string, width int)
	i32(v *int32)
	f64(v *float64)
	char(v *byte)
}

// Widths of the native char[N] field types, NUL terminator included.
const (
	widthDate          = 9
	widthTime          = 9
	widthBrokerID      = 11
	widthUserID        = 16
	widthPassword      = 41
	widthInvestorID    = 13
	widthAccountID     = 13
	widthInstrumentID  = 81
	widthExchangeID    = 9
	widthErrorMsg      = 81
	widthSystemName    = 41
	widthOrderRef      = 13
	widthOrderSysID    = 21
	widthTradeID       = 21
	widthStatusMsg     = 81
	widthCombFlag      = 5
	widthForQuoteSysID = 21
)

// unsetDouble is the DBL_MAX marker the engine writes into price fields
// that carry no value.
const unsetDouble = math.MaxFloat64

type sizer struct {
	n int
}

func (s *sizer) str(_ *string, width int) { s.n += width }
func (s *sizer) i32(_ *int32)             { s.n += 4 }
func (s *sizer) f64(_ *float64)           { s.n += 8 }
func (s *sizer) char(_ *byte)             { s.n++ }

// reader decodes fields and substitutes the zero value for any field it
// cannot represent, counting each substitution as a fault.
type reader struct {
	src    []byte
	off    int
	faults int
}

func (r *reader) take(n int) ([]byte, bool) {
	start := r.off
	r.off += n
	if r.off > len(r.src) {
		r.faults++
		return nil, false
	}
	return r.src[start:r.off], true
}

func (r *reader) str(v *string, width int) {
	b, ok := r.take(width)
	if !ok {
		*v = ""
		return
	}
	s, ok := decodeText(b)
	if !ok {
		r.faults++
	}
	*v = s
}

func (r *reader) i32(v *int32) {
	b, ok := r.take(4)
	if !ok {
		*v = 0
		return
	}
	*v = int32(binary.LittleEndian.Uint32(b))
}

func (r *reader) f64(v *float64) {
	b, ok := r.take(8)
	if !ok {
		*v = 0
		return
	}
	f := math.Float64frombits(binary.LittleEndian.Uint64(b))
	switch {
	case f == unsetDouble:
		f = 0
	case math.IsNaN(f) || math.IsInf(f, 0):
		r.faults++
		f = 0
	}
	*v = f
}

func (r *reader) char(v *byte) {
	b, ok := r.take(1)
	if !ok {
		*v = 0
		return
	}
	*v = b[0]
}

// writer encodes fields into a zeroed buffer and keeps the first error.
type writer struct {
	dst []byte
	off int
	err error
}

func (w *writer) next(n int) []byte {
	b := w.dst[w.off : w.off+n]
	w.off += n
	return b
}

func (w *writer) str(v *string, width int) {
	b := w.next(width)
	if w.err != nil {
		return
	}
	enc, err := encodeText(*v)
	if err != nil {
		w.err = errors.Wrapf(err, "encode %q", *v)
		return
	}
	if len(enc) > width-1 {
		w.err = errors.Wrapf(exception.ErrFieldTooLong, "%q is %d bytes, field holds %d", *v, len(enc), width-1)
		return
	}
	copy(b, enc)
}

func (w *writer) i32(v *int32) {
	binary.LittleEndian.PutUint32(w.next(4), uint32(*v))
}

func (w *writer) f64(v *float64) {
	binary.LittleEndian.PutUint64(w.next(8), math.Float64bits(*v))
}

func (w *writer) char(v *byte) {
	w.next(1)[0] = *v
}

// decodeText trims NUL and blank padding and converts GBK to UTF-8.
// Invalid input yields "" and false.
func decodeText(b []byte) (string, bool) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return "", true
	}
	if isASCII(b) {
		return string(b), true
	}
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(b)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

func encodeText(s string) ([]byte, error) {
	if isASCII([]byte(s)) {
		return []byte(s), nil
	}
	return simplifiedchinese.GBK.NewEncoder().Bytes([]byte(s))
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
