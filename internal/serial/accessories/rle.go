package accessories

import "errors"

// ErrTruncatedRLE is returned when a compressed block ends in the middle
// of a run.
var ErrTruncatedRLE = errors.New("accessories: truncated RLE data")

const (
	maxLiteral = 0x7F + 1
	maxRepeat  = 0x7F + 2
)

// DecompressRLE expands printer run length encoded data. A control byte
// with bit 7 set repeats the next byte (low 7 bits + 2) times, otherwise
// the next (low 7 bits + 1) bytes are copied as is.
func DecompressRLE(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src)*2)
	for i := 0; i < len(src); {
		ctrl := src[i]
		i++
		if ctrl&0x80 != 0 {
			if i >= len(src) {
				return out, ErrTruncatedRLE
			}
			for n := int(ctrl&0x7F) + 2; n > 0; n-- {
				out = append(out, src[i])
			}
			i++
			continue
		}

		n := int(ctrl) + 1
		if i+n > len(src) {
			return out, ErrTruncatedRLE
		}
		out = append(out, src[i:i+n]...)
		i += n
	}
	return out, nil
}

// CompressRLE encodes data in the form understood by DecompressRLE.
func CompressRLE(src []byte) []byte {
	var out, literal []byte
	flush := func() {
		for len(literal) > 0 {
			n := len(literal)
			if n > maxLiteral {
				n = maxLiteral
			}
			out = append(out, byte(n-1))
			out = append(out, literal[:n]...)
			literal = literal[n:]
		}
	}

	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && src[i+run] == src[i] && run < maxRepeat {
			run++
		}
		if run >= 2 {
			flush()
			out = append(out, 0x80|byte(run-2), src[i])
		} else {
			literal = append(literal, src[i])
		}
		i += run
	}
	flush()
	return out
}
