package geotiff

// TIFF-flavoured LZW: MSB-first bit order and the "early change" code width
// switch that golang.org/x/image/tiff/lzw expects. compress/lzw implements
// the GIF/PDF variant, which TIFF readers reject.

const (
	lzwClear   = 256
	lzwEOI     = 257
	lzwFirst   = 258
	lzwMaxCode = 4094
	lzwMaxBits = 12
)

type bitWriter struct {
	out   []byte
	acc   uint64
	nbits uint
}

func (b *bitWriter) write(code uint32, width uint) {
	b.acc = b.acc<<width | uint64(code)
	b.nbits += width
	for b.nbits >= 8 {
		b.out = append(b.out, byte(b.acc>>(b.nbits-8)))
		b.nbits -= 8
	}
	b.acc &= (1 << b.nbits) - 1
}

func (b *bitWriter) flush() []byte {
	if b.nbits > 0 {
		b.out = append(b.out, byte(b.acc<<(8-b.nbits)))
		b.nbits = 0
		b.acc = 0
	}
	return b.out
}

// lzwEncode compresses one strip.
func lzwEncode(data []byte) []byte {
	bw := &bitWriter{out: make([]byte, 0, len(data)/2+16)}
	width := uint(9)
	next := uint32(lzwFirst)
	table := make(map[uint32]uint32, 4096)

	bw.write(lzwClear, width)
	if len(data) == 0 {
		bw.write(lzwEOI, width)
		return bw.flush()
	}

	prefix := uint32(data[0])
	for _, c := range data[1:] {
		key := prefix<<8 | uint32(c)
		if code, ok := table[key]; ok {
			prefix = code
			continue
		}

		bw.write(prefix, width)
		table[key] = next
		next++
		switch {
		case next == lzwMaxCode:
			bw.write(lzwClear, width)
			clear(table)
			next = lzwFirst
			width = 9
		case next == 1<<width && width < lzwMaxBits:
			width++
		}
		prefix = uint32(c)
	}

	bw.write(prefix, width)
	next++
	if next == 1<<width && width < lzwMaxBits {
		width++
	}
	bw.write(lzwEOI, width)
	return bw.flush()
}
