package pixel

import "i2c-dmxd/pkg/buffer"

// p9813Flag computes the P9813 checksum/flag byte from one RGB triple.
func p9813Flag(r, g, bl byte) byte {
	return ^(((r & 0xC0) >> 6) | ((g & 0xC0) >> 4) | ((bl & 0xC0) >> 2))
}

// p9813Latch is the fixed trailing latch the P9813 shift register needs
// regardless of pixel count.
const p9813Latch = 12

// P9813IndividualEncode writes a 4-byte zero start frame followed by
// one flag+BGR quad per pixel. Pixels whose DMX data is unavailable
// default to (0,0,0); the start frame itself is never written by the
// encoder and is expected to already be zero from allocation.
func P9813IndividualEncode(b *buffer.DmxBuffer, startAddress, pixelCount, output int, be Checkouter) error {
	s0 := startAddress - 1
	out := be.Checkout(output, 4+pixelCount*4, p9813Latch)
	if out == nil {
		return nil
	}
	for i := 0; i < pixelCount; i++ {
		o := 4 + 4*i
		var r, g, bl byte
		off := s0 + 3*i
		if b.Size()-off >= 3 {
			r, g, bl = b.Get(off), b.Get(off+1), b.Get(off+2)
		}
		out[o], out[o+1], out[o+2], out[o+3] = p9813Flag(r, g, bl), bl, g, r
	}
	return be.Commit(output)
}

// P9813CombinedEncode reads one RGB pixel at the start address and
// replicates its flag+BGR quad across pixelCount pixels.
func P9813CombinedEncode(b *buffer.DmxBuffer, startAddress, pixelCount, output int, be Checkouter) error {
	s0 := startAddress - 1
	if b.Size()-s0 < 3 {
		return nil
	}
	r, g, bl := b.Get(s0), b.Get(s0+1), b.Get(s0+2)
	f := p9813Flag(r, g, bl)

	out := be.Checkout(output, 4+pixelCount*4, p9813Latch)
	if out == nil {
		return nil
	}
	for i := 0; i < pixelCount; i++ {
		o := 4 + 4*i
		out[o], out[o+1], out[o+2], out[o+3] = f, bl, g, r
	}
	return be.Commit(output)
}
