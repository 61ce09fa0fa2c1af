package pixel

import "i2c-dmxd/pkg/buffer"

// lpd8806Pack converts one RGB triple into the LPD8806's GRB wire
// encoding, where the top bit of every byte is forced set.
func lpd8806Pack(r, g, b byte) (byte, byte, byte) {
	return 0x80 | (g >> 1), 0x80 | (r >> 1), 0x80 | (b >> 1)
}

// lpd8806Latch returns the trailing zero-byte latch needed to flush
// the shift register, one byte per 32 pixels (rounded up).
func lpd8806Latch(pixelCount int) int {
	return (pixelCount + 31) / 32
}

// LPD8806IndividualEncode encodes one GRB-packed pixel per DMX pixel.
// If fewer than 3 slots of DMX data remain for the first pixel, the
// checkout never happens and commit is not called. Otherwise as many
// whole pixels as the available DMX data covers are written; any
// remaining pixel slots are left at their prior buffer content.
func LPD8806IndividualEncode(b *buffer.DmxBuffer, startAddress, pixelCount, output int, be Checkouter) error {
	s0 := startAddress - 1
	avail := b.Size() - s0
	if avail < 3 {
		return nil
	}

	latch := lpd8806Latch(pixelCount)
	out := be.Checkout(output, pixelCount*3, latch)
	if out == nil {
		return nil
	}

	n := avail / 3
	if n > pixelCount {
		n = pixelCount
	}
	for i := 0; i < n; i++ {
		off := s0 + i*3
		r, g, bl := b.Get(off), b.Get(off+1), b.Get(off+2)
		gp, rp, bp := lpd8806Pack(r, g, bl)
		out[i*3], out[i*3+1], out[i*3+2] = gp, rp, bp
	}
	return be.Commit(output)
}

// LPD8806CombinedEncode reads one RGB pixel at the start address,
// packs it once, and replicates the packed triple pixelCount times.
func LPD8806CombinedEncode(b *buffer.DmxBuffer, startAddress, pixelCount, output int, be Checkouter) error {
	s0 := startAddress - 1
	if b.Size()-s0 < 3 {
		return nil
	}
	r, g, bl := b.Get(s0), b.Get(s0+1), b.Get(s0+2)
	gp, rp, bp := lpd8806Pack(r, g, bl)

	latch := lpd8806Latch(pixelCount)
	out := be.Checkout(output, pixelCount*3, latch)
	if out == nil {
		return nil
	}
	for i := 0; i < pixelCount; i++ {
		out[i*3], out[i*3+1], out[i*3+2] = gp, rp, bp
	}
	return be.Commit(output)
}
