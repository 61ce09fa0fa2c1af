package pixel

import "i2c-dmxd/pkg/buffer"

// apa102Latch returns the trailing latch bytes the APA102 shift
// register needs to clock the last pixel through: one bit per two
// pixels, rounded up to whole bytes.
func apa102Latch(pixelCount int) int {
	return (((pixelCount+1)/2)+7) / 8
}

// apa102StartFrameLen is the length of the leading all-zero start
// frame, only emitted once per bus transaction by output 0.
func apa102StartFrameLen(output int) int {
	if output == 0 {
		return 4
	}
	return 0
}

// APA102IndividualEncode writes one fixed-brightness (0xFF) BGR pixel
// per DMX pixel. When fewer than 3 slots of DMX data remain for a
// given pixel, the brightness byte is still written fresh but the
// color bytes are left at whatever the checked-out buffer already
// held — this mirrors the original plugin's behavior exactly rather
// than papering over it.
func APA102IndividualEncode(b *buffer.DmxBuffer, startAddress, pixelCount, output int, be Checkouter) error {
	s0 := startAddress - 1
	start := apa102StartFrameLen(output)
	out := be.Checkout(output, start+pixelCount*4, apa102Latch(pixelCount))
	if out == nil {
		return nil
	}
	for i := 0; i < pixelCount; i++ {
		o := start + 4*i
		off := s0 + 3*i
		out[o] = 0xFF
		if b.Size()-off >= 3 {
			out[o+1] = b.Get(off + 2)
			out[o+2] = b.Get(off + 1)
			out[o+3] = b.Get(off)
		}
	}
	return be.Commit(output)
}

// APA102CombinedEncode reads one RGB pixel at the start address and
// replicates a fixed-brightness BGR quad across pixelCount pixels.
func APA102CombinedEncode(b *buffer.DmxBuffer, startAddress, pixelCount, output int, be Checkouter) error {
	s0 := startAddress - 1
	if b.Size()-s0 < 3 {
		return nil
	}
	r, g, bl := b.Get(s0), b.Get(s0+1), b.Get(s0+2)

	start := apa102StartFrameLen(output)
	out := be.Checkout(output, start+pixelCount*4, apa102Latch(pixelCount))
	if out == nil {
		return nil
	}
	for i := 0; i < pixelCount; i++ {
		o := start + 4*i
		out[o], out[o+1], out[o+2], out[o+3] = 0xFF, bl, g, r
	}
	return be.Commit(output)
}

// apa102pbBrightness packs an IRGB intensity byte into the APA102's
// 5-bit brightness field with the mark bits set.
func apa102pbBrightness(intensity byte) byte {
	return 0xE0 | (intensity >> 3)
}

// APA102PBIndividualEncode writes one per-pixel brightness byte
// derived from the DMX intensity slot, followed by BGR color bytes.
// Unlike the fixed-brightness variant, all four bytes of a pixel are
// left stale together when fewer than 4 slots of DMX data remain for
// that pixel — the brightness byte is not refreshed independently.
func APA102PBIndividualEncode(b *buffer.DmxBuffer, startAddress, pixelCount, output int, be Checkouter) error {
	s0 := startAddress - 1
	start := apa102StartFrameLen(output)
	out := be.Checkout(output, start+pixelCount*4, apa102Latch(pixelCount))
	if out == nil {
		return nil
	}
	for i := 0; i < pixelCount; i++ {
		o := start + 4*i
		off := s0 + 4*i
		if b.Size()-off >= 4 {
			out[o] = apa102pbBrightness(b.Get(off))
			out[o+1] = b.Get(off + 3)
			out[o+2] = b.Get(off + 2)
			out[o+3] = b.Get(off + 1)
		}
	}
	return be.Commit(output)
}

// APA102PBCombinedEncode reads one IRGB pixel at the start address and
// replicates its packed brightness+BGR quad across pixelCount pixels.
func APA102PBCombinedEncode(b *buffer.DmxBuffer, startAddress, pixelCount, output int, be Checkouter) error {
	s0 := startAddress - 1
	if b.Size()-s0 < 4 {
		return nil
	}
	brightness := apa102pbBrightness(b.Get(s0))
	r, g, bl := b.Get(s0+1), b.Get(s0+2), b.Get(s0+3)

	start := apa102StartFrameLen(output)
	out := be.Checkout(output, start+pixelCount*4, apa102Latch(pixelCount))
	if out == nil {
		return nil
	}
	for i := 0; i < pixelCount; i++ {
		o := start + 4*i
		out[o], out[o+1], out[o+2], out[o+3] = brightness, bl, g, r
	}
	return be.Commit(output)
}
