package pixel

import "i2c-dmxd/pkg/buffer"

// WS2801IndividualEncode copies pixelCount*3 DMX slots straight through
// as RGB triples. If the DMX buffer runs out before the full checkout
// length is filled, the remaining bytes are left at whatever the
// checked-out buffer already held.
func WS2801IndividualEncode(b *buffer.DmxBuffer, startAddress, pixelCount, output int, be Checkouter) error {
	s0 := startAddress - 1
	length := pixelCount * 3
	out := be.Checkout(output, length, 0)
	if out == nil {
		return nil
	}
	b.GetRange(s0, out)
	return be.Commit(output)
}

// WS2801CombinedEncode reads one RGB pixel at the start address and
// replicates it across pixelCount pixels. If fewer than 3 slots of DMX
// data remain, nothing is written and commit is not called.
func WS2801CombinedEncode(b *buffer.DmxBuffer, startAddress, pixelCount, output int, be Checkouter) error {
	s0 := startAddress - 1
	if b.Size()-s0 < 3 {
		return nil
	}
	var pixel [3]byte
	b.GetRange(s0, pixel[:])

	out := be.Checkout(output, pixelCount*3, 0)
	if out == nil {
		return nil
	}
	for i := 0; i < pixelCount; i++ {
		copy(out[i*3:i*3+3], pixel[:])
	}
	return be.Commit(output)
}
