//go:build darwin

package i2cbus

import "syscall"

// macOS has no bitbang I2C character device; the daemon is Linux-only
// for this backend. These stubs let the package build on darwin for
// local editing/testing of everything except the bus itself.

const csHighFlag = 0x04

var (
	ioctlWrMode        uintptr
	ioctlWrBitsPerWord uintptr
	ioctlWrMaxSpeedHz  uintptr
)

type i2cIOCTransfer struct {
	TxBuf       uint64
	RxBuf       uint64
	Len         uint32
	SpeedHz     uint32
	DelayUsecs  uint16
	BitsPerWord uint8
	CSChange    uint8
	Pad         uint32
}

func ioctlSetUint8(fd int, req uintptr, value uint8) error {
	return syscall.ENOTSUP
}

func ioctlSetUint32(fd int, req uintptr, value uint32) error {
	return syscall.ENOTSUP
}

func ioctlMessage(fd int, xfer *i2cIOCTransfer) (int, syscall.Errno) {
	return 0, syscall.ENOTSUP
}
