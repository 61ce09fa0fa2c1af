//go:build linux

package i2cbus

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// i2cIOCMagic is the ioctl magic byte the bitbang I2C character
// device registers its command family under.
const i2cIOCMagic = 0x69 // 'i'

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func iocEncode(dir, typ, nr, size uintptr) uintptr {
	return (dir << 30) | (typ << 8) | nr | (size << 16)
}

func iocW(nr, size uintptr) uintptr {
	return iocEncode(iocWrite, i2cIOCMagic, nr, size)
}

// csHighFlag mirrors the original driver's I2C_CS_HIGH mode bit.
const csHighFlag = 0x04

var (
	ioctlWrMode        = iocW(1, 1)
	ioctlWrBitsPerWord = iocW(3, 1)
	ioctlWrMaxSpeedHz  = iocW(4, 4)
)

// i2cIOCTransfer mirrors the driver's struct i2c_ioc_transfer, laid
// out like the SPI-style message descriptor the original ioctl set is
// modeled on.
type i2cIOCTransfer struct {
	TxBuf         uint64
	RxBuf         uint64
	Len           uint32
	SpeedHz       uint32
	DelayUsecs    uint16
	BitsPerWord   uint8
	CSChange      uint8
	Pad           uint32
}

func iocMessage(n uintptr) uintptr {
	return iocW(0, n*uintptr(unsafe.Sizeof(i2cIOCTransfer{})))
}

func ioctlSetUint8(fd int, req uintptr, value uint8) error {
	v := value
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlSetUint32(fd int, req uintptr, value uint32) error {
	v := value
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return errno
	}
	return nil
}

// ioctlMessage issues I2C_IOC_MESSAGE(1) with a single transfer
// descriptor, returning the number of bytes the driver reports written.
func ioctlMessage(fd int, xfer *i2cIOCTransfer) (int, syscall.Errno) {
	req := iocMessage(1)
	n, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(xfer)))
	return int(n), errno
}
