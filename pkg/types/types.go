package types

import "fmt"

// Byte is a byte count or a byte offset on a device.
type Byte int64

// Sector is a sector index relative to the start of a device.
type Sector uint32

// Ino is an inode number. `InoNil` is reserved and never names an inode.
type Ino uint32

// ProcNr identifies a task or process slot in the process table.
type ProcNr int

// Dev is a composite device number: the major number selects the driver and
// the minor number selects a device served by that driver.
type Dev uint32

const (
	SectorSize Byte = 512

	InoNil  Ino = 0
	InoRoot Ino = 1

	// NoDev marks an unused superblock registry slot.
	NoDev Dev = 0

	// Any is the wildcard source for `Receive`.
	Any ProcNr = -1

	// NoProc marks an unset process reference.
	NoProc ProcNr = -2

	// Interrupt is the source of messages raised by hardware, such as
	// keyboard input.
	Interrupt ProcNr = -10
)

// Major device numbers.
const (
	MajorHD  uint32 = 3
	MajorTTY uint32 = 4
)

// RootDev is the partition holding the root filesystem.
const RootDev Dev = Dev(MajorHD<<8 | 0x21)

func MakeDev(major, minor uint32) Dev { return Dev(major<<8 | minor) }

func (dev Dev) Major() uint32 { return uint32(dev>>8) & 0xff }

func (dev Dev) Minor() uint32 { return uint32(dev) & 0xff }

func (dev Dev) String() string {
	return fmt.Sprintf("%d,%d", dev.Major(), dev.Minor())
}

func (dev Dev) MarshalText() ([]byte, error) { return []byte(dev.String()), nil }

func (s Sector) Offset() Byte { return Byte(s) * SectorSize }

// ConstError is an error type whose values can be declared as constants and
// compared with `errors.Is`.
type ConstError string

func (err ConstError) Error() string { return string(err) }

// Geometry is a partition's placement on its disk, as reported by the
// driver's `GET_GEOMETRY` control request.
type Geometry struct {
	Base Sector
	Size uint32
}
