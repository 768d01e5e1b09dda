package testsupport

import (
	"context"
	"github.com/weberc2/konixfs/pkg/ipc"
	. "github.com/weberc2/konixfs/pkg/types"
)

// DeviceFake is a sparse, in-memory block device. It serves every `Dev`
// alike and records the sectors it was asked to read and write.
type DeviceFake struct {
	Geo     Geometry
	Sectors map[Sector][]byte
	Reads   []Sector
	Writes  []Sector

	// Calls records raw driver requests. `CallFunc` answers them; if it's
	// nil every request succeeds with its whole count.
	Calls    []ipc.Message
	CallFunc func(dev Dev, msg ipc.Message) ipc.Message
}

func NewDeviceFake(size uint32) *DeviceFake {
	return &DeviceFake{
		Geo:     Geometry{Size: size},
		Sectors: map[Sector][]byte{},
	}
}

func (df *DeviceFake) Geometry(context.Context, Dev) (Geometry, error) {
	return df.Geo, nil
}

func (df *DeviceFake) ReadSector(
	_ context.Context,
	dev Dev,
	sector Sector,
	buf []byte,
) error {
	if err := df.check(dev, sector, buf); err != nil {
		return err
	}
	df.Reads = append(df.Reads, sector)
	copy(buf[:SectorSize], df.Sector(sector))
	return nil
}

func (df *DeviceFake) WriteSector(
	_ context.Context,
	dev Dev,
	sector Sector,
	buf []byte,
) error {
	if err := df.check(dev, sector, buf); err != nil {
		return err
	}
	df.Writes = append(df.Writes, sector)
	data := make([]byte, SectorSize)
	copy(data, buf[:SectorSize])
	df.Sectors[sector] = data
	return nil
}

// Sector returns the contents of `sector`, all zeroes if it was never
// written.
func (df *DeviceFake) Sector(sector Sector) []byte {
	if data, found := df.Sectors[sector]; found {
		return data
	}
	return make([]byte, SectorSize)
}

func (df *DeviceFake) check(dev Dev, sector Sector, buf []byte) error {
	if uint32(sector) >= df.Geo.Size || Byte(len(buf)) < SectorSize {
		return Fatalf(
			"sector `%d` of `%s` with `%d`-byte buffer out of range",
			sector,
			dev,
			len(buf),
		)
	}
	return nil
}

func (df *DeviceFake) Call(
	_ context.Context,
	dev Dev,
	msg ipc.Message,
) (ipc.Message, error) {
	msg.Device = dev.Minor()
	df.Calls = append(df.Calls, msg)
	if df.CallFunc != nil {
		return df.CallFunc(dev, msg), nil
	}
	return ipc.Message{
		Type:   ipc.MsgSyscallRet,
		RetVal: msg.Count,
		Count:  msg.Count,
	}, nil
}
