package fileops

import (
	"context"
	"fmt"

	"github.com/weberc2/konixfs/pkg/ipc"
	"github.com/weberc2/konixfs/pkg/math"
	. "github.com/weberc2/konixfs/pkg/types"
)

const accessModeMask = 0x3

// ReadWrite reads into or writes from `buf` at the current position of
// `caller`'s descriptor `fd`; `op` is `ipc.MsgRead` or `ipc.MsgWrite`. It
// returns the number of bytes transferred.
//
// On a character device the request is forwarded to the device's driver. If
// the driver can't complete it yet, ReadWrite reports `suspended` and the
// driver later announces completion with a RESUME_PROC message.
func (ops *Ops) ReadWrite(
	ctx context.Context,
	op ipc.MsgType,
	caller ProcNr,
	fd int,
	buf []byte,
) (n int, suspended bool, err error) {
	_, h, err := ops.descriptor(caller, fd)
	if err != nil {
		return 0, false, fmt.Errorf("%s fd `%d`: %w", op, fd, err)
	}
	desc := ops.Descs.Get(h)
	access := desc.Mode & accessModeMask
	if (op == ipc.MsgRead && access == ipc.OpenWrite) ||
		(op == ipc.MsgWrite && access == ipc.OpenRead) {
		return 0, false, fmt.Errorf("%s fd `%d`: %w", op, fd, EBADF)
	}

	node := ops.Inodes.Inode(desc.Inode)
	switch {
	case node.Mode.IsCharSpecial():
		return ops.deviceReadWrite(ctx, op, caller, node.Device(), buf)
	case node.Mode.IsDir() && op == ipc.MsgWrite:
		return 0, false, fmt.Errorf("%s fd `%d`: %w", op, fd, EISDIR)
	}

	start := desc.Pos
	var end Byte
	if op == ipc.MsgRead {
		end = math.Min(start+Byte(len(buf)), node.Size)
	} else {
		end = math.Min(
			start+Byte(len(buf)),
			Byte(node.NrSectors)*SectorSize,
		)
	}
	if end <= start {
		return 0, false, nil
	}
	if err := ops.copyExtent(
		ctx,
		op,
		node.StartSector,
		start,
		buf[:end-start],
	); err != nil {
		return 0, false, fmt.Errorf("%s fd `%d`: %w", op, fd, err)
	}
	desc.Pos = end
	if op == ipc.MsgWrite && end > node.Size {
		node.Size = end
		if err := ops.Inodes.Flush(ctx, desc.Inode); err != nil {
			return 0, false, fmt.Errorf("%s fd `%d`: %w", op, fd, err)
		}
	}
	return int(end - start), false, nil
}

// copyExtent moves `buf` to or from byte `pos` of the extent beginning at
// `base`, one sector at a time.
func (ops *Ops) copyExtent(
	ctx context.Context,
	op ipc.MsgType,
	base Sector,
	pos Byte,
	buf []byte,
) error {
	sector := make([]byte, SectorSize)
	for done := Byte(0); done < Byte(len(buf)); {
		at := pos + done
		index := base + Sector(at/SectorSize)
		within := at % SectorSize
		chunk := math.Min(SectorSize-within, Byte(len(buf))-done)

		whole := within == 0 && chunk == SectorSize
		if op == ipc.MsgRead || !whole {
			if err := ops.Device.ReadSector(ctx, ops.Dev, index, sector); err != nil {
				return err
			}
		}
		if op == ipc.MsgRead {
			copy(buf[done:done+chunk], sector[within:within+chunk])
		} else {
			copy(sector[within:within+chunk], buf[done:done+chunk])
			if err := ops.Device.WriteSector(ctx, ops.Dev, index, sector); err != nil {
				return err
			}
		}
		done += chunk
	}
	return nil
}

func (ops *Ops) deviceReadWrite(
	ctx context.Context,
	op ipc.MsgType,
	caller ProcNr,
	dev Dev,
	buf []byte,
) (int, bool, error) {
	devOp := ipc.MsgDevRead
	if op == ipc.MsgWrite {
		devOp = ipc.MsgDevWrite
	}
	rsp, err := ops.Device.Call(ctx, dev, ipc.Message{
		Type:   devOp,
		Buf:    buf,
		Count:  len(buf),
		ProcNr: caller,
	})
	if err != nil {
		return 0, false, fmt.Errorf("%s device `%s`: %w", op, dev, err)
	}
	if rsp.Type == ipc.MsgSuspendProc {
		return 0, true, nil
	}
	if rsp.RetVal < 0 {
		return 0, false, fmt.Errorf(
			"%s device `%s`: %w",
			op,
			dev,
			Errno(-rsp.RetVal),
		)
	}
	return rsp.RetVal, false, nil
}
