// Package gateway implements synchronous block I/O against driver tasks.
//
// Every call is a rendezvous: the calling task sends a request to the driver
// serving the device's major number and does not continue until that driver
// replies. This is the FS task's only suspension point besides its top-level
// receive.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/konixfs/pkg/ipc"
	. "github.com/weberc2/konixfs/pkg/types"
)

// NoDriver marks a major number that no driver serves.
const NoDriver ProcNr = -20

const DriverErr ConstError = "driver reported failure"

// DriverMap maps a device's major number to the driver task serving it.
type DriverMap map[uint32]ProcNr

// Lookup returns the driver for `dev`. An unmapped major is a fatal
// configuration error.
func (m DriverMap) Lookup(dev Dev) (ProcNr, error) {
	driver, ok := m[dev.Major()]
	if !ok || driver == NoDriver {
		return NoProc, Fatalf("no driver for device `%s`", dev)
	}
	return driver, nil
}

// Rendezvous is the subset of the kernel the gateway needs.
type Rendezvous interface {
	SendRecv(
		ctx context.Context,
		self ProcNr,
		to ProcNr,
		msg ipc.Message,
	) (ipc.Message, error)
}

type Gateway struct {
	IPC     Rendezvous
	Self    ProcNr
	Drivers DriverMap

	// Retries is how many times a request the driver reports as failed is
	// reissued before the failure becomes fatal.
	Retries int

	// Timeout bounds each rendezvous. Zero waits forever.
	Timeout time.Duration

	Log logrus.FieldLogger
}

// Call sends `msg` to the driver for `dev` and returns its reply verbatim.
// Only rendezvous failures are errors; the reply's status is left to the
// caller.
func (gw *Gateway) Call(
	ctx context.Context,
	dev Dev,
	msg ipc.Message,
) (ipc.Message, error) {
	driver, err := gw.Drivers.Lookup(dev)
	if err != nil {
		return ipc.Message{}, err
	}
	msg.Device = dev.Minor()

	callCtx := ctx
	if gw.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, gw.Timeout)
		defer cancel()
	}

	rsp, err := gw.IPC.SendRecv(callCtx, gw.Self, driver, msg)
	if err != nil {
		// the caller's own cancellation means shutdown, not a driver fault
		if ctx.Err() != nil {
			return ipc.Message{}, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ipc.Message{}, FatalWrap(
				err,
				"driver `%d` did not answer %s for device `%s` within `%s`",
				driver,
				msg.Type,
				dev,
				gw.Timeout,
			)
		}
		return ipc.Message{}, FatalWrap(
			err,
			"rendezvous with driver `%d` for device `%s`",
			driver,
			dev,
		)
	}
	return rsp, nil
}

// request issues `msg` and retries it while the driver reports failure.
func (gw *Gateway) request(
	ctx context.Context,
	dev Dev,
	msg ipc.Message,
) (ipc.Message, error) {
	for attempt := 0; ; attempt++ {
		rsp, err := gw.Call(ctx, dev, msg)
		if err != nil {
			return rsp, err
		}
		if rsp.RetVal >= 0 {
			return rsp, nil
		}
		log := gw.Log.WithFields(logrus.Fields{
			"dev":     dev.String(),
			"op":      msg.Type.String(),
			"pos":     msg.Position,
			"attempt": attempt,
			"status":  rsp.RetVal,
		})
		if attempt >= gw.Retries {
			log.Error("driver request failed; giving up")
			return rsp, FatalWrap(
				DriverErr,
				"%s on device `%s` at `%d` failed after `%d` attempts "+
					"(status `%d`)",
				msg.Type,
				dev,
				msg.Position,
				attempt+1,
				rsp.RetVal,
			)
		}
		log.Warn("driver request failed; retrying")
	}
}

// Transfer reads or writes `len(buf)` bytes at byte offset `pos` of `dev` on
// behalf of `owner`. `op` is `ipc.MsgDevRead` or `ipc.MsgDevWrite`.
func (gw *Gateway) Transfer(
	ctx context.Context,
	op ipc.MsgType,
	dev Dev,
	pos Byte,
	buf []byte,
	owner ProcNr,
) error {
	if op != ipc.MsgDevRead && op != ipc.MsgDevWrite {
		return Fatalf("transfer: invalid operation `%s`", op)
	}
	if _, err := gw.request(ctx, dev, ipc.Message{
		Type:     op,
		Position: pos,
		Buf:      buf,
		Count:    len(buf),
		ProcNr:   owner,
	}); err != nil {
		return fmt.Errorf(
			"%s `%d` bytes at `%d` on `%s`: %w",
			op,
			len(buf),
			pos,
			dev,
			err,
		)
	}
	return nil
}

// ReadSector reads the whole sector `sector` of `dev` into `buf`.
func (gw *Gateway) ReadSector(
	ctx context.Context,
	dev Dev,
	sector Sector,
	buf []byte,
) error {
	return gw.Transfer(
		ctx,
		ipc.MsgDevRead,
		dev,
		sector.Offset(),
		buf[:SectorSize],
		gw.Self,
	)
}

// WriteSector writes `buf` to the whole sector `sector` of `dev`.
func (gw *Gateway) WriteSector(
	ctx context.Context,
	dev Dev,
	sector Sector,
	buf []byte,
) error {
	return gw.Transfer(
		ctx,
		ipc.MsgDevWrite,
		dev,
		sector.Offset(),
		buf[:SectorSize],
		gw.Self,
	)
}

func (gw *Gateway) Open(ctx context.Context, dev Dev) error {
	if _, err := gw.request(ctx, dev, ipc.Message{
		Type:   ipc.MsgDevOpen,
		ProcNr: gw.Self,
	}); err != nil {
		return fmt.Errorf("opening device `%s`: %w", dev, err)
	}
	return nil
}

func (gw *Gateway) Close(ctx context.Context, dev Dev) error {
	if _, err := gw.request(ctx, dev, ipc.Message{
		Type:   ipc.MsgDevClose,
		ProcNr: gw.Self,
	}); err != nil {
		return fmt.Errorf("closing device `%s`: %w", dev, err)
	}
	return nil
}

// Geometry asks the driver for the placement of `dev` on its disk.
func (gw *Gateway) Geometry(ctx context.Context, dev Dev) (Geometry, error) {
	var geo Geometry
	if _, err := gw.request(ctx, dev, ipc.Message{
		Type:     ipc.MsgDevIoctl,
		Request:  ipc.IoctlGetGeometry,
		Geometry: &geo,
		ProcNr:   gw.Self,
	}); err != nil {
		return Geometry{}, fmt.Errorf(
			"fetching geometry of device `%s`: %w",
			dev,
			err,
		)
	}
	return geo, nil
}
