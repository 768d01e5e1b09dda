package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/weberc2/konixfs/pkg/ipc"
	. "github.com/weberc2/konixfs/pkg/types"
)

type scriptedDriver struct {
	statuses []int
	calls    []ipc.Message
	block    bool
}

func (d *scriptedDriver) SendRecv(
	ctx context.Context,
	self ProcNr,
	to ProcNr,
	msg ipc.Message,
) (ipc.Message, error) {
	d.calls = append(d.calls, msg)
	if d.block {
		<-ctx.Done()
		return ipc.Message{}, ctx.Err()
	}
	status := 0
	if len(d.calls) <= len(d.statuses) {
		status = d.statuses[len(d.calls)-1]
	}
	if msg.Geometry != nil {
		*msg.Geometry = Geometry{Base: 63, Size: 20000}
	}
	return ipc.Message{Source: to, RetVal: status}, nil
}

func newGateway(driver *scriptedDriver) *Gateway {
	log, _ := test.NewNullLogger()
	return &Gateway{
		IPC:     driver,
		Self:    4,
		Drivers: DriverMap{3: 2, 4: NoDriver},
		Retries: 2,
		Log:     log,
	}
}

func TestGateway_ReadSector(t *testing.T) {
	driver := &scriptedDriver{}
	gw := newGateway(driver)
	buf := make([]byte, SectorSize)
	if err := gw.ReadSector(
		context.Background(),
		MakeDev(3, 0x21),
		7,
		buf,
	); err != nil {
		t.Fatalf("ReadSector(): unexpected err: %v", err)
	}
	if len(driver.calls) != 1 {
		t.Fatalf("wanted `1` call; found `%d`", len(driver.calls))
	}
	call := driver.calls[0]
	if call.Type != ipc.MsgDevRead {
		t.Fatalf("wanted `DEV_READ`; found `%s`", call.Type)
	}
	if call.Device != 0x21 {
		t.Fatalf("wanted minor `0x21`; found `%#x`", call.Device)
	}
	if call.Position != 7*SectorSize {
		t.Fatalf("wanted position `%d`; found `%d`", 7*SectorSize, call.Position)
	}
	if call.Count != int(SectorSize) || call.ProcNr != 4 {
		t.Fatalf(
			"wanted count `%d` for `4`; found `%d` for `%d`",
			SectorSize,
			call.Count,
			call.ProcNr,
		)
	}
}

func TestGateway_RetriesThenSucceeds(t *testing.T) {
	driver := &scriptedDriver{statuses: []int{-int(EIO), -int(EIO), 0}}
	gw := newGateway(driver)
	if err := gw.WriteSector(
		context.Background(),
		MakeDev(3, 0),
		1,
		make([]byte, SectorSize),
	); err != nil {
		t.Fatalf("WriteSector(): unexpected err: %v", err)
	}
	if len(driver.calls) != 3 {
		t.Fatalf("wanted `3` calls; found `%d`", len(driver.calls))
	}
}

func TestGateway_RetriesExhaustedIsFatal(t *testing.T) {
	driver := &scriptedDriver{statuses: []int{-1, -1, -1, -1}}
	gw := newGateway(driver)
	err := gw.WriteSector(
		context.Background(),
		MakeDev(3, 0),
		1,
		make([]byte, SectorSize),
	)
	if !IsFatal(err) || !errors.Is(err, DriverErr) {
		t.Fatalf("wanted fatal `%v`; found `%v`", DriverErr, err)
	}
	if len(driver.calls) != 3 {
		t.Fatalf("wanted `3` calls; found `%d`", len(driver.calls))
	}
}

func TestGateway_NoDriverIsFatal(t *testing.T) {
	for _, dev := range []Dev{MakeDev(4, 1), MakeDev(9, 0)} {
		driver := &scriptedDriver{}
		err := newGateway(driver).Open(context.Background(), dev)
		if !IsFatal(err) {
			t.Fatalf("Open(%s): wanted fatal error; found `%v`", dev, err)
		}
		if len(driver.calls) != 0 {
			t.Fatalf("Open(%s): wanted no calls; found `%d`", dev, len(driver.calls))
		}
	}
}

func TestGateway_TimeoutIsFatal(t *testing.T) {
	gw := newGateway(&scriptedDriver{block: true})
	gw.Timeout = 10 * time.Millisecond
	if err := gw.Open(context.Background(), MakeDev(3, 0)); !IsFatal(err) {
		t.Fatalf("wanted fatal error; found `%v`", err)
	}
}

func TestGateway_CancellationIsNotFatal(t *testing.T) {
	gw := newGateway(&scriptedDriver{block: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gw.Open(ctx, MakeDev(3, 0))
	if IsFatal(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("wanted `%v`; found `%v`", context.Canceled, err)
	}
}

func TestGateway_Geometry(t *testing.T) {
	geo, err := newGateway(&scriptedDriver{}).Geometry(
		context.Background(),
		MakeDev(3, 0x21),
	)
	if err != nil {
		t.Fatalf("Geometry(): unexpected err: %v", err)
	}
	if wanted := (Geometry{Base: 63, Size: 20000}); geo != wanted {
		t.Fatalf("wanted `%+v`; found `%+v`", wanted, geo)
	}
}
