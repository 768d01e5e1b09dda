package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/konixfs/pkg/driver/hd"
	"github.com/weberc2/konixfs/pkg/gateway"
	"github.com/weberc2/konixfs/pkg/ipc"
	. "github.com/weberc2/konixfs/pkg/types"
)

const (
	hdNr         ProcNr = 1
	ttyNr        ProcNr = 2
	fsNr         ProcNr = 3
	introspectNr ProcNr = 5
	toolNr       ProcNr = 6
	shellNr      ProcNr = 7

	maxTasks = 8
)

func openImage(path string, create bool, sectors uint32) (*os.File, uint32, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	image, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("opening disk image: %w", err)
	}
	if create {
		if err := image.Truncate(int64(Byte(sectors) * SectorSize)); err != nil {
			image.Close()
			return nil, 0, fmt.Errorf("sizing disk image: %w", err)
		}
		return image, sectors, nil
	}
	info, err := image.Stat()
	if err != nil {
		image.Close()
		return nil, 0, fmt.Errorf("opening disk image: %w", err)
	}
	return image, uint32(Byte(info.Size()) / SectorSize), nil
}

func diskDriver(
	kernel *ipc.Kernel,
	image *os.File,
	sectors uint32,
	log logrus.FieldLogger,
) *hd.Driver {
	return &hd.Driver{
		IPC:        kernel,
		Self:       hdNr,
		Disk:       image,
		Partitions: hd.WholeDisk(sectors, RootDev.Minor()),
		Log:        log.WithField("task", "hd"),
	}
}

// withDisk serves `image` with the disk driver alone and hands `f` a gateway
// to it, for tools that work on a volume without booting the FS task.
func withDisk(
	ctx context.Context,
	image *os.File,
	sectors uint32,
	log logrus.FieldLogger,
	f func(context.Context, *gateway.Gateway) error,
) error {
	kernel, err := ipc.NewKernel(maxTasks, log)
	if err != nil {
		return err
	}
	defer kernel.Shutdown()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := kernel.Spawn(ctx, diskDriver(kernel, image, sectors, log)); err != nil {
		return err
	}
	if err := kernel.Register(toolNr); err != nil {
		return err
	}
	gw := gateway.Gateway{
		IPC:     kernel,
		Self:    toolNr,
		Drivers: gateway.DriverMap{MajorHD: hdNr, MajorTTY: gateway.NoDriver},
		Log:     log,
	}
	if err := gw.Open(ctx, RootDev); err != nil {
		return err
	}
	if err := f(ctx, &gw); err != nil {
		return err
	}
	return gw.Close(ctx, RootDev)
}
