package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	pz "github.com/weberc2/httpeasy"
	"golang.org/x/sync/errgroup"

	"github.com/weberc2/konixfs/pkg/client"
	"github.com/weberc2/konixfs/pkg/config"
	"github.com/weberc2/konixfs/pkg/driver/tty"
	"github.com/weberc2/konixfs/pkg/fsserver"
	"github.com/weberc2/konixfs/pkg/gateway"
	"github.com/weberc2/konixfs/pkg/introspect"
	"github.com/weberc2/konixfs/pkg/ipc"
	"github.com/weberc2/konixfs/pkg/proc"
	. "github.com/weberc2/konixfs/pkg/types"
)

func boot(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	image, sectors, err := openImage(cfg.DiskImage, false, 0)
	if err != nil {
		return err
	}
	defer image.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	kernel, err := ipc.NewKernel(maxTasks, log)
	if err != nil {
		return err
	}
	defer kernel.Shutdown()

	terminal, err := tty.New(
		kernel,
		ttyNr,
		fsNr,
		consoleWriters(cfg.Consoles, log),
		tty.DefaultInputCap,
		log.WithField("task", "tty"),
	)
	if err != nil {
		return err
	}
	procs := proc.NewTable(cfg.Procs)
	if p, err := procs.Proc(shellNr); err == nil {
		p.Name = "sh"
	}
	server := fsserver.New(fsserver.Options{
		Self:       fsNr,
		RootDev:    RootDev,
		Format:     cfg.Format,
		Layout:     cfg.Layout(),
		SuperSlots: cfg.SuperSlots,
		InodeSlots: cfg.InodeSlots,
		DescSlots:  cfg.DescSlots,
		IPC:        kernel,
		Gateway: &gateway.Gateway{
			IPC:  kernel,
			Self: fsNr,
			Drivers: gateway.DriverMap{
				MajorHD:  hdNr,
				MajorTTY: ttyNr,
			},
			Retries: cfg.DriverRetries,
			Timeout: cfg.DriverTimeout,
			Log:     log.WithField("task", "fs"),
		},
		Procs: procs,
		Log:   log,
	})

	for _, task := range []ipc.Task{
		diskDriver(kernel, image, sectors, log),
		terminal,
		server,
	} {
		if err := kernel.Spawn(ctx, task); err != nil {
			return err
		}
	}
	for _, nr := range []ProcNr{shellNr, introspectNr} {
		if err := kernel.Register(nr); err != nil {
			return err
		}
	}

	go pumpKeyboard(ctx, terminal, os.Stdin, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return kernel.Wait(ctx) })
	g.Go(func() error {
		defer cancel()
		sh := shell{
			fs: &client.Client{IPC: kernel, Self: shellNr, FS: fsNr},
		}
		return sh.Run(ctx)
	})
	if cfg.IntrospectAddr != "" {
		serveIntrospection(ctx, g, cfg, kernel, log)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shut down")
	return nil
}

// consoleWriters sends console 0 to stdout and the others to the log.
func consoleWriters(consoles int, log logrus.FieldLogger) []io.Writer {
	outs := make([]io.Writer, consoles)
	outs[0] = os.Stdout
	for i := 1; i < consoles; i++ {
		outs[i] = log.WithField("console", i).Writer()
	}
	return outs
}

// pumpKeyboard feeds stdin to console 0 a line at a time, and sends `exit`
// at end of input.
func pumpKeyboard(
	ctx context.Context,
	terminal *tty.Driver,
	in io.Reader,
	log logrus.FieldLogger,
) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := terminal.Input(ctx, 0, append(scanner.Bytes(), '\n')); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Warn("reading keyboard input")
	}
	if err := terminal.Input(ctx, 0, []byte("exit\n")); err != nil {
		log.WithError(err).Debug("sending exit")
	}
}

func serveIntrospection(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	kernel *ipc.Kernel,
	log logrus.FieldLogger,
) {
	view := introspect.Server{
		IPC:     kernel,
		Self:    introspectNr,
		FS:      fsNr,
		Timeout: introspect.DefaultTimeout,
	}
	srv := http.Server{
		Addr:    cfg.IntrospectAddr,
		Handler: pz.Register(pz.JSONLog(os.Stderr), view.Routes()...),
	}
	g.Go(func() error {
		log.WithField("addr", cfg.IntrospectAddr).Info("serving introspection")
		if err := srv.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving introspection: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown(context.Background())
	})
}
