package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/weberc2/konixfs/pkg/client"
	"github.com/weberc2/konixfs/pkg/ipc"
	"github.com/weberc2/konixfs/pkg/layout"
	. "github.com/weberc2/konixfs/pkg/types"
)

const shellHelp = `commands:
  cat NAME         print a file
  write NAME TEXT  replace a file's contents with TEXT
  rm NAME          remove a file
  stat             print the FS task's tables
  exit             shut down
`

// shell is a user process on console 0. Every request it makes goes through
// the FS task, including its own console I/O.
type shell struct {
	fs      *client.Client
	console int
}

func (sh *shell) Run(ctx context.Context) error {
	console, err := sh.fs.Open(ctx, "/"+layout.ConsoleName(0), ipc.OpenRDWR)
	if err != nil {
		return err
	}
	sh.console = console

	if err := sh.print(ctx, "konixfs shell; type `help` for commands\n"); err != nil {
		return err
	}
	// input may hold several lines, or part of one
	var input string
	buf := make([]byte, 256)
	for {
		if err := sh.print(ctx, "$ "); err != nil {
			return err
		}
		n, err := sh.fs.Read(ctx, console, buf)
		if err != nil {
			return err
		}
		input += string(buf[:n])
		for {
			end := strings.IndexByte(input, '\n')
			if end < 0 {
				break
			}
			fields := strings.Fields(input[:end])
			input = input[end+1:]
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "exit" {
				return sh.fs.Close(ctx, console)
			}
			if err := sh.exec(ctx, fields); err != nil {
				var errno Errno
				if !errors.As(err, &errno) {
					return err
				}
				if err := sh.print(
					ctx,
					fmt.Sprintf("%s: %v\n", fields[0], errno),
				); err != nil {
					return err
				}
			}
		}
	}
}

func (sh *shell) print(ctx context.Context, s string) error {
	_, err := sh.fs.Write(ctx, sh.console, []byte(s))
	return err
}

func (sh *shell) exec(ctx context.Context, args []string) error {
	switch {
	case args[0] == "help":
		return sh.print(ctx, shellHelp)
	case args[0] == "cat" && len(args) == 2:
		return sh.cat(ctx, "/"+args[1])
	case args[0] == "write" && len(args) >= 3:
		return sh.write(ctx, "/"+args[1], strings.Join(args[2:], " ")+"\n")
	case args[0] == "rm" && len(args) == 2:
		return sh.fs.Unlink(ctx, "/"+args[1])
	case args[0] == "stat":
		stat, err := sh.fs.Stat(ctx)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(stat, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling stat: %w", err)
		}
		return sh.print(ctx, string(data)+"\n")
	default:
		return sh.print(ctx, shellHelp)
	}
}

func (sh *shell) cat(ctx context.Context, path string) error {
	fd, err := sh.fs.Open(ctx, path, ipc.OpenRead)
	if err != nil {
		return err
	}
	defer sh.fs.Close(ctx, fd)

	buf := make([]byte, SectorSize)
	for {
		n, err := sh.fs.Read(ctx, fd, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := sh.fs.Write(ctx, sh.console, buf[:n]); err != nil {
			return err
		}
	}
}

func (sh *shell) write(ctx context.Context, path, text string) error {
	fd, err := sh.fs.Open(ctx, path, ipc.OpenCreate|ipc.OpenWrite)
	if errors.Is(err, EEXIST) {
		fd, err = sh.fs.Open(ctx, path, ipc.OpenWrite)
	}
	if err != nil {
		return err
	}
	defer sh.fs.Close(ctx, fd)
	_, err = sh.fs.Write(ctx, fd, []byte(text))
	return err
}
