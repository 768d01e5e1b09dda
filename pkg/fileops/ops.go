// Package fileops implements the file operations behind the FS task's
// OPEN, CLOSE, READ, WRITE and UNLINK requests on a volume with a single,
// flat root directory. Every file is one contiguous extent allocated at
// creation.
package fileops

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/konixfs/pkg/alloc"
	"github.com/weberc2/konixfs/pkg/filedesc"
	"github.com/weberc2/konixfs/pkg/inode"
	"github.com/weberc2/konixfs/pkg/ipc"
	. "github.com/weberc2/konixfs/pkg/types"
)

// Device is the block and character I/O the operations need.
type Device interface {
	ReadSector(ctx context.Context, dev Dev, sector Sector, buf []byte) error
	WriteSector(ctx context.Context, dev Dev, sector Sector, buf []byte) error
	Call(ctx context.Context, dev Dev, msg ipc.Message) (ipc.Message, error)
}

type Superblocks interface {
	Lookup(dev Dev) (*Superblock, error)
}

type Ops struct {
	Dev    Dev
	Device Device
	Supers Superblocks
	Inodes *inode.Cache
	Descs  *filedesc.Table
	Procs  filedesc.FileTables
	Root   inode.Handle
	Log    logrus.FieldLogger

	// FileSectors is the extent length given to every new file.
	FileSectors uint32

	imap *alloc.FlushableBitmap
	smap *alloc.FlushableBitmap
}

// Open opens `path` for `caller` and returns the new file descriptor. With
// `ipc.OpenCreate` the file must not exist yet and is created; without it,
// it must exist.
func (ops *Ops) Open(
	ctx context.Context,
	caller ProcNr,
	path string,
	flags int,
) (int, error) {
	name, err := rootName(path)
	if err != nil {
		return -1, fmt.Errorf("opening `%s`: %w", path, err)
	}
	files, err := ops.Procs.Files(caller)
	if err != nil {
		return -1, fmt.Errorf("opening `%s`: %w", path, err)
	}
	fd := -1
	for i, h := range files {
		if h == filedesc.NilHandle {
			fd = i
			break
		}
	}
	if fd < 0 {
		return -1, fmt.Errorf("opening `%s`: %w", path, EMFILE)
	}

	var h inode.Handle
	ino, _, err := ops.lookup(ctx, name)
	switch {
	case err == nil && flags&ipc.OpenCreate != 0:
		return -1, fmt.Errorf("creating `%s`: %w", path, EEXIST)
	case err == nil:
		if h, err = ops.Inodes.Acquire(ctx, ops.Dev, ino); err != nil {
			return -1, fmt.Errorf("opening `%s`: %w", path, err)
		}
	case isErrno(err, ENOENT) && flags&ipc.OpenCreate != 0:
		if h, err = ops.create(ctx, name); err != nil {
			return -1, fmt.Errorf("creating `%s`: %w", path, err)
		}
	default:
		return -1, fmt.Errorf("opening `%s`: %w", path, err)
	}

	desc, err := ops.Descs.Alloc(h, flags)
	if err != nil {
		if releaseErr := ops.Inodes.Release(h); releaseErr != nil {
			return -1, releaseErr
		}
		return -1, fmt.Errorf("opening `%s`: %w", path, err)
	}
	files[fd] = desc
	ops.Log.WithFields(logrus.Fields{
		"proc": caller,
		"path": path,
		"fd":   fd,
		"ino":  ops.Inodes.Inode(h).Num,
	}).Debug("opened file")
	return fd, nil
}

// Close releases `caller`'s descriptor `fd`.
func (ops *Ops) Close(ctx context.Context, caller ProcNr, fd int) error {
	files, h, err := ops.descriptor(caller, fd)
	if err != nil {
		return fmt.Errorf("closing fd `%d`: %w", fd, err)
	}
	ino := ops.Descs.Get(h).Inode
	if err := ops.Inodes.Release(ino); err != nil {
		return fmt.Errorf("closing fd `%d`: %w", fd, err)
	}
	if _, err := ops.Descs.Put(h); err != nil {
		return fmt.Errorf("closing fd `%d`: %w", fd, err)
	}
	files[fd] = filedesc.NilHandle
	return nil
}

func (ops *Ops) descriptor(
	caller ProcNr,
	fd int,
) (*filedesc.Files, filedesc.Handle, error) {
	files, err := ops.Procs.Files(caller)
	if err != nil {
		return nil, filedesc.NilHandle, err
	}
	if fd < 0 || fd >= len(files) || files[fd] == filedesc.NilHandle {
		return nil, filedesc.NilHandle, EBADF
	}
	h := files[fd]
	if ops.Descs.Get(h) == nil {
		return nil, filedesc.NilHandle, Fatalf(
			"fd `%d` of `%d` names free descriptor `%d`",
			fd,
			caller,
			h,
		)
	}
	return files, h, nil
}

// rootName returns the directory-entry name for `path`. Only entries of the
// root directory can be named; an empty name stands for the root itself.
func rootName(path string) (string, error) {
	name := strings.TrimPrefix(path, "/")
	if strings.Contains(name, "/") {
		return "", ENOENT
	}
	if len(name) > MaxFilename {
		return "", ENAMETOOLONG
	}
	return name, nil
}
