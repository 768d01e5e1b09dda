package ipc

import (
	"fmt"

	. "github.com/weberc2/konixfs/pkg/types"
)

type MsgType int

const (
	MsgNone MsgType = iota

	// client → FS
	MsgOpen
	MsgClose
	MsgRead
	MsgWrite
	MsgUnlink
	MsgFork
	MsgExit
	MsgFSStat

	// FS → client
	MsgSyscallRet

	// driver → FS
	MsgSuspendProc
	MsgResumeProc

	// FS → driver
	MsgDevOpen
	MsgDevClose
	MsgDevRead
	MsgDevWrite
	MsgDevIoctl

	// keyboard → tty
	MsgKeyboard
)

var msgTypeNames = map[MsgType]string{
	MsgNone:        "NONE",
	MsgOpen:        "OPEN",
	MsgClose:       "CLOSE",
	MsgRead:        "READ",
	MsgWrite:       "WRITE",
	MsgUnlink:      "UNLINK",
	MsgFork:        "FORK",
	MsgExit:        "EXIT",
	MsgFSStat:      "FS_STAT",
	MsgSyscallRet:  "SYSCALL_RET",
	MsgSuspendProc: "SUSPEND_PROC",
	MsgResumeProc:  "RESUME_PROC",
	MsgDevOpen:     "DEV_OPEN",
	MsgDevClose:    "DEV_CLOSE",
	MsgDevRead:     "DEV_READ",
	MsgDevWrite:    "DEV_WRITE",
	MsgDevIoctl:    "DEV_IOCTL",
	MsgKeyboard:    "KEYBOARD",
}

func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MsgType(%d)", int(t))
}

// IsReply reports whether `t` answers a request.
func (t MsgType) IsReply() bool {
	return t == MsgSyscallRet || t == MsgSuspendProc
}

type IoctlRequest int

const (
	IoctlNone IoctlRequest = iota
	IoctlGetGeometry
)

// Open flags carried in `Message.Flags`.
const (
	OpenRead   = 0x0
	OpenWrite  = 0x1
	OpenRDWR   = 0x2
	OpenCreate = 0x40
)

// Message is the unit of rendezvous IPC. `Source` is filled in by the kernel;
// the other fields are interpreted according to `Type`. `Buf` is shared with
// the receiver the same way a buffer address would be in a flat address
// space: drivers copy directly into or out of it.
type Message struct {
	Source ProcNr
	Type   MsgType

	Device   uint32
	Position Byte
	Buf      []byte
	Count    int
	ProcNr   ProcNr
	Request  IoctlRequest
	Geometry *Geometry

	FD     int
	RetVal int
	Path   string
	Flags  int
	PID    ProcNr

	// Payload carries structured output that has no dedicated field, such
	// as the FS_STAT snapshot.
	Payload interface{}
}
