package types

import "fmt"

// Mode is the file type tag stored in an inode record.
type Mode uint32

const (
	ModeNone        Mode = 0
	ModeCharSpecial Mode = 0o020000
	ModeDirectory   Mode = 0o040000
	ModeRegular     Mode = 0o100000

	ModeTypeMask Mode = 0o170000
)

func (mode Mode) Type() Mode { return mode & ModeTypeMask }

func (mode Mode) IsDir() bool { return mode.Type() == ModeDirectory }

func (mode Mode) IsCharSpecial() bool { return mode.Type() == ModeCharSpecial }

func (mode Mode) IsRegular() bool { return mode.Type() == ModeRegular }

func (mode Mode) String() string {
	switch mode.Type() {
	case ModeNone:
		return "None"
	case ModeCharSpecial:
		return "CharSpecial"
	case ModeDirectory:
		return "Directory"
	case ModeRegular:
		return "Regular"
	default:
		return fmt.Sprintf("Mode(%#o)", uint32(mode))
	}
}

func (mode Mode) MarshalJSON() ([]byte, error) {
	s := mode.String()
	out := make([]byte, len(s)+2)
	out[0] = '"'
	out[len(out)-1] = '"'
	copy(out[1:], s)
	return out, nil
}
