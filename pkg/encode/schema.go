package encode

import (
	"fmt"

	. "github.com/weberc2/konixfs/pkg/types"
)

type Kind uint8

const (
	KindUint Kind = iota

	// KindBytes is a fixed-length, null-padded byte string.
	KindBytes
)

type Field struct {
	Name  string
	Kind  Kind
	Width Byte
}

func Uint8(name string) Field  { return Field{Name: name, Kind: KindUint, Width: 1} }
func Uint16(name string) Field { return Field{Name: name, Kind: KindUint, Width: 2} }
func Uint32(name string) Field { return Field{Name: name, Kind: KindUint, Width: 4} }

func Bytes(name string, width Byte) Field {
	return Field{Name: name, Kind: KindBytes, Width: width}
}

// Schema is an ordered list of fixed-width fields packed without padding,
// followed by zero fill up to `Size`. All on-disk offsets are derived from
// a schema.
type Schema struct {
	Name    string
	Version uint32
	Size    Byte
	Fields  []Field
	offsets map[string]Byte
}

// NewSchema builds a schema. It panics if a field name repeats or the fields
// don't fit in `size` bytes since both are programming errors.
func NewSchema(name string, version uint32, size Byte, fields ...Field) *Schema {
	schema := Schema{
		Name:    name,
		Version: version,
		Size:    size,
		Fields:  fields,
		offsets: make(map[string]Byte, len(fields)),
	}
	var offset Byte
	for _, field := range fields {
		if field.Kind == KindUint && field.Width != 1 &&
			field.Width != 2 && field.Width != 4 {
			panic(fmt.Sprintf(
				"schema `%s`: field `%s`: unsupported width `%d`",
				name,
				field.Name,
				field.Width,
			))
		}
		if _, exists := schema.offsets[field.Name]; exists {
			panic(fmt.Sprintf(
				"schema `%s`: duplicate field `%s`",
				name,
				field.Name,
			))
		}
		schema.offsets[field.Name] = offset
		offset += field.Width
	}
	if offset > size {
		panic(fmt.Sprintf(
			"schema `%s`: fields need `%d` bytes; record size is `%d`",
			name,
			offset,
			size,
		))
	}
	return &schema
}

// Offset returns the byte offset of the named field within a record.
func (schema *Schema) Offset(name string) Byte {
	offset, ok := schema.offsets[name]
	if !ok {
		panic(fmt.Sprintf(
			"schema `%s`: no such field `%s`",
			schema.Name,
			name,
		))
	}
	return offset
}

func (schema *Schema) field(name string) Field {
	for _, field := range schema.Fields {
		if field.Name == name {
			return field
		}
	}
	panic(fmt.Sprintf("schema `%s`: no such field `%s`", schema.Name, name))
}

// PutUint stores `u` in the named integer field of the record at `p`.
func (schema *Schema) PutUint(p []byte, name string, u uint32) {
	start := schema.Offset(name)
	switch schema.field(name).Width {
	case 1:
		putU8(p, start, uint8(u))
	case 2:
		putU16(p, start, uint16(u))
	default:
		putU32(p, start, u)
	}
}

func (schema *Schema) GetUint(p []byte, name string) uint32 {
	start := schema.Offset(name)
	switch schema.field(name).Width {
	case 1:
		return uint32(getU8(p, start))
	case 2:
		return uint32(getU16(p, start))
	default:
		return getU32(p, start)
	}
}

// PutBytes stores `s` in the named byte-string field, truncating it to the
// field width and null-padding the remainder.
func (schema *Schema) PutBytes(p []byte, name string, s string) {
	start := schema.Offset(name)
	width := schema.field(name).Width
	dst := p[start : start+width]
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// GetBytes returns the named byte-string field up to its first null byte.
func (schema *Schema) GetBytes(p []byte, name string) string {
	start := schema.Offset(name)
	field := p[start : start+schema.field(name).Width]
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}

// Record returns the `i`th record of this schema within `p`.
func (schema *Schema) Record(p []byte, i int) []byte {
	start := Byte(i) * schema.Size
	return p[start : start+schema.Size]
}
