// Package cfgstruct is the descriptor-driven configuration record drivers
// receive in Setup.
//
// A Schema lists typed fields; a Struct packs their values into one fixed
// little-endian byte block. Fields are addressed by position or by name and
// can be set from text, so a device line such as
//
//	baud=9600 parity=even name="left motor"
//
// configures a UART without the driver parsing anything itself.
package cfgstruct

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"ember/ember/errno"
)

// Kind is a field type.
type Kind uint8

const (
	Uint Kind = iota
	Int
	String
	Enum
	Bytes
)

func (k Kind) String() string {
	switch k {
	case Uint:
		return "uint"
	case Int:
		return "int"
	case String:
		return "string"
	case Enum:
		return "enum"
	case Bytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Field describes one value. Size is the width in bytes: 1, 2, 4 or 8 for
// Uint and Int, the fixed capacity for String and Bytes. Enum fields take one
// byte and name their values in Options.
type Field struct {
	Name    string
	Kind    Kind
	Size    int
	Options []string
	Default string
}

// Schema is an ordered field list.
type Schema []Field

// Struct holds values for a Schema.
type Struct struct {
	schema Schema
	offs   []int
	data   []byte
}

// New lays out a Struct for schema and applies field defaults.
func New(schema Schema) (*Struct, error) {
	schema = append(Schema(nil), schema...)
	s := &Struct{schema: schema, offs: make([]int, len(schema))}
	off := 0
	seen := make(map[string]bool, len(schema))
	for i, f := range schema {
		if f.Name == "" || seen[f.Name] {
			return nil, fmt.Errorf("cfgstruct: field %d %q: %w", i, f.Name, errno.ENAME)
		}
		seen[f.Name] = true
		switch f.Kind {
		case Uint, Int:
			if f.Size != 1 && f.Size != 2 && f.Size != 4 && f.Size != 8 {
				return nil, fmt.Errorf("cfgstruct: %s: width %d: %w", f.Name, f.Size, errno.EINVAL)
			}
		case Enum:
			if len(f.Options) == 0 || len(f.Options) > 256 {
				return nil, fmt.Errorf("cfgstruct: %s: %d options: %w", f.Name, len(f.Options), errno.EINVAL)
			}
			schema[i].Size = 1
		case String, Bytes:
			if f.Size <= 0 {
				return nil, fmt.Errorf("cfgstruct: %s: size %d: %w", f.Name, f.Size, errno.EINVAL)
			}
		default:
			return nil, fmt.Errorf("cfgstruct: %s: kind %d: %w", f.Name, f.Kind, errno.EINVAL)
		}
		s.offs[i] = off
		off += schema[i].Size
	}
	s.data = make([]byte, off)
	for i, f := range schema {
		if f.Default == "" {
			continue
		}
		if err := s.setText(i, f.Default); err != nil {
			return nil, fmt.Errorf("cfgstruct: %s default: %w", f.Name, err)
		}
	}
	return s, nil
}

// Schema returns the field list.
func (s *Struct) Schema() Schema { return s.schema }

// Raw returns the packed value block.
func (s *Struct) Raw() []byte { return s.data }

// Len reports the number of fields.
func (s *Struct) Len() int { return len(s.schema) }

// Index returns the position of the named field, or -1.
func (s *Struct) Index(name string) int {
	for i, f := range s.schema {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s *Struct) field(i int, k Kind) ([]byte, error) {
	if i < 0 || i >= len(s.schema) {
		return nil, errno.EINVAL
	}
	f := s.schema[i]
	if f.Kind != k {
		return nil, fmt.Errorf("cfgstruct: %s is %s, not %s: %w", f.Name, f.Kind, k, errno.EINVAL)
	}
	return s.data[s.offs[i] : s.offs[i]+f.Size], nil
}

// SetUint stores v truncated to the field's width.
func (s *Struct) SetUint(i int, v uint64) error {
	b, err := s.field(i, Uint)
	if err != nil {
		return err
	}
	putUint(b, v)
	return nil
}

func (s *Struct) GetUint(i int) (uint64, error) {
	b, err := s.field(i, Uint)
	if err != nil {
		return 0, err
	}
	return getUint(b), nil
}

// SetInt stores v truncated to the field's width.
func (s *Struct) SetInt(i int, v int64) error {
	b, err := s.field(i, Int)
	if err != nil {
		return err
	}
	putUint(b, uint64(v))
	return nil
}

// GetInt returns the field sign-extended from its width.
func (s *Struct) GetInt(i int) (int64, error) {
	b, err := s.field(i, Int)
	if err != nil {
		return 0, err
	}
	shift := 64 - 8*len(b)
	return int64(getUint(b)<<shift) >> shift, nil
}

func putUint(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	}
}

func getUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

// SetString stores v in the single-byte code page, truncated to the field
// and zero padded. Characters the code page lacks become the SUB byte.
func (s *Struct) SetString(i int, v string) error {
	b, err := s.field(i, String)
	if err != nil {
		return err
	}
	enc, err := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).String(v)
	if err != nil {
		return fmt.Errorf("cfgstruct: %s: %w", s.schema[i].Name, errno.EINVAL)
	}
	clear(b)
	copy(b, enc)
	return nil
}

func (s *Struct) GetString(i int) (string, error) {
	b, err := s.field(i, String)
	if err != nil {
		return "", err
	}
	if n := strings.IndexByte(string(b), 0); n >= 0 {
		b = b[:n]
	}
	dec, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(dec), nil
}

// SetEnum selects option v.
func (s *Struct) SetEnum(i int, v int) error {
	b, err := s.field(i, Enum)
	if err != nil {
		return err
	}
	if v < 0 || v >= len(s.schema[i].Options) {
		return fmt.Errorf("cfgstruct: %s: option %d: %w", s.schema[i].Name, v, errno.EINVAL)
	}
	b[0] = byte(v)
	return nil
}

func (s *Struct) GetEnum(i int) (int, error) {
	b, err := s.field(i, Enum)
	if err != nil {
		return 0, err
	}
	return int(b[0]), nil
}

// SetBytes stores v zero padded. It fails when v does not fit.
func (s *Struct) SetBytes(i int, v []byte) error {
	b, err := s.field(i, Bytes)
	if err != nil {
		return err
	}
	if len(v) > len(b) {
		return fmt.Errorf("cfgstruct: %s: %d bytes: %w", s.schema[i].Name, len(v), errno.ERESOURCE)
	}
	clear(b)
	copy(b, v)
	return nil
}

// GetBytes returns a copy of the field.
func (s *Struct) GetBytes(i int) ([]byte, error) {
	b, err := s.field(i, Bytes)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// Set assigns the named field from text: decimal or 0x-prefixed integers,
// option names for enums, hex for bytes.
func (s *Struct) Set(name, text string) error {
	i := s.Index(name)
	if i < 0 {
		return fmt.Errorf("cfgstruct: unknown field %q: %w", name, errno.EINVAL)
	}
	return s.setText(i, text)
}

func (s *Struct) setText(i int, text string) error {
	f := s.schema[i]
	switch f.Kind {
	case Uint:
		v, err := strconv.ParseUint(text, 0, 8*f.Size)
		if err != nil {
			return fmt.Errorf("cfgstruct: %s=%q: %w", f.Name, text, errno.EINVAL)
		}
		return s.SetUint(i, v)
	case Int:
		v, err := strconv.ParseInt(text, 0, 8*f.Size)
		if err != nil {
			return fmt.Errorf("cfgstruct: %s=%q: %w", f.Name, text, errno.EINVAL)
		}
		return s.SetInt(i, v)
	case String:
		return s.SetString(i, text)
	case Enum:
		for n, opt := range f.Options {
			if strings.EqualFold(opt, text) {
				return s.SetEnum(i, n)
			}
		}
		return fmt.Errorf("cfgstruct: %s=%q: not one of %s: %w", f.Name, text, strings.Join(f.Options, "|"), errno.EINVAL)
	default:
		v, err := hex.DecodeString(text)
		if err != nil {
			return fmt.Errorf("cfgstruct: %s=%q: %w", f.Name, text, errno.EINVAL)
		}
		return s.SetBytes(i, v)
	}
}

// Get renders the named field as text Set accepts.
func (s *Struct) Get(name string) (string, error) {
	i := s.Index(name)
	if i < 0 {
		return "", fmt.Errorf("cfgstruct: unknown field %q: %w", name, errno.EINVAL)
	}
	switch s.schema[i].Kind {
	case Uint:
		v, _ := s.GetUint(i)
		return strconv.FormatUint(v, 10), nil
	case Int:
		v, _ := s.GetInt(i)
		return strconv.FormatInt(v, 10), nil
	case String:
		return s.GetString(i)
	case Enum:
		v, _ := s.GetEnum(i)
		if v >= len(s.schema[i].Options) {
			return "", errno.EINVAL
		}
		return s.schema[i].Options[v], nil
	default:
		v, _ := s.GetBytes(i)
		return hex.EncodeToString(v), nil
	}
}

// Parse applies whitespace-separated key=value assignments. Values may be
// quoted. Parsing stops at the first bad assignment.
func (s *Struct) Parse(line string) error {
	words, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("cfgstruct: %w: %w", err, errno.EINVAL)
	}
	for _, w := range words {
		k, v, ok := strings.Cut(w, "=")
		if !ok {
			return fmt.Errorf("cfgstruct: %q is not key=value: %w", w, errno.EINVAL)
		}
		if err := s.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// String renders every field as key=value.
func (s *Struct) String() string {
	var sb strings.Builder
	for i, f := range s.schema {
		if i > 0 {
			sb.WriteByte(' ')
		}
		v, _ := s.Get(f.Name)
		sb.WriteString(f.Name)
		sb.WriteByte('=')
		if f.Kind == String {
			v = strconv.Quote(v)
		}
		sb.WriteString(v)
	}
	return sb.String()
}
