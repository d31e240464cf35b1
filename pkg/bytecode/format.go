// Package bytecode provides serialization and deserialization for .sgc
// bytecode files.
//
// File Format Specification:
//
// The .sgc file format is a binary format for storing compiled JavaScript
// bytecode. It allows pre-compilation of source files to bytecode for
// faster loading and execution. The format is designed to be:
//   - Compact: Efficient binary encoding
//   - Versioned: Support for format evolution
//   - Complete: Stores all information needed for execution, including
//     nested function and class templates
//
// Binary Format Layout:
//
//   [Header]
//     Magic Number (4 bytes): "SMOG" (0x534D4F47)
//     Version (4 bytes): Format version number (currently 3)
//     Flags (4 bytes): Reserved for future use
//
//   [Constants Section]
//     Count (4 bytes): Number of constants
//     For each constant:
//       Type (1 byte): Constant type identifier
//       Data (variable): Type-specific encoding
//
//   [Instructions Section]
//     Count (4 bytes): Number of instructions
//     For each instruction:
//       Opcode (1 byte): Operation code
//       Operand (4 bytes): Instruction operand
//
//   [Frame Metadata]
//     NumLocals (4 bytes)
//     UpvalueCount (4 bytes)
//
// Constant Types:
//   0x01 = Integer (int64, 8 bytes)
//   0x02 = Float (float64, 8 bytes)
//   0x03 = String (4-byte length + UTF-8 bytes)
//   0x04 = Boolean (1 byte: 0=false, 1=true)
//   0x05 = Nil (0 bytes)
//   0x06 = FunctionTemplate (nested structure: name, param count, flags, code)
//   0x07 = ClassTemplate (nested structure: name, methods, fields)
//   0x08 = Bytecode (recursive structure, for function/initializer bodies)
//   0x09 = BigInt (sign byte + 4-byte byte length + big-endian magnitude bytes)
//
// Example:
//
//   Source: let greeting = 'Hello'; greeting.length;
//
//   .sgc file:
//     Header: SMOG 0x00000003 0x00000000
//     Constants: count=2
//       [0] String: "Hello"
//       [1] String: "length"
//     Instructions: count=5
//       PUSH 0
//       STORE_LOCAL 0
//       LOAD_LOCAL 0
//       GET_PROP 1
//       RETURN
//
// Design Rationale:
//
// Binary Format:
//   - Faster to parse than text formats
//   - Smaller file size
//   - Direct mapping to in-memory structures
//
// Magic Number:
//   - Identifies file type
//   - Prevents accidental execution of wrong files
//
// Version Number:
//   - Allows format evolution
//   - Future versions can add features while maintaining compatibility
//
// This format is inspired by:
//   - Java .class files
//   - Python .pyc files
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
)

// File format constants
const (
	// MagicNumber is the file signature for .sgc files: "SMOG"
	MagicNumber uint32 = 0x534D4F47

	// FormatVersion is the current bytecode format version. Bumped to 3
	// when FunctionTemplate gained a Flags byte (constructor/generator/
	// async) so the executor knows a function's calling convention
	// without inspecting its body.
	FormatVersion uint32 = 3

	// Reserved flags (currently unused, set to 0)
	formatFlags uint32 = 0
)

// Constant type identifiers for serialization
const (
	constTypeInteger  byte = 0x01
	constTypeFloat    byte = 0x02
	constTypeString   byte = 0x03
	constTypeBoolean  byte = 0x04
	constTypeNil      byte = 0x05
	constTypeFunction byte = 0x06
	constTypeClass    byte = 0x07
	constTypeBytecode byte = 0x08
	constTypeBigInt   byte = 0x09
)

// FunctionTemplate is the constant-pool encoding of a compiled function
// literal: everything OpNewFunction needs to instantiate a closure except
// the enclosing frame's captured upvalues, which are supplied at runtime.
type FunctionTemplate struct {
	Name       string
	ParamCount int
	Code       *Bytecode
	Flags      FunctionFlags
}

// FunctionFlags records the declaration-site bits the executor needs to
// decide a BytecodeFunction's calling convention: constructor dispatch
// (OpConstruct's generic path vs. a class's own Construct), generator
// (returns an iterator instead of running the body), async (returns a
// promise and suspends at OpAwait).
type FunctionFlags byte

const (
	FlagConstructor FunctionFlags = 1 << iota
	FlagGenerator
	FlagAsync
)

func (f FunctionFlags) IsConstructor() bool { return f&FlagConstructor != 0 }
func (f FunctionFlags) IsGenerator() bool   { return f&FlagGenerator != 0 }
func (f FunctionFlags) IsAsync() bool       { return f&FlagAsync != 0 }

// MethodKind mirrors pkg/function.MethodKind without importing pkg/function
// (which would create an import cycle, since pkg/function's BytecodeFunction
// is built from exactly this package's Bytecode).
type MethodKind byte

const (
	MethodNormal MethodKind = iota
	MethodGetter
	MethodSetter
)

// MethodTemplate is one compiled member of a class body.
type MethodTemplate struct {
	Key        string
	Kind       MethodKind
	Static     bool
	Enumerable bool
	Fn         *FunctionTemplate
}

// FieldTemplate is one compiled field of a class body. Instance field
// initializers run as a zero-argument function template over the
// partially-constructed instance (`this`); static fields' Fn is invoked
// once at class-definition time with no `this`.
type FieldTemplate struct {
	Key    string
	Static bool
	Fn     *FunctionTemplate
}

// ClassTemplate is the constant-pool encoding of a compiled class literal.
// The superclass, if any, is not part of this template: OpNewClass pops it
// from the operand stack (Undefined if there is none), since the
// superclass is itself just another runtime value at class-definition
// time, not a constant.
type ClassTemplate struct {
	Name    string
	Methods []MethodTemplate
	Fields  []FieldTemplate
}

// Encode serializes bytecode to binary format and writes it to w.
//
// This function takes compiled bytecode and writes it to an io.Writer
// (typically a file) in the .sgc binary format. The output can be later
// loaded with Decode() and executed without re-parsing or re-compiling.
//
// Process:
//   1. Write header (magic number, version, flags)
//   2. Write constants section
//   3. Write instructions section
//   4. Write frame metadata (locals/upvalue counts)
//
// Returns an error if writing fails or if the bytecode contains
// unsupported types.
func Encode(bc *Bytecode, w io.Writer) error {
	if err := writeHeader(w); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writeConstants(w, bc.Constants); err != nil {
		return fmt.Errorf("failed to write constants: %w", err)
	}
	if err := writeInstructions(w, bc.Instructions); err != nil {
		return fmt.Errorf("failed to write instructions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, int32(bc.NumLocals)); err != nil {
		return fmt.Errorf("failed to write local count: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, int32(bc.UpvalueCount)); err != nil {
		return fmt.Errorf("failed to write upvalue count: %w", err)
	}
	return nil
}

// Decode deserializes bytecode from binary format.
//
// This function reads a .sgc file and reconstructs the bytecode structure
// in memory, ready for execution by the VM. It's the inverse of Encode().
//
// Returns an error if:
//   - Magic number is incorrect (not a .sgc file)
//   - Version is unsupported
//   - File is corrupted
//   - Unexpected end of file
func Decode(r io.Reader) (*Bytecode, error) {
	version, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported bytecode version: %d (expected %d)", version, FormatVersion)
	}

	constants, err := readConstants(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read constants: %w", err)
	}
	instructions, err := readInstructions(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read instructions: %w", err)
	}

	var numLocals, upvalueCount int32
	if err := binary.Read(r, binary.LittleEndian, &numLocals); err != nil {
		return nil, fmt.Errorf("failed to read local count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &upvalueCount); err != nil {
		return nil, fmt.Errorf("failed to read upvalue count: %w", err)
	}

	return &Bytecode{
		Instructions: instructions,
		Constants:    constants,
		NumLocals:    int(numLocals),
		UpvalueCount: int(upvalueCount),
	}, nil
}

func writeHeader(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, MagicNumber); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, FormatVersion); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, formatFlags)
}

func readHeader(r io.Reader) (uint32, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return 0, err
	}
	if magic != MagicNumber {
		return 0, fmt.Errorf("invalid magic number: 0x%08X (expected 0x%08X)", magic, MagicNumber)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	var flags uint32
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return 0, err
	}
	return version, nil
}

func writeConstants(w io.Writer, constants []any) error {
	count := uint32(len(constants))
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return err
	}
	for i, c := range constants {
		if err := writeConstant(w, c); err != nil {
			return fmt.Errorf("failed to write constant %d: %w", i, err)
		}
	}
	return nil
}

func writeConstant(w io.Writer, c any) error {
	switch v := c.(type) {
	case int64:
		if err := binary.Write(w, binary.LittleEndian, constTypeInteger); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v)

	case float64:
		if err := binary.Write(w, binary.LittleEndian, constTypeFloat); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v)

	case string:
		if err := binary.Write(w, binary.LittleEndian, constTypeString); err != nil {
			return err
		}
		return writeString(w, v)

	case bool:
		if err := binary.Write(w, binary.LittleEndian, constTypeBoolean); err != nil {
			return err
		}
		var b byte
		if v {
			b = 1
		}
		return binary.Write(w, binary.LittleEndian, b)

	case nil:
		return binary.Write(w, binary.LittleEndian, constTypeNil)

	case *big.Int:
		if err := binary.Write(w, binary.LittleEndian, constTypeBigInt); err != nil {
			return err
		}
		return writeBigInt(w, v)

	case *FunctionTemplate:
		if err := binary.Write(w, binary.LittleEndian, constTypeFunction); err != nil {
			return err
		}
		return writeFunctionTemplate(w, v)

	case *ClassTemplate:
		if err := binary.Write(w, binary.LittleEndian, constTypeClass); err != nil {
			return err
		}
		return writeClassTemplate(w, v)

	case *Bytecode:
		if err := binary.Write(w, binary.LittleEndian, constTypeBytecode); err != nil {
			return err
		}
		return Encode(v, w)

	default:
		return fmt.Errorf("unsupported constant type: %T", c)
	}
}

func readConstants(r io.Reader) ([]any, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	constants := make([]any, count)
	for i := uint32(0); i < count; i++ {
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read constant %d: %w", i, err)
		}
		constants[i] = c
	}
	return constants, nil
}

func readConstant(r io.Reader) (any, error) {
	var constType byte
	if err := binary.Read(r, binary.LittleEndian, &constType); err != nil {
		return nil, err
	}

	switch constType {
	case constTypeInteger:
		var v int64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return v, nil

	case constTypeFloat:
		var v float64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return v, nil

	case constTypeString:
		return readString(r)

	case constTypeBoolean:
		var b byte
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return nil, err
		}
		return b != 0, nil

	case constTypeNil:
		return nil, nil

	case constTypeBigInt:
		return readBigInt(r)

	case constTypeFunction:
		return readFunctionTemplate(r)

	case constTypeClass:
		return readClassTemplate(r)

	case constTypeBytecode:
		return Decode(r)

	default:
		return nil, fmt.Errorf("unknown constant type: 0x%02X", constType)
	}
}

func writeInstructions(w io.Writer, instructions []Instruction) error {
	count := uint32(len(instructions))
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return err
	}
	for i, instr := range instructions {
		if err := binary.Write(w, binary.LittleEndian, byte(instr.Op)); err != nil {
			return fmt.Errorf("failed to write instruction %d opcode: %w", i, err)
		}
		if err := binary.Write(w, binary.LittleEndian, int32(instr.Operand)); err != nil {
			return fmt.Errorf("failed to write instruction %d operand: %w", i, err)
		}
	}
	return nil
}

func readInstructions(r io.Reader) ([]Instruction, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	instructions := make([]Instruction, count)
	for i := uint32(0); i < count; i++ {
		var op byte
		if err := binary.Read(r, binary.LittleEndian, &op); err != nil {
			return nil, fmt.Errorf("failed to read instruction %d opcode: %w", i, err)
		}
		var operand int32
		if err := binary.Read(r, binary.LittleEndian, &operand); err != nil {
			return nil, fmt.Errorf("failed to read instruction %d operand: %w", i, err)
		}
		instructions[i] = Instruction{Op: Opcode(op), Operand: int(operand)}
	}
	return instructions, nil
}

// writeBigInt encodes a sign byte (0=zero/positive, 1=negative) followed
// by the magnitude as a length-prefixed big-endian byte string.
func writeBigInt(w io.Writer, v *big.Int) error {
	var sign byte
	if v.Sign() < 0 {
		sign = 1
	}
	if err := binary.Write(w, binary.LittleEndian, sign); err != nil {
		return err
	}
	mag := v.Bytes()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(mag))); err != nil {
		return err
	}
	_, err := w.Write(mag)
	return err
}

func readBigInt(r io.Reader) (*big.Int, error) {
	var sign byte
	if err := binary.Read(r, binary.LittleEndian, &sign); err != nil {
		return nil, err
	}
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(buf)
	if sign == 1 {
		v.Neg(v)
	}
	return v, nil
}

func writeFunctionTemplate(w io.Writer, ft *FunctionTemplate) error {
	if err := writeString(w, ft.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(ft.ParamCount)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byte(ft.Flags)); err != nil {
		return err
	}
	return Encode(ft.Code, w)
}

func readFunctionTemplate(r io.Reader) (*FunctionTemplate, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	var paramCount int32
	if err := binary.Read(r, binary.LittleEndian, &paramCount); err != nil {
		return nil, err
	}
	var flags byte
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return nil, err
	}
	code, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return &FunctionTemplate{Name: name, ParamCount: int(paramCount), Flags: FunctionFlags(flags), Code: code}, nil
}

func writeClassTemplate(w io.Writer, ct *ClassTemplate) error {
	if err := writeString(w, ct.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(ct.Methods))); err != nil {
		return err
	}
	for _, m := range ct.Methods {
		if err := writeMethodTemplate(w, m); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(ct.Fields))); err != nil {
		return err
	}
	for _, f := range ct.Fields {
		if err := writeFieldTemplate(w, f); err != nil {
			return err
		}
	}
	return nil
}

func readClassTemplate(r io.Reader) (*ClassTemplate, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	var methodCount uint32
	if err := binary.Read(r, binary.LittleEndian, &methodCount); err != nil {
		return nil, err
	}
	methods := make([]MethodTemplate, methodCount)
	for i := range methods {
		m, err := readMethodTemplate(r)
		if err != nil {
			return nil, err
		}
		methods[i] = m
	}
	var fieldCount uint32
	if err := binary.Read(r, binary.LittleEndian, &fieldCount); err != nil {
		return nil, err
	}
	fields := make([]FieldTemplate, fieldCount)
	for i := range fields {
		f, err := readFieldTemplate(r)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	return &ClassTemplate{Name: name, Methods: methods, Fields: fields}, nil
}

func writeMethodTemplate(w io.Writer, m MethodTemplate) error {
	if err := writeString(w, m.Key); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byte(m.Kind)); err != nil {
		return err
	}
	if err := writeBool(w, m.Static); err != nil {
		return err
	}
	if err := writeBool(w, m.Enumerable); err != nil {
		return err
	}
	return writeFunctionTemplate(w, m.Fn)
}

func readMethodTemplate(r io.Reader) (MethodTemplate, error) {
	key, err := readString(r)
	if err != nil {
		return MethodTemplate{}, err
	}
	var kind byte
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return MethodTemplate{}, err
	}
	static, err := readBool(r)
	if err != nil {
		return MethodTemplate{}, err
	}
	enumerable, err := readBool(r)
	if err != nil {
		return MethodTemplate{}, err
	}
	fn, err := readFunctionTemplate(r)
	if err != nil {
		return MethodTemplate{}, err
	}
	return MethodTemplate{Key: key, Kind: MethodKind(kind), Static: static, Enumerable: enumerable, Fn: fn}, nil
}

func writeFieldTemplate(w io.Writer, f FieldTemplate) error {
	if err := writeString(w, f.Key); err != nil {
		return err
	}
	if err := writeBool(w, f.Static); err != nil {
		return err
	}
	hasFn := f.Fn != nil
	if err := writeBool(w, hasFn); err != nil {
		return err
	}
	if hasFn {
		return writeFunctionTemplate(w, f.Fn)
	}
	return nil
}

func readFieldTemplate(r io.Reader) (FieldTemplate, error) {
	key, err := readString(r)
	if err != nil {
		return FieldTemplate{}, err
	}
	static, err := readBool(r)
	if err != nil {
		return FieldTemplate{}, err
	}
	hasFn, err := readBool(r)
	if err != nil {
		return FieldTemplate{}, err
	}
	var fn *FunctionTemplate
	if hasFn {
		f, err := readFunctionTemplate(r)
		if err != nil {
			return FieldTemplate{}, err
		}
		fn = f
	}
	return FieldTemplate{Key: key, Static: static, Fn: fn}, nil
}

func writeBool(w io.Writer, b bool) error {
	var v byte
	if b {
		v = 1
	}
	return binary.Write(w, binary.LittleEndian, v)
}

func readBool(r io.Reader) (bool, error) {
	var v byte
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return false, err
	}
	return v != 0, nil
}

func writeString(w io.Writer, s string) error {
	length := uint32(len(s))
	if err := binary.Write(w, binary.LittleEndian, length); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
