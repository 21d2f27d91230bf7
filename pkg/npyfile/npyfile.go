// Package npyfile reads and writes the NumPy .npy array format, which is
// the on-disk representation for point data, cluster output and
// discretized trajectories throughout the driver. No third-party .npy
// library is available among the dependencies this module draws from, so
// the format is implemented directly against encoding/binary; it is a
// small, fully specified binary layout rather than a domain the ecosystem
// has libraries for.
package npyfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const magic = "\x93NUMPY"

// DType enumerates the array element types this package supports.
type DType int

const (
	Float32 DType = iota
	Int32
)

func (d DType) descr() string {
	switch d {
	case Float32:
		return "<f4"
	case Int32:
		return "<i4"
	default:
		panic("npyfile: unknown dtype")
	}
}

func (d DType) itemSize() int {
	switch d {
	case Float32, Int32:
		return 4
	default:
		panic("npyfile: unknown dtype")
	}
}

// Array is a flat, C-order (row-major) numeric array with an explicit
// shape.
type Array struct {
	Shape []int
	DType DType
	Data  []byte
}

// Float32Data reinterprets Data as a []float32 slice.
func (a *Array) Float32Data() []float32 {
	out := make([]float32, len(a.Data)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(a.Data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// Int32Data reinterprets Data as a []int32 slice.
func (a *Array) Int32Data() []int32 {
	out := make([]int32, len(a.Data)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(a.Data[i*4:]))
	}
	return out
}

// NewFloat32Array builds an Array from a flat float32 slice and shape. The
// product of shape must equal len(data).
func NewFloat32Array(data []float32, shape []int) *Array {
	buf := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return &Array{Shape: shape, DType: Float32, Data: buf}
}

// NewInt32Array builds an Array from a flat int32 slice and shape.
func NewInt32Array(data []int32, shape []int) *Array {
	buf := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return &Array{Shape: shape, DType: Int32, Data: buf}
}

var headerRe = regexp.MustCompile(`'descr':\s*'([^']+)',\s*'fortran_order':\s*(True|False),\s*'shape':\s*\(([^)]*)\)`)

// Read loads an .npy file from path.
func Read(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("npyfile: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magicBuf := make([]byte, len(magic))
	if _, err := readFull(r, magicBuf); err != nil {
		return nil, fmt.Errorf("npyfile: reading magic: %w", err)
	}
	if string(magicBuf) != magic {
		return nil, fmt.Errorf("npyfile: %s is not a .npy file", path)
	}

	verBuf := make([]byte, 2)
	if _, err := readFull(r, verBuf); err != nil {
		return nil, fmt.Errorf("npyfile: reading version: %w", err)
	}

	var headerLen int
	if verBuf[0] == 1 {
		lenBuf := make([]byte, 2)
		if _, err := readFull(r, lenBuf); err != nil {
			return nil, err
		}
		headerLen = int(binary.LittleEndian.Uint16(lenBuf))
	} else {
		lenBuf := make([]byte, 4)
		if _, err := readFull(r, lenBuf); err != nil {
			return nil, err
		}
		headerLen = int(binary.LittleEndian.Uint32(lenBuf))
	}

	headerBuf := make([]byte, headerLen)
	if _, err := readFull(r, headerBuf); err != nil {
		return nil, fmt.Errorf("npyfile: reading header: %w", err)
	}

	match := headerRe.FindStringSubmatch(string(headerBuf))
	if match == nil {
		return nil, fmt.Errorf("npyfile: unrecognized header %q", headerBuf)
	}

	var dtype DType
	switch match[1] {
	case "<f4":
		dtype = Float32
	case "<i4":
		dtype = Int32
	default:
		return nil, fmt.Errorf("npyfile: unsupported dtype %q", match[1])
	}

	shape, err := parseShape(match[3])
	if err != nil {
		return nil, err
	}

	count := 1
	for _, s := range shape {
		count *= s
	}

	data := make([]byte, count*dtype.itemSize())
	if _, err := readFull(r, data); err != nil {
		return nil, fmt.Errorf("npyfile: reading array body: %w", err)
	}

	return &Array{Shape: shape, DType: dtype, Data: data}, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func parseShape(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	shape := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("npyfile: invalid shape component %q", p)
		}
		shape = append(shape, n)
	}
	return shape, nil
}

// Write writes arr to path, applying the backup policy: if path already
// exists and overwrite is false, an ascending integer is appended before
// the extension and the array is written there instead. It returns the
// path actually written.
func Write(path string, arr *Array, overwrite bool) (string, error) {
	target := path
	if !overwrite {
		target = backupPath(path)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("npyfile: create %s: %w", target, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	shapeStrs := make([]string, len(arr.Shape))
	for i, s := range arr.Shape {
		shapeStrs[i] = strconv.Itoa(s)
	}
	shapeRepr := strings.Join(shapeStrs, ", ")
	if len(arr.Shape) == 1 {
		shapeRepr += ","
	}

	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", arr.DType.descr(), shapeRepr)

	// Pad so magic(6) + version(2) + headerLen(2) + header + '\n' is a
	// multiple of 64 bytes, matching NumPy's own alignment convention.
	preambleLen := len(magic) + 2 + 2
	total := preambleLen + len(header) + 1
	pad := (64 - total%64) % 64
	header += strings.Repeat(" ", pad) + "\n"

	if _, err := w.WriteString(magic); err != nil {
		return "", err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return "", err
	}
	lenBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBuf, uint16(len(header)))
	if _, err := w.Write(lenBuf); err != nil {
		return "", err
	}
	if _, err := w.WriteString(header); err != nil {
		return "", err
	}
	if _, err := w.Write(arr.Data); err != nil {
		return "", err
	}

	return target, w.Flush()
}

// backupPath returns path unchanged if it doesn't exist, or path with an
// ascending integer inserted before the extension otherwise.
func backupPath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d%s", base, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// SidecarPath builds the sidecar path for a base path and suffix, e.g.
// SidecarPath("foo.npy", "shape") -> "foo-shape.npy".
func SidecarPath(base, suffix string) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s-%s%s", stem, suffix, ext)
}
