// Package safetensors reads and writes the safetensors checkpoint
// format: an 8-byte little-endian header length, a JSON header mapping
// tensor names to dtype/shape/offsets, then the raw tensor data.
package safetensors

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	json "github.com/goccy/go-json"
	"golang.org/x/sys/unix"
)

type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

// File is an opened checkpoint. The data section is memory-mapped when
// the platform allows it; otherwise tensor reads fall back to pread.
type File struct {
	Path      string
	DataStart int64
	Tensors   map[string]TensorInfo

	data    []byte
	mmapped bool
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	headerLen, err := readU64(f)
	if err != nil {
		return nil, err
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, err
	}
	delete(raw, "__metadata__")

	tensors := make(map[string]TensorInfo, len(raw))
	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("parse tensor %s: %w", name, err)
		}
		if len(th.DataOffsets) != 2 || th.DataOffsets[1] < th.DataOffsets[0] {
			return nil, fmt.Errorf("tensor %s: invalid data_offsets", name)
		}
		tensors[name] = TensorInfo{
			DType: th.DType,
			Shape: th.Shape,
			Start: th.DataOffsets[0],
			End:   th.DataOffsets[1],
		}
	}
	out := &File{
		Path:      path,
		DataStart: int64(8 + headerLen),
		Tensors:   tensors,
	}

	// Prefer mmap for zero-copy tensor slices; pread is the fallback.
	if st, err := f.Stat(); err == nil && st.Size() > out.DataStart {
		data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
		if err == nil {
			out.data = data
			out.mmapped = true
		}
	}
	return out, nil
}

// Close releases the mapping, if any. The File stays usable for pread
// access afterwards.
func (f *File) Close() error {
	if f.mmapped {
		data := f.data
		f.data = nil
		f.mmapped = false
		return unix.Munmap(data)
	}
	return nil
}

func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.Tensors[name]
	return t, ok
}

// Names returns all tensor names, sorted.
func (f *File) Names() []string {
	out := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ReadTensor returns the raw bytes of a named tensor. When the file is
// mapped the returned slice aliases the mapping and is only valid until
// Close.
func (f *File) ReadTensor(name string) ([]byte, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("tensor not found: %s", name)
	}
	start := f.DataStart + t.Start
	end := f.DataStart + t.End
	if f.mmapped {
		if end > int64(len(f.data)) {
			return nil, TensorInfo{}, fmt.Errorf("tensor %s: offsets beyond file", name)
		}
		return f.data[start:end], t, nil
	}

	buf := make([]byte, t.End-t.Start)
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, TensorInfo{}, err
	}
	defer func() { _ = file.Close() }()
	if _, err := file.ReadAt(buf, start); err != nil {
		return nil, TensorInfo{}, fmt.Errorf("read tensor %s: %w", name, err)
	}
	return buf, t, nil
}

// ReadTensorF32 reads a tensor and converts it to float32. F32, F16 and
// BF16 storage is supported.
func (f *File) ReadTensorF32(name string) ([]float32, TensorInfo, error) {
	raw, info, err := f.ReadTensor(name)
	if err != nil {
		return nil, TensorInfo{}, err
	}
	n, err := numElements(info.Shape)
	if err != nil {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: %w", name, err)
	}
	switch info.DType {
	case "F32":
		if len(raw) != n*4 {
			return nil, TensorInfo{}, fmt.Errorf("tensor %s: invalid f32 data size", name)
		}
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return out, info, nil
	case "BF16":
		if len(raw) != n*2 {
			return nil, TensorInfo{}, fmt.Errorf("tensor %s: invalid bf16 data size", name)
		}
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = bf16ToF32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		return out, info, nil
	case "F16":
		if len(raw) != n*2 {
			return nil, TensorInfo{}, fmt.Errorf("tensor %s: invalid f16 data size", name)
		}
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = fp16ToFloat32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		return out, info, nil
	default:
		return nil, TensorInfo{}, fmt.Errorf("unsupported dtype %s", info.DType)
	}
}

// NamedTensor is one tensor destined for WriteFloat32.
type NamedTensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// WriteFloat32 writes a checkpoint holding the given tensors as F32, in
// the order provided. Shapes must match their data lengths.
func WriteFloat32(path string, tensors []NamedTensor) error {
	type entry struct {
		DType       string  `json:"dtype"`
		Shape       []int   `json:"shape"`
		DataOffsets []int64 `json:"data_offsets"`
	}
	header := make(map[string]entry, len(tensors))
	var offset int64
	for _, t := range tensors {
		n, err := numElements(t.Shape)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", t.Name, err)
		}
		if n != len(t.Data) {
			return fmt.Errorf("tensor %s: shape %v does not match %d values", t.Name, t.Shape, len(t.Data))
		}
		if _, dup := header[t.Name]; dup {
			return fmt.Errorf("duplicate tensor name %s", t.Name)
		}
		size := int64(n) * 4
		header[t.Name] = entry{
			DType:       "F32",
			Shape:       t.Shape,
			DataOffsets: []int64{offset, offset + size},
		}
		offset += size
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.Write(headerBytes); err != nil {
		_ = f.Close()
		return err
	}
	buf := make([]byte, 0, 4096)
	for _, t := range tensors {
		buf = buf[:0]
		for _, v := range t.Data {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
		if _, err := f.Write(buf); err != nil {
			_ = f.Close()
			return err
		}
	}
	return f.Close()
}

func numElements(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("invalid dim %d", d)
		}
		if n > (int(^uint(0)>>1))/d {
			return 0, fmt.Errorf("tensor too large")
		}
		n *= d
	}
	return n, nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func bf16ToF32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}

func fp16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h & 0x3FF)
	var f uint32
	switch exp {
	case 0:
		if frac == 0 {
			f = sign << 31
		} else {
			e := uint32(127 - 15 + 1)
			for (frac & 0x400) == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3FF
			f = (sign << 31) | (e << 23) | (frac << 13)
		}
	case 0x1F:
		f = (sign << 31) | 0x7F800000 | (frac << 13)
	default:
		e := exp + (127 - 15)
		f = (sign << 31) | (e << 23) | (frac << 13)
	}
	return math.Float32frombits(f)
}
