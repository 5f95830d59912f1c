package raydata

import (
	"archive/zip"
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/sbinet/npyio/npy"
)

// batchArchive is one decoded batch: a flat coordinate buffer and the index
// delimiting the rays inside it.
type batchArchive struct {
	points  []Point
	offsets []int64
}

// numRays returns the number of candidate rays described by the offsets.
func (b *batchArchive) numRays() int {
	return len(b.offsets) - 1
}

// decodeBatchArchive parses an .npz archive holding "points" and "offsets".
func decodeBatchArchive(data []byte) (*batchArchive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not an npz archive: %v", ErrMalformedArchive, err)
	}

	pts, err := readMember(zr, "points")
	if err != nil {
		return nil, err
	}
	offs, err := readMember(zr, "offsets")
	if err != nil {
		return nil, err
	}

	points, err := pts.points()
	if err != nil {
		return nil, err
	}
	offsets, err := offs.indices()
	if err != nil {
		return nil, err
	}
	if len(offsets) < 1 {
		return nil, fmt.Errorf("%w: offsets is empty", ErrMalformedArchive)
	}

	return &batchArchive{points: points, offsets: offsets}, nil
}

// npyArray is a decoded .npy member kept flat in C order. Integer dtypes land
// in ints, floating-point dtypes in floats; exactly one of the two is set.
type npyArray struct {
	name   string
	shape  []int
	floats []float64
	ints   []int64
}

func findMember(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name || f.Name == name+".npy" {
			return f
		}
	}
	return nil
}

func readMember(zr *zip.Reader, name string) (*npyArray, error) {
	f := findMember(zr, name)
	if f == nil {
		return nil, fmt.Errorf("%w: missing array %q", ErrMalformedArchive, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrMalformedArchive, name, err)
	}
	defer rc.Close()

	r, err := npy.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q header: %v", ErrMalformedArchive, name, err)
	}

	arr := &npyArray{name: name, shape: append([]int(nil), r.Header.Descr.Shape...)}
	if err := arr.decode(r); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedArchive, name, err)
	}

	if r.Header.Descr.Fortran && len(arr.shape) == 2 {
		rows, cols := arr.shape[0], arr.shape[1]
		if arr.ints != nil {
			arr.ints = transpose(arr.ints, rows, cols)
		} else {
			arr.floats = transpose(arr.floats, rows, cols)
		}
	}
	return arr, nil
}

// decode reads the payload according to its dtype. Floats are widened to
// float64 and integers to int64. Byte order is handled by npy from the header
// descriptor.
func (a *npyArray) decode(r *npy.Reader) error {
	descr := r.Header.Descr.Type
	kind := strings.TrimLeft(descr, "<>|=")

	var err error
	switch kind {
	case "f8":
		err = r.Read(&a.floats)
	case "f4":
		a.floats, err = readAs[float32, float64](r)
	case "i8":
		err = r.Read(&a.ints)
	case "i4":
		a.ints, err = readAs[int32, int64](r)
	case "i2":
		a.ints, err = readAs[int16, int64](r)
	case "i1":
		a.ints, err = readAs[int8, int64](r)
	case "u4":
		a.ints, err = readAs[uint32, int64](r)
	case "u2":
		a.ints, err = readAs[uint16, int64](r)
	case "u1":
		a.ints, err = readAs[uint8, int64](r)
	case "u8":
		var v []uint64
		if err = r.Read(&v); err != nil {
			break
		}
		a.ints = make([]int64, len(v))
		for i, u := range v {
			if u > math.MaxInt64 {
				return fmt.Errorf("element %d = %d overflows int64", i, u)
			}
			a.ints[i] = int64(u)
		}
	default:
		return fmt.Errorf("unsupported dtype %q", descr)
	}
	if err != nil {
		return err
	}
	if a.floats == nil && a.ints == nil {
		if kind == "f8" || kind == "f4" {
			a.floats = []float64{}
		} else {
			a.ints = []int64{}
		}
	}
	return nil
}

type number interface {
	~float32 | ~float64 | ~int64 | ~int32 | ~int16 | ~int8 | ~uint32 | ~uint16 | ~uint8
}

// readAs reads a payload of element type S and converts it to D. Callers only
// pair types where every S value is representable in D.
func readAs[S, D number](r *npy.Reader) ([]D, error) {
	var v []S
	if err := r.Read(&v); err != nil {
		return nil, err
	}
	out := make([]D, len(v))
	for i, x := range v {
		out[i] = D(x)
	}
	return out, nil
}

// values returns the payload as float64 regardless of dtype.
func (a *npyArray) values() []float64 {
	if a.floats != nil {
		return a.floats
	}
	out := make([]float64, len(a.ints))
	for i, v := range a.ints {
		out[i] = float64(v)
	}
	return out
}

// transpose converts a column-major rows x cols buffer to row-major.
func transpose[T any](values []T, rows, cols int) []T {
	if len(values) != rows*cols {
		return values
	}
	out := make([]T, len(values))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = values[c*rows+r]
		}
	}
	return out
}

// points interprets the array as (M, 2) coordinates, or as a flat vector of
// interleaved x, y pairs.
func (a *npyArray) points() ([]Point, error) {
	switch {
	case len(a.shape) == 2 && a.shape[1] == 2:
	case len(a.shape) == 1 && a.shape[0]%2 == 0:
	default:
		return nil, fmt.Errorf("%w: %q has shape %v, want (M, 2)", ErrMalformedArchive, a.name, a.shape)
	}
	vals := a.values()
	if len(vals)%2 != 0 {
		return nil, fmt.Errorf("%w: %q holds %d values, want pairs", ErrMalformedArchive, a.name, len(vals))
	}

	pts := make([]Point, len(vals)/2)
	for i := range pts {
		pts[i] = Point{vals[2*i], vals[2*i+1]}
	}
	return pts, nil
}

// indices interprets the array as a 1-D integer index. Integer dtypes are
// used as stored; floating-point values must be whole and within int64 range.
func (a *npyArray) indices() ([]int64, error) {
	if len(a.shape) != 1 {
		return nil, fmt.Errorf("%w: %q has shape %v, want 1-D", ErrMalformedArchive, a.name, a.shape)
	}
	if a.ints != nil {
		return a.ints, nil
	}
	out := make([]int64, len(a.floats))
	for i, v := range a.floats {
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: %q[%d] = %v is not an integer", ErrMalformedArchive, a.name, i, v)
		}
		// 2^63 itself is exactly representable and already out of range.
		if v < math.MinInt64 || v >= math.MaxInt64 {
			return nil, fmt.Errorf("%w: %q[%d] = %v overflows int64", ErrMalformedArchive, a.name, i, v)
		}
		out[i] = int64(v)
	}
	return out, nil
}
