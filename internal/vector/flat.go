package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

const (
	indexMagic   = "NVIX"
	indexVersion = uint32(1)
)

// FlatIndex is an exact brute-force index over unit vectors. Rows are stored
// row-major in a single slice and map positionally to the chunk list held by
// the Store. The index is immutable once published; callers synchronize.
type FlatIndex struct {
	dimensions int
	count      int
	vectors    []float32 // count * dimensions, row-major
}

// Hit is one index row with its squared L2 distance to the query.
type Hit struct {
	Row      int
	Distance float64
}

// NewFlatIndex creates an empty index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Add appends vectors to the index. Every vector must match the index dimension.
func (ix *FlatIndex) Add(vectors [][]float32) error {
	for _, vec := range vectors {
		if len(vec) != ix.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), ix.dimensions)
		}
	}
	for _, vec := range vectors {
		ix.vectors = append(ix.vectors, vec...)
	}
	ix.count += len(vectors)
	return nil
}

// Search returns the k rows nearest to query by squared L2 distance, ascending.
func (ix *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), ix.dimensions)
	}
	if k <= 0 || ix.count == 0 {
		return nil, nil
	}
	hits := make([]Hit, ix.count)
	for row := 0; row < ix.count; row++ {
		base := row * ix.dimensions
		hits[row] = Hit{
			Row:      row,
			Distance: SquaredL2(query, ix.vectors[base:base+ix.dimensions]),
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Size returns the number of vectors in the index.
func (ix *FlatIndex) Size() int {
	return ix.count
}

// Dimensions returns the vector dimension.
func (ix *FlatIndex) Dimensions() int {
	return ix.dimensions
}

// Save writes the index to path. Format: magic "NVIX", version, dimensions,
// count (uint32 little-endian), then count*dimensions float32 values row-major.
func (ix *FlatIndex) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(indexMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	for _, v := range []uint32{indexVersion, uint32(ix.dimensions), uint32(ix.count)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if _, err := w.Write(float32SliceToBytes(ix.vectors)); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return nil
}

// ReadFlatIndex reads an index previously written by Save.
func ReadFlatIndex(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != indexMagic {
		return nil, fmt.Errorf("not a vector index file (magic %q)", magic)
	}
	var version, dim, count uint32
	for _, p := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
	}
	if version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", version)
	}
	if dim == 0 {
		return nil, fmt.Errorf("index file has zero dimensions")
	}
	buf := make([]byte, int(count)*int(dim)*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	return &FlatIndex{
		dimensions: int(dim),
		count:      int(count),
		vectors:    bytesToFloat32Slice(buf),
	}, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
