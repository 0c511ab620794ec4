package mlp_go

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
)

// Kind Which of supported image datasets
type Kind string

const (
	MNIST        = Kind("mnist")
	FashionMNIST = Kind("fashion_mnist")
)

const (
	idxImagesMagic = 0x00000803
	idxLabelsMagic = 0x00000801

	// Limits for values declared in IDX headers
	maxIDXSide   = 1 << 12
	maxIDXItems  = 1 << 24
	maxIDXValues = 1 << 28
)

var (
	mnistClassNames   = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}
	fashionClassNames = []string{"T-shirt/top", "Trouser", "Pullover", "Dress", "Coat", "Sandal", "Shirt", "Sneaker", "Bag", "Ankle boot"}
)

// ClassNames Returns human-readable names of classes
func (k Kind) ClassNames() []string {
	switch k {
	case MNIST:
		return append([]string(nil), mnistClassNames...)
	case FashionMNIST:
		return append([]string(nil), fashionClassNames...)
	default:
		return nil
	}
}

// Validate Checks if kind is supported
func (k Kind) Validate() error {
	switch k {
	case MNIST, FashionMNIST:
		return nil
	default:
		return fmt.Errorf("dataset kind '%s' is not supported", k)
	}
}

// Normalization Pixel transformation (p/255 - Mean) / Std
type Normalization struct {
	Mean float64
	Std  float64
}

// DefaultNormalization Maps pixels to [-1;1]
func DefaultNormalization() Normalization {
	return Normalization{Mean: 0.5, Std: 0.5}
}

// Dataset Images and its labels
//
// Images - dense of shape (N, Rows*Cols)
// Labels - class index for each image
//
type Dataset struct {
	Images  *tensor.Dense
	Labels  []int
	Rows    int
	Cols    int
	Classes int
}

// Len Returns number of samples
func (ds *Dataset) Len() int {
	return len(ds.Labels)
}

// Features Returns number of values in each sample
func (ds *Dataset) Features() int {
	return ds.Images.Shape()[1]
}

func (ds *Dataset) backing() []float64 {
	return ds.Images.Data().([]float64)
}

// Image Returns copy of i-th sample
func (ds *Dataset) Image(i int) ([]float64, error) {
	if i < 0 || i >= ds.Len() {
		return nil, fmt.Errorf("index %d is out of range [0;%d)", i, ds.Len())
	}
	f := ds.Features()
	return append([]float64(nil), ds.backing()[i*f:(i+1)*f]...), nil
}

// Subset Returns samples in range [start;end). Returned dataset doesn't share memory with origin
func (ds *Dataset) Subset(start, end int) (*Dataset, error) {
	if start < 0 || end > ds.Len() || start >= end {
		return nil, fmt.Errorf("bad subset range [%d;%d) for dataset of %d samples", start, end, ds.Len())
	}
	f := ds.Features()
	data := append([]float64(nil), ds.backing()[start*f:end*f]...)
	images := tensor.New(tensor.WithShape(end-start, f), tensor.WithBacking(data))
	return &Dataset{
		Images:  images,
		Labels:  append([]int(nil), ds.Labels[start:end]...),
		Rows:    ds.Rows,
		Cols:    ds.Cols,
		Classes: ds.Classes,
	}, nil
}

// Split Splits dataset into two parts. Second one holds round(frac*N) last samples
func (ds *Dataset) Split(frac float64) (*Dataset, *Dataset, error) {
	if frac <= 0 || frac >= 1 {
		return nil, nil, fmt.Errorf("split fraction must be in (0;1), but got %f", frac)
	}
	second := int(frac*float64(ds.Len()) + 0.5)
	if second == 0 || second == ds.Len() {
		return nil, nil, fmt.Errorf("split fraction %f gives empty part for dataset of %d samples", frac, ds.Len())
	}
	first, err := ds.Subset(0, ds.Len()-second)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't prepare first part")
	}
	last, err := ds.Subset(ds.Len()-second, ds.Len())
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't prepare second part")
	}
	return first, last, nil
}

// Stats Returns mean and sample standard deviation of all values. Empty dataset or non-finite values give an error
func (ds *Dataset) Stats() (mean, std float64, err error) {
	if ds.Images == nil || ds.Len() == 0 {
		return 0, 0, fmt.Errorf("dataset is empty")
	}
	values := ds.backing()
	if i := nonFiniteIdx(values); i >= 0 {
		return 0, 0, fmt.Errorf("value #%d is not finite: %v", i, values[i])
	}
	mean, std = stat.MeanStdDev(values, nil)
	return mean, std, nil
}

// Shuffle Shuffles samples in place
func (ds *Dataset) Shuffle(rng *rand.Rand) {
	data := ds.backing()
	f := ds.Features()
	tmp := make([]float64, f)
	rng.Shuffle(ds.Len(), func(i, j int) {
		ds.Labels[i], ds.Labels[j] = ds.Labels[j], ds.Labels[i]
		copy(tmp, data[i*f:(i+1)*f])
		copy(data[i*f:(i+1)*f], data[j*f:(j+1)*f])
		copy(data[j*f:(j+1)*f], tmp)
	})
}

// ParseIDXImages Reads IDX3 images (uncompressed) and normalizes pixels
func ParseIDXImages(r io.Reader, norm Normalization) (n, rows, cols int, pixels []float64, err error) {
	if norm.Std == 0 {
		return 0, 0, 0, nil, fmt.Errorf("normalization std must be non-zero")
	}
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return 0, 0, 0, nil, errors.Wrap(err, "Can't read images header")
	}
	if header[0] != idxImagesMagic {
		return 0, 0, 0, nil, fmt.Errorf("bad images magic number 0x%08x", header[0])
	}
	if header[2] == 0 || header[3] == 0 || header[2] > maxIDXSide || header[3] > maxIDXSide {
		return 0, 0, 0, nil, fmt.Errorf("bad images dimensions %dx%d", header[2], header[3])
	}
	total := uint64(header[1]) * uint64(header[2]) * uint64(header[3])
	if header[1] > maxIDXItems || total > maxIDXValues {
		return 0, 0, 0, nil, fmt.Errorf("images header declares %d images of %dx%d which exceeds limit of %d values", header[1], header[2], header[3], maxIDXValues)
	}
	n, rows, cols = int(header[1]), int(header[2]), int(header[3])
	raw, err := readIDXBody(r, int64(total))
	if err != nil {
		return 0, 0, 0, nil, errors.Wrapf(err, "Can't read %d images of %dx%d", n, rows, cols)
	}
	pixels = make([]float64, len(raw))
	for i, p := range raw {
		pixels[i] = (float64(p)/255.0 - norm.Mean) / norm.Std
	}
	return n, rows, cols, pixels, nil
}

// ParseIDXLabels Reads IDX1 labels (uncompressed)
func ParseIDXLabels(r io.Reader) ([]int, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "Can't read labels header")
	}
	if header[0] != idxLabelsMagic {
		return nil, fmt.Errorf("bad labels magic number 0x%08x", header[0])
	}
	if header[1] > maxIDXItems {
		return nil, fmt.Errorf("labels header declares %d labels which exceeds limit of %d", header[1], maxIDXItems)
	}
	raw, err := readIDXBody(r, int64(header[1]))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read %d labels", header[1])
	}
	labels := make([]int, len(raw))
	for i, l := range raw {
		labels[i] = int(l)
	}
	return labels, nil
}

// readIDXBody Reads exactly size bytes. Buffer grows along with data actually read
func readIDXBody(r io.Reader, size int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) != size {
		return nil, fmt.Errorf("expected %d bytes, but got %d: %w", size, len(raw), io.ErrUnexpectedEOF)
	}
	return raw, nil
}

func openGzip(fname string) (io.ReadCloser, *os.File, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, nil, err
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrapf(err, "Can't ungzip file '%s'", fname)
	}
	return gz, f, nil
}

// Load Reads train or test part of dataset from directory with gzipped IDX files (as they are published)
func Load(kind Kind, dir string, train bool, norm Normalization) (*Dataset, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	imagesFile, labelsFile := datasetFiles(train)

	gz, f, err := openGzip(filepath.Join(dir, imagesFile))
	if err != nil {
		return nil, errors.Wrap(err, "Can't open images")
	}
	n, rows, cols, pixels, err := ParseIDXImages(gz, norm)
	gz.Close()
	f.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse '%s'", imagesFile)
	}

	gz, f, err = openGzip(filepath.Join(dir, labelsFile))
	if err != nil {
		return nil, errors.Wrap(err, "Can't open labels")
	}
	labels, err := ParseIDXLabels(gz)
	gz.Close()
	f.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse '%s'", labelsFile)
	}
	return NewDataset(n, rows, cols, pixels, labels, len(kind.ClassNames()))
}

// NewDataset Wraps raw values into Dataset. Labels must be in range [0;classes)
func NewDataset(n, rows, cols int, pixels []float64, labels []int, classes int) (*Dataset, error) {
	if n == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	if len(labels) != n {
		return nil, fmt.Errorf("number of images (%d) and labels (%d) must match", n, len(labels))
	}
	if len(pixels) != n*rows*cols {
		return nil, fmt.Errorf("expected %d values for %d images of %dx%d, but got %d", n*rows*cols, n, rows, cols, len(pixels))
	}
	for i, l := range labels {
		if l < 0 || l >= classes {
			return nil, fmt.Errorf("label %d at position %d is out of range [0;%d)", l, i, classes)
		}
	}
	return &Dataset{
		Images:  tensor.New(tensor.WithShape(n, rows*cols), tensor.WithBacking(pixels)),
		Labels:  labels,
		Rows:    rows,
		Cols:    cols,
		Classes: classes,
	}, nil
}

// GenerateBlobs Generates synthetic dataset of Gaussian clusters: one cluster per class, center ~ N(0, 1) per feature
//
// spread - standard deviation of samples around cluster center
//
func GenerateBlobs(numSamples, features, classes int, spread float64, rng *rand.Rand) (*Dataset, error) {
	if numSamples <= 0 || features <= 0 || classes <= 0 {
		return nil, fmt.Errorf("blobs need positive sizes, but got samples=%d features=%d classes=%d", numSamples, features, classes)
	}
	centers := NormRandDense(rng, classes, features).Data().([]float64)
	pixels := make([]float64, numSamples*features)
	labels := make([]int, numSamples)
	for i := range labels {
		labels[i] = i % classes
		for j := 0; j < features; j++ {
			pixels[i*features+j] = centers[labels[i]*features+j] + spread*rng.NormFloat64()
		}
	}
	ds, err := NewDataset(numSamples, 1, features, pixels, labels, classes)
	if err != nil {
		return nil, err
	}
	ds.Shuffle(rng)
	return ds, nil
}
