package mlp_go

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DataLoader Iterates dataset by batches of fixed size. Trailing partial batch is dropped since graph has fixed batch shape
type DataLoader struct {
	BatchSize int
	Shuffle   bool

	ds      *Dataset
	rng     *rand.Rand
	order   []int
	current int
}

// NewDataLoader Creates loader. rng is used only when shuffle is true
func NewDataLoader(ds *Dataset, batchSize int, shuffle bool, rng *rand.Rand) (*DataLoader, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, but got %d", batchSize)
	}
	if batchSize > ds.Len() {
		return nil, fmt.Errorf("batch size %d is greater than dataset size %d", batchSize, ds.Len())
	}
	if shuffle && rng == nil {
		return nil, fmt.Errorf("shuffling loader needs source of randomness")
	}
	dl := &DataLoader{
		BatchSize: batchSize,
		Shuffle:   shuffle,
		ds:        ds,
		rng:       rng,
		order:     make([]int, ds.Len()),
	}
	for i := range dl.order {
		dl.order[i] = i
	}
	dl.Reset()
	return dl, nil
}

// Batches Returns number of full batches per epoch
func (dl *DataLoader) Batches() int {
	return dl.ds.Len() / dl.BatchSize
}

// Reset Starts new epoch
func (dl *DataLoader) Reset() {
	dl.current = 0
	if dl.Shuffle {
		dl.rng.Shuffle(len(dl.order), func(i, j int) {
			dl.order[i], dl.order[j] = dl.order[j], dl.order[i]
		})
	}
}

// Next Returns next batch of images (BatchSize, features) and one-hot labels (BatchSize, classes)
func (dl *DataLoader) Next() (images, labels *tensor.Dense, ok bool, err error) {
	if (dl.current+1)*dl.BatchSize > len(dl.order) {
		return nil, nil, false, nil
	}
	idx := dl.order[dl.current*dl.BatchSize : (dl.current+1)*dl.BatchSize]
	dl.current++
	images, batchLabels := gatherRows(dl.ds, idx)
	labels, err = OneHot(batchLabels, dl.ds.Classes)
	if err != nil {
		return nil, nil, false, errors.Wrap(err, "Can't encode labels")
	}
	return images, labels, true, nil
}

func gatherRows(ds *Dataset, idx []int) (*tensor.Dense, []int) {
	f := ds.Features()
	src := ds.backing()
	data := make([]float64, len(idx)*f)
	labels := make([]int, len(idx))
	for i, j := range idx {
		copy(data[i*f:(i+1)*f], src[j*f:(j+1)*f])
		labels[i] = ds.Labels[j]
	}
	return tensor.New(tensor.WithShape(len(idx), f), tensor.WithBacking(data)), labels
}

// Pad Packs rows into (batchSize, features) dense filling missing rows with zeros. Returns number of real rows
func Pad(rows [][]float64, batchSize, features int) (*tensor.Dense, int, error) {
	if len(rows) == 0 || len(rows) > batchSize {
		return nil, 0, fmt.Errorf("can't pad %d rows into batch of %d", len(rows), batchSize)
	}
	data := make([]float64, batchSize*features)
	for i, row := range rows {
		if len(row) != features {
			return nil, 0, fmt.Errorf("row #%d must have %d values, but got %d", i, features, len(row))
		}
		copy(data[i*features:], row)
	}
	return tensor.New(tensor.WithShape(batchSize, features), tensor.WithBacking(data)), len(rows), nil
}
