package gsl

import (
	"math"

	"gorgonia.org/tensor"
)

//TemporaryMemory is the scratch handle for split searches. It is allocated
//once by the caller, borrowed by every search on the corresponding queue and
//reused across tree nodes; the engine never allocates or frees it. The caller
//must not run two concurrent searches against the same handle.
type TemporaryMemory struct {
	//DeviceHist is the histogram accumulator the builder kernels write into
	//with atomic increments.
	DeviceHist []int64
	//hostHist backs HostHist; TransferHistogram copies DeviceHist into it.
	hostHist []int64
	//HostHist is the host-readable mirror of the accumulator, reshaped per
	//search to [nbins, nlabels] or [ncols, nbins, nlabels].
	HostHist *tensor.Dense
	//MinMax keeps one (min, max) pair of float64 bit patterns per sampled
	//column, written by the sampler with compare-and-swap.
	MinMax []uint64
	//SampledCols is the dense staging buffer: for every sampled column the
	//values of the selected rows, column-major.
	SampledCols []float64
	//QuantileTable is the flat precomputed threshold table indexed by
	//column*nbins+bin. Global-quantile searches index it by the original
	//column id, local-quantile searches by the sampled column position.
	QuantileTable *tensor.Dense

	//RowIDs and ColIDs are the bootstrapped row subset and the subsampled
	//column subset of the current node.
	RowIDs []int
	ColIDs []int

	//Queue is the execution stream all kernels of a search are issued onto.
	Queue *Queue
}

//NewTemporaryMemory allocates a scratch handle able to serve searches of up
//to maxRows rows, maxCols sampled columns, nbins thresholds and nlabels
//distinct classes.
func NewTemporaryMemory(maxRows, maxCols, nbins, nlabels int, q *Queue) *TemporaryMemory {
	histLen := maxCols * nbins * nlabels
	return &TemporaryMemory{
		DeviceHist:  make([]int64, histLen),
		hostHist:    make([]int64, histLen),
		MinMax:      make([]uint64, 2*maxCols),
		SampledCols: make([]float64, maxRows*maxCols),
		Queue:       q,
	}
}

//zeroHistogram clears the first n counters of the accumulator.
func (tm *TemporaryMemory) zeroHistogram(n int) {
	for i := 0; i < n; i++ {
		tm.DeviceHist[i] = 0
	}
}

//seedRanges seeds the (min, max) pairs of colCount sampled columns starting
//at colStart with the extreme representable values so that a single real
//sample always overrides the seed.
func (tm *TemporaryMemory) seedRanges(colStart, colCount int) {
	for q := colStart; q < colStart+colCount; q++ {
		tm.MinMax[2*q] = math.Float64bits(math.MaxFloat64)
		tm.MinMax[2*q+1] = math.Float64bits(-math.MaxFloat64)
	}
}

//ColumnRange returns the (min, max) observed by the latest uniform-binning
//search for the sampled column at position col. Together with the bin id of
//a winning question this is what the caller re-derives the concrete uniform
//threshold from.
func (tm *TemporaryMemory) ColumnRange(col int) (min, max float64) {
	return math.Float64frombits(tm.MinMax[2*col]), math.Float64frombits(tm.MinMax[2*col+1])
}

//TransferHistogram copies the first n accumulator counters into the
//host-readable mirror and reshapes the mirror to the given dimensions.
//It is submitted onto the queue after the builder kernels, so the copy
//observes their completed counts.
func (tm *TemporaryMemory) TransferHistogram(n int, shape ...int) {
	copy(tm.hostHist[:n], tm.DeviceHist[:n])
	tm.HostHist = tensor.New(tensor.WithShape(shape...), tensor.WithBacking(tm.hostHist[:n]))
}

//quantileData exposes the flat quantile table for the builder kernels.
func (tm *TemporaryMemory) quantileData() []float64 {
	return tm.QuantileTable.Data().([]float64)
}
