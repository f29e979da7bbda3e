package gsl

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//readHostCount fetches one counter from the host mirror.
func readHostCount(t *testing.T, tm *TemporaryMemory, coords ...int) int64 {
	t.Helper()
	element, err := tm.HostHist.At(coords...)
	if err != nil {
		t.Fatal(err)
	}
	return element.(int64)
}

//The histograms are cumulative over thresholds: bin b counts the rows whose
//value does not exceed the b-th threshold. The last uniform threshold is the
//column maximum, so the label sum of the last bin accounts for every
//selected row exactly once.
func TestHistogramConservation(t *testing.T) {
	features := mat.NewDense(6, 1, []float64{0.5, 1.5, 2.5, 3.5, 4.5, 5.5})
	labels := []int{0, 1, 0, 1, 0, 1}
	fm, tm, closeQueue := newTestSearch(t, features, labels, 2, 4, []int{0})
	defer closeQueue()

	nrows, nbins, nlabels := 6, 4, 2
	tm.zeroHistogram(nbins * nlabels)
	tm.seedRanges(0, 1)
	sampleRangesAndGather(fm, tm, nrows, 0, 1)
	histogramUniformColumn(fm, tm, 0, nrows, nbins)
	tm.TransferHistogram(nbins*nlabels, nbins, nlabels)

	// min=0.5, max=5.5, delta=1.25: thresholds 1.75, 3, 4.25, 5.5
	expectedLeft := []int64{2, 3, 4, 6}
	for b := 0; b < nbins; b++ {
		var sum int64
		for l := 0; l < nlabels; l++ {
			sum += readHostCount(t, tm, b, l)
		}
		if sum != expectedLeft[b] {
			t.Errorf("bin %d should count %d rows at or below its threshold, got %d", b, expectedLeft[b], sum)
		}
	}
}

//Per-column conservation must hold independently in the all-columns case.
func TestHistogramConservationAllCols(t *testing.T) {
	features := mat.NewDense(5, 3, []float64{
		1, 10, -1,
		2, 20, -2,
		3, 30, -3,
		4, 40, -4,
		5, 50, -5,
	})
	labels := []int{0, 1, 2, 0, 1}
	fm, tm, closeQueue := newTestSearch(t, features, labels, 3, 4, []int{0, 1, 2})
	defer closeQueue()

	nrows, ncols, nbins, nlabels := 5, 3, 4, 3
	tm.zeroHistogram(ncols * nbins * nlabels)
	tm.seedRanges(0, ncols)
	sampleRangesAndGather(fm, tm, nrows, 0, ncols)
	histogramUniformAllCols(fm, tm, nrows, ncols, nbins)
	tm.TransferHistogram(ncols*nbins*nlabels, ncols, nbins, nlabels)

	for q := 0; q < ncols; q++ {
		var lastBinSum int64
		for l := 0; l < nlabels; l++ {
			lastBinSum += readHostCount(t, tm, q, nbins-1, l)
		}
		if lastBinSum != int64(nrows) {
			t.Errorf("column %d: the last bin should account for all %d rows, got %d", q, nrows, lastBinSum)
		}
	}
}

//The threshold attached to a winning global-quantile question must equal the
//table value at original_column_id*nbins+bin_id, read back exactly.
func TestQuantileRoundTrip(t *testing.T) {
	features := mat.NewDense(4, 2, []float64{
		9, 1,
		9, 2,
		9, 3,
		9, 4,
	})
	labels := []int{0, 0, 1, 1}
	fm, tm, closeQueue := newTestSearch(t, features, labels, 2, 2, []int{1})
	defer closeQueue()

	// rows of the table: original column 0 (unused), original column 1
	tm.QuantileTable = tensor.New(tensor.WithShape(4), tensor.WithBacking([]float64{99, 999, 2.5, 4.0}))

	parent := NewGiniInfo(2)
	parent.InitFromRows(fm, tm.RowIDs)

	left, right := NewGiniInfo(2), NewGiniInfo(2)
	result, err := FindBestSplit(fm, tm, SearchConfig{Algo: SplitQuantileGlobal, NBins: 2}, 0, parent, left, right)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Found {
		t.Fatal("a split should be found")
	}
	if result.Question.OriginalColumn != 1 || result.Question.BinID != 0 {
		t.Fatalf("the first threshold of original column 1 should win, got column %d bin %d",
			result.Question.OriginalColumn, result.Question.BinID)
	}

	element, err := tm.QuantileTable.At(result.Question.OriginalColumn*2 + result.Question.BinID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Question.Threshold != element.(float64) {
		t.Errorf("the question threshold %v should equal the table value %v",
			result.Question.Threshold, element.(float64))
	}
	if result.Question.Threshold != 2.5 {
		t.Errorf("the winning threshold should be 2.5, got %v", result.Question.Threshold)
	}
}

//The all-columns pass must honor the same global-quantile contract as the
//single-column one: every sampled column is binned against its own run of
//thresholds at original_column_id*nbins, the winning threshold is read back
//exactly, and the children complement the parent. A constant column whose
//thresholds put every row on the left is skipped by the reducer.
func TestQuantileAllColsGlobal(t *testing.T) {
	features := mat.NewDense(4, 3, []float64{
		9, 1, 5,
		9, 2, 5,
		9, 3, 5,
		9, 4, 5,
	})
	labels := []int{0, 0, 1, 1}
	fm, tm, closeQueue := newTestSearch(t, features, labels, 2, 2, []int{1, 2})
	defer closeQueue()

	// one run of thresholds per original column
	tm.QuantileTable = tensor.New(tensor.WithShape(6),
		tensor.WithBacking([]float64{99, 999, 2.5, 4.0, 5.0, 5.0}))

	parent := NewGiniInfo(2)
	parent.InitFromRows(fm, tm.RowIDs)

	left, right := NewGiniInfo(2), NewGiniInfo(2)
	result, err := FindBestSplitAllCols(fm, tm, SearchConfig{Algo: SplitQuantileGlobal, NBins: 2}, parent, left, right)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Found {
		t.Fatal("a split should be found")
	}
	if result.Question.ColumnIndex != 0 || result.Question.OriginalColumn != 1 || result.Question.BinID != 0 {
		t.Fatalf("the first threshold of original column 1 should win, got %+v", result.Question)
	}

	element, err := tm.QuantileTable.At(result.Question.OriginalColumn*2 + result.Question.BinID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Question.Threshold != element.(float64) || result.Question.Threshold != 2.5 {
		t.Errorf("the question threshold %v should equal the table value 2.5", result.Question.Threshold)
	}
	if result.Gain != 0.5 {
		t.Errorf("the perfect split should gain 0.5, got %v", result.Gain)
	}
	for l := 0; l < 2; l++ {
		if left.Hist[l]+right.Hist[l] != parent.Hist[l] {
			t.Errorf("label %d: the children should complement the parent, got %d+%d against %d",
				l, left.Hist[l], right.Hist[l], parent.Hist[l])
		}
	}
	// the last threshold of each sampled column covers its full value range
	for q := 0; q < 2; q++ {
		var lastBinSum int64
		for l := 0; l < 2; l++ {
			lastBinSum += readHostCount(t, tm, q, 1, l)
		}
		if lastBinSum != 4 {
			t.Errorf("column %d: the last bin should account for all 4 rows, got %d", q, lastBinSum)
		}
	}
}

//In local mode the all-columns pass indexes the table by sampled position:
//a table holding only the sampled columns' thresholds is sufficient.
func TestQuantileAllColsLocalOffset(t *testing.T) {
	features := mat.NewDense(4, 3, []float64{
		9, 1, 5,
		9, 2, 5,
		9, 3, 5,
		9, 4, 5,
	})
	labels := []int{0, 0, 1, 1}
	fm, tm, closeQueue := newTestSearch(t, features, labels, 2, 2, []int{1, 2})
	defer closeQueue()

	// runs of thresholds for sampled positions 0 and 1
	tm.QuantileTable = tensor.New(tensor.WithShape(4),
		tensor.WithBacking([]float64{2.5, 4.0, 5.0, 5.0}))

	parent := NewGiniInfo(2)
	parent.InitFromRows(fm, tm.RowIDs)

	left, right := NewGiniInfo(2), NewGiniInfo(2)
	result, err := FindBestSplitAllCols(fm, tm, SearchConfig{Algo: SplitQuantileLocal, NBins: 2}, parent, left, right)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Found || result.Question.ColumnIndex != 0 || result.Question.Threshold != 2.5 {
		t.Fatalf("sampled position 0 should win with threshold 2.5, got %+v", result.Question)
	}
	if result.Gain != 0.5 {
		t.Errorf("the perfect split should gain 0.5, got %v", result.Gain)
	}
}

//Local-quantile mode offsets the table by the sampled column position, not
//by the original column id.
func TestQuantileLocalOffset(t *testing.T) {
	features := mat.NewDense(4, 3, []float64{
		9, 9, 1,
		9, 9, 2,
		9, 9, 3,
		9, 9, 4,
	})
	labels := []int{0, 0, 1, 1}
	fm, tm, closeQueue := newTestSearch(t, features, labels, 2, 2, []int{2})
	defer closeQueue()

	// one shared run of thresholds for sampled position 0
	tm.QuantileTable = tensor.New(tensor.WithShape(2), tensor.WithBacking([]float64{2.5, 4.0}))

	parent := NewGiniInfo(2)
	parent.InitFromRows(fm, tm.RowIDs)

	left, right := NewGiniInfo(2), NewGiniInfo(2)
	result, err := FindBestSplit(fm, tm, SearchConfig{Algo: SplitQuantileLocal, NBins: 2}, 0, parent, left, right)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Found || result.Question.Threshold != 2.5 {
		t.Fatalf("the local table should supply threshold 2.5, got %+v", result.Question)
	}
	if result.Gain != 0.5 {
		t.Errorf("the perfect split should gain 0.5, got %v", result.Gain)
	}
}
