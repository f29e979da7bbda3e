package gsl

import (
	"github.com/pkg/errors"
)

//SplitAlgo selects the binning strategy of a split search.
type SplitAlgo int

const (
	//SplitMinMax bins each column into uniformly spaced thresholds derived
	//from its observed min/max range.
	SplitMinMax SplitAlgo = iota
	//SplitQuantileLocal takes thresholds from the quantile table indexed by
	//the sampled column position.
	SplitQuantileLocal
	//SplitQuantileGlobal takes thresholds from the quantile table indexed by
	//the original (pre-bootstrap) column id.
	SplitQuantileGlobal
)

//SearchConfig is the binning configuration supplied by the caller.
type SearchConfig struct {
	Algo  SplitAlgo
	NBins int
}

//SearchResult is the outcome of one split search. When Found is false no
//candidate improved on zero gain: the question carries -1 sentinels for
//ColumnIndex and BinID, Gain is 0, the left/right records are untouched and
//the caller must treat the node as a leaf without reading any other
//question field.
type SearchResult struct {
	Found    bool
	Gain     float64
	Question GiniQuestion
}

//noSplit is the sentinel result of a search that found nothing.
func noSplit(nbins, ncols int) SearchResult {
	return SearchResult{
		Question: GiniQuestion{ColumnIndex: -1, OriginalColumn: -1, BinID: -1, NBins: nbins, NCols: ncols},
	}
}

//validateSearch rejects invalid problem instances before anything is
//dispatched. These are configuration violations, not runtime conditions:
//inside the kernels the same limits remain fatal assertions.
//
//The search scans the colCount sampled positions starting at colStart. The
//staging and range buffers are addressed by absolute sampled position, so
//they must cover colStart+colCount columns; the accumulator is always
//written from flat index 0, so it only needs colCount histogram batches.
func validateSearch(fm *FeatureMatrix, tm *TemporaryMemory, cfg SearchConfig, nrows, colStart, colCount int) error {
	if cfg.NBins < 1 {
		return errors.Errorf("the number of bins should be positive, not %d", cfg.NBins)
	}
	if fm.NLabels > GroupSize {
		return errors.Errorf("%d distinct labels exceed the worker-group capacity %d", fm.NLabels, GroupSize)
	}
	if nrows == 0 {
		return errors.New("the row id list of the node is empty")
	}
	if tm.Queue == nil {
		return errors.New("the scratch handle carries no execution queue")
	}
	ncols := colStart + colCount
	if len(tm.ColIDs) < ncols {
		return errors.Errorf("the column id list holds %d entries, %d are needed", len(tm.ColIDs), ncols)
	}
	if need := colCount * cfg.NBins * fm.NLabels; len(tm.DeviceHist) < need {
		return errors.Errorf("the histogram accumulator holds %d counters, %d are needed", len(tm.DeviceHist), need)
	}
	if need := ncols * nrows; len(tm.SampledCols) < need {
		return errors.Errorf("the staging buffer holds %d cells, %d are needed", len(tm.SampledCols), need)
	}
	if len(tm.MinMax) < 2*ncols {
		return errors.Errorf("the range buffer holds %d pairs, %d are needed", len(tm.MinMax)/2, ncols)
	}
	if cfg.Algo != SplitMinMax {
		if tm.QuantileTable == nil {
			return errors.New("quantile binning requires a precomputed quantile table")
		}
		tableLen := len(tm.quantileData())
		global := cfg.Algo == SplitQuantileGlobal
		for col := colStart; col < ncols; col++ {
			if need := quantileOffset(tm, col, cfg.NBins, global) + cfg.NBins; tableLen < need {
				return errors.Errorf("the quantile table holds %d thresholds, %d are needed", tableLen, need)
			}
		}
	}
	return nil
}

//FindBestSplit searches the single sampled column at position col for the
//threshold with the largest information gain. It zeroes the accumulator,
//dispatches the sampler (uniform binning only; quantile binning skips the
//range computation but still gathers the dense staging buffer) and the
//histogram builder onto the scratch handle's queue, transfers the counts to
//the host mirror, synchronizes the queue and reduces the histograms on the
//host path.
//
//On success the left and right impurity records of the parent's triple are
//populated and the question identifies the winning bin. Uniform questions
//echo the observed column range and keep a zero threshold placeholder;
//quantile questions carry the threshold value read back from the table.
func FindBestSplit(fm *FeatureMatrix, tm *TemporaryMemory, cfg SearchConfig, col int, parent, left, right *GiniInfo) (SearchResult, error) {
	nrows := len(tm.RowIDs)
	if err := validateSearch(fm, tm, cfg, nrows, col, 1); err != nil {
		return SearchResult{}, errors.Wrap(err, "single-column split search")
	}

	nbins, nlabels := cfg.NBins, fm.NLabels
	histLen := nbins * nlabels
	tm.zeroHistogram(histLen)

	q := tm.Queue
	if cfg.Algo == SplitMinMax {
		tm.seedRanges(col, 1)
		q.Submit(func() { sampleRangesAndGather(fm, tm, nrows, col, 1) })
		q.Submit(func() { histogramUniformColumn(fm, tm, col, nrows, nbins) })
	} else {
		global := cfg.Algo == SplitQuantileGlobal
		q.Submit(func() { gatherSampledColumns(fm, tm, nrows, col, 1) })
		q.Submit(func() { histogramQuantileColumn(fm, tm, col, nrows, nbins, global) })
	}
	q.Submit(func() { tm.TransferHistogram(histLen, nbins, nlabels) })
	q.Sync()

	bestBin, gain := reduceColumn(tm, parent, left, right, nrows, nbins, nlabels)
	if bestBin < 0 {
		return noSplit(nbins, 1), nil
	}

	result := SearchResult{Found: true, Gain: gain}
	result.Question = GiniQuestion{
		ColumnIndex:    col,
		OriginalColumn: tm.ColIDs[col],
		BinID:          bestBin,
		NBins:          nbins,
		NCols:          1,
	}
	if cfg.Algo == SplitMinMax {
		result.Question.RangeMin, result.Question.RangeMax = tm.ColumnRange(col)
	} else {
		result.Question.Threshold = readbackThreshold(tm, cfg, col, bestBin)
	}
	return result, nil
}

//FindBestSplitAllCols searches every sampled column in one pass and selects
//the best (column, bin) pair. The orchestration matches FindBestSplit with
//the all-columns builder and reducer; uniform questions carry the extreme
//sentinel range, since the caller re-derives the concrete threshold from the
//bin id and the ranges recorded during histogram building.
func FindBestSplitAllCols(fm *FeatureMatrix, tm *TemporaryMemory, cfg SearchConfig, parent, left, right *GiniInfo) (SearchResult, error) {
	nrows, ncols := len(tm.RowIDs), len(tm.ColIDs)
	if err := validateSearch(fm, tm, cfg, nrows, 0, ncols); err != nil {
		return SearchResult{}, errors.Wrap(err, "all-columns split search")
	}

	nbins, nlabels := cfg.NBins, fm.NLabels
	histLen := ncols * nbins * nlabels
	tm.zeroHistogram(histLen)

	q := tm.Queue
	if cfg.Algo == SplitMinMax {
		tm.seedRanges(0, ncols)
		q.Submit(func() { sampleRangesAndGather(fm, tm, nrows, 0, ncols) })
		q.Submit(func() { histogramUniformAllCols(fm, tm, nrows, ncols, nbins) })
	} else {
		global := cfg.Algo == SplitQuantileGlobal
		q.Submit(func() { gatherSampledColumns(fm, tm, nrows, 0, ncols) })
		q.Submit(func() { histogramQuantileAllCols(fm, tm, nrows, ncols, nbins, global) })
	}
	q.Submit(func() { tm.TransferHistogram(histLen, ncols, nbins, nlabels) })
	q.Sync()

	bestCol, bestBin, gain := reduceAllCols(tm, parent, left, right, nrows, ncols, nbins, nlabels)
	if bestCol < 0 {
		return noSplit(nbins, ncols), nil
	}

	result := SearchResult{Found: true, Gain: gain}
	result.Question = GiniQuestion{
		ColumnIndex:    bestCol,
		OriginalColumn: tm.ColIDs[bestCol],
		BinID:          bestBin,
		NBins:          nbins,
		NCols:          ncols,
	}
	if cfg.Algo == SplitMinMax {
		result.Question.RangeMin, result.Question.RangeMax = sentinelRange()
	} else {
		result.Question.Threshold = readbackThreshold(tm, cfg, bestCol, bestBin)
	}
	return result, nil
}

//readbackThreshold fetches the winning threshold value from the quantile
//table with a single synchronous read-back.
func readbackThreshold(tm *TemporaryMemory, cfg SearchConfig, col, bin int) float64 {
	offset := quantileOffset(tm, col, cfg.NBins, cfg.Algo == SplitQuantileGlobal)
	element, err := tm.QuantileTable.At(offset + bin)
	HandleError(err)
	return element.(float64)
}
