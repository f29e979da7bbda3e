package gsl

import (
	"log"
	"math"
	"sync/atomic"
)

//assertCapacity is the capacity assertion of every histogram builder: the
//group-local scratch is partitioned by label, so the number of distinct
//labels must not exceed the per-group worker count. The public engine
//rejects such configurations with a recoverable error before dispatch;
//hitting this check means a kernel was driven directly with an invalid
//problem instance.
func assertCapacity(nlabels int) {
	if nlabels > GroupSize {
		log.Panicf("%d distinct labels exceed the group capacity %d", nlabels, GroupSize)
	}
}

//histogramUniformColumn buckets every selected row of one sampled column into
//nbins uniformly spaced thresholds per class label. The thresholds are
//min+delta, ..., min+nbins*delta with delta=(max-min)/nbins, taken from the
//range pair the sampler filled for this column. A row falls into bucket b
//when its value is less than or equal to the b-th threshold, so one row
//contributes to every bucket whose threshold it does not exceed.
//
//Counts are first accumulated in a group-local arena of nlabels*nbins plain
//counters and then folded into the global accumulator with atomic adds; the
//two levels bound the contention on the shared buffer.
func histogramUniformColumn(fm *FeatureMatrix, tm *TemporaryMemory, col, nrows, nbins int) {
	nlabels := fm.NLabels
	assertCapacity(nlabels)

	colMin, colMax := tm.ColumnRange(col)
	delta := (colMax - colMin) / float64(nbins)
	staged := tm.SampledCols[col*nrows : col*nrows+nrows]

	gridSize := gridFor(nrows)
	runGrid(gridSize, func(first, limit int) {
		scratch := make([]int64, nbins*nlabels)
		for worker := first; worker < limit; worker++ {
			for row := worker; row < nrows; row += gridSize {
				value := staged[row]
				label := fm.Labels[tm.RowIDs[row]]
				for b := 0; b < nbins; b++ {
					if value <= colMin+float64(b+1)*delta {
						scratch[b*nlabels+label]++
					}
				}
			}
		}
		mergeScratch(tm.DeviceHist, scratch)
	})
}

//histogramUniformAllCols evaluates every sampled column against its own
//nbins uniform thresholds in one pass. The accumulator is laid out as
//[ncols][nbins][nlabels].
func histogramUniformAllCols(fm *FeatureMatrix, tm *TemporaryMemory, nrows, ncols, nbins int) {
	nlabels := fm.NLabels
	assertCapacity(nlabels)

	total := nrows * ncols
	gridSize := gridFor(total)
	runGrid(gridSize, func(first, limit int) {
		scratch := make([]int64, ncols*nbins*nlabels)
		for worker := first; worker < limit; worker++ {
			for cell := worker; cell < total; cell += gridSize {
				col := cell / nrows
				row := cell % nrows
				colMin, colMax := tm.ColumnRange(col)
				delta := (colMax - colMin) / float64(nbins)
				value := tm.SampledCols[col*nrows+row]
				label := fm.Labels[tm.RowIDs[row]]
				base := (col*nbins)*nlabels + label
				for b := 0; b < nbins; b++ {
					if value <= colMin+float64(b+1)*delta {
						scratch[base+b*nlabels]++
					}
				}
			}
		}
		mergeScratch(tm.DeviceHist, scratch)
	})
}

//histogramQuantileColumn is the quantile-binning variant for one sampled
//column: the nbins thresholds come from the precomputed flat table. In
//global mode the table is offset by the original (pre-bootstrap) column id,
//in local mode by the sampled column position.
func histogramQuantileColumn(fm *FeatureMatrix, tm *TemporaryMemory, col, nrows, nbins int, global bool) {
	nlabels := fm.NLabels
	assertCapacity(nlabels)

	quantiles := tm.quantileData()
	offset := quantileOffset(tm, col, nbins, global)
	staged := tm.SampledCols[col*nrows : col*nrows+nrows]

	gridSize := gridFor(nrows)
	runGrid(gridSize, func(first, limit int) {
		scratch := make([]int64, nbins*nlabels)
		for worker := first; worker < limit; worker++ {
			for row := worker; row < nrows; row += gridSize {
				value := staged[row]
				label := fm.Labels[tm.RowIDs[row]]
				for b := 0; b < nbins; b++ {
					if value <= quantiles[offset+b] {
						scratch[b*nlabels+label]++
					}
				}
			}
		}
		mergeScratch(tm.DeviceHist, scratch)
	})
}

//histogramQuantileAllCols evaluates every sampled column against its
//quantile thresholds in one pass, accumulator laid out as
//[ncols][nbins][nlabels].
func histogramQuantileAllCols(fm *FeatureMatrix, tm *TemporaryMemory, nrows, ncols, nbins int, global bool) {
	nlabels := fm.NLabels
	assertCapacity(nlabels)

	quantiles := tm.quantileData()

	total := nrows * ncols
	gridSize := gridFor(total)
	runGrid(gridSize, func(first, limit int) {
		scratch := make([]int64, ncols*nbins*nlabels)
		for worker := first; worker < limit; worker++ {
			for cell := worker; cell < total; cell += gridSize {
				col := cell / nrows
				row := cell % nrows
				offset := quantileOffset(tm, col, nbins, global)
				value := tm.SampledCols[col*nrows+row]
				label := fm.Labels[tm.RowIDs[row]]
				base := (col*nbins)*nlabels + label
				for b := 0; b < nbins; b++ {
					if value <= quantiles[offset+b] {
						scratch[base+b*nlabels]++
					}
				}
			}
		}
		mergeScratch(tm.DeviceHist, scratch)
	})
}

//quantileOffset locates the threshold run of a sampled column inside the
//flat quantile table.
func quantileOffset(tm *TemporaryMemory, col, nbins int, global bool) int {
	if global {
		return tm.ColIDs[col] * nbins
	}
	return col * nbins
}

//mergeScratch folds a group-local arena into the global accumulator with
//atomic adds. Zero counters are skipped to spare the shared cache lines.
func mergeScratch(global []int64, scratch []int64) {
	for i, c := range scratch {
		if c != 0 {
			atomic.AddInt64(&global[i], c)
		}
	}
}

//uniformThreshold reconstructs the b-th uniform threshold of a column from
//its (min, max) range: min+(b+1)*delta with delta=(max-min)/nbins.
func uniformThreshold(colMin, colMax float64, bin, nbins int) float64 {
	delta := (colMax - colMin) / float64(nbins)
	return colMin + float64(bin+1)*delta
}

//sentinelRange is the pair of extreme representable values a uniform-binning
//question carries instead of concrete ranges.
func sentinelRange() (min, max float64) {
	return math.MaxFloat64, -math.MaxFloat64
}
