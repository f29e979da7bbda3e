package gsl

import "math"

//sampleRangesAndGather is the range/column sampler kernel. Over the colCount
//sampled columns starting at position colStart it computes the per-column
//minimum and maximum across exactly the selected rows and materializes the
//dense column-major staging buffer for the histogram builders.
//
//Each worker visits a strided subset of the colCount*nrows output cells;
//extrema are first collected in a group-local scratch and then merged into
//the global (min, max) pairs with compare-and-swap once the group's workers
//have finished. The global pairs must be seeded with the extreme
//representable values beforehand.
func sampleRangesAndGather(fm *FeatureMatrix, tm *TemporaryMemory, nrows, colStart, colCount int) {
	total := colCount * nrows
	gridSize := gridFor(total)

	runGrid(gridSize, func(first, limit int) {
		scratchMin := make([]float64, colCount)
		scratchMax := make([]float64, colCount)
		for q := 0; q < colCount; q++ {
			scratchMin[q] = math.MaxFloat64
			scratchMax[q] = -math.MaxFloat64
		}

		for worker := first; worker < limit; worker++ {
			for cell := worker; cell < total; cell += gridSize {
				localCol := cell / nrows
				row := cell % nrows
				col := colStart + localCol
				value := fm.At(tm.RowIDs[row], tm.ColIDs[col])
				tm.SampledCols[col*nrows+row] = value
				if value < scratchMin[localCol] {
					scratchMin[localCol] = value
				}
				if value > scratchMax[localCol] {
					scratchMax[localCol] = value
				}
			}
		}

		for q := 0; q < colCount; q++ {
			if scratchMin[q] != math.MaxFloat64 {
				atomicMinFloat64(&tm.MinMax[2*(colStart+q)], scratchMin[q])
			}
			if scratchMax[q] != -math.MaxFloat64 {
				atomicMaxFloat64(&tm.MinMax[2*(colStart+q)+1], scratchMax[q])
			}
		}
	})
}

//gatherSampledColumns fills the staging buffer without touching the range
//pairs. Quantile-binning searches use it: they do not need min/max but still
//histogram from the dense staging buffer.
func gatherSampledColumns(fm *FeatureMatrix, tm *TemporaryMemory, nrows, colStart, colCount int) {
	total := colCount * nrows
	gridSize := gridFor(total)

	runGrid(gridSize, func(first, limit int) {
		for worker := first; worker < limit; worker++ {
			for cell := worker; cell < total; cell += gridSize {
				col := colStart + cell/nrows
				row := cell % nrows
				tm.SampledCols[col*nrows+row] = fm.At(tm.RowIDs[row], tm.ColIDs[col])
			}
		}
	})
}
