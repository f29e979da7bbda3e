package gsl

import (
	"log"
)

//giniEps absorbs floating-point rounding in the impurity consistency check.
const giniEps = 1e-9

//GiniInfo carries the impurity statistics of one node partition: the Gini
//impurity of the partition and its per-label row counts. The sum of the
//histogram equals the row count of the partition. The caller fills the
//parent record before a search; the left and right records are populated by
//the search as its single observable effect.
type GiniInfo struct {
	BestGini float64
	Hist     []int64
}

//NewGiniInfo creates an empty impurity record for nlabels distinct classes.
func NewGiniInfo(nlabels int) *GiniInfo {
	return &GiniInfo{Hist: make([]int64, nlabels)}
}

//InitFromRows fills the record with the label histogram and the impurity of
//the given row subset. It is how the caller prepares the parent record.
func (gi *GiniInfo) InitFromRows(fm *FeatureMatrix, rows []int) {
	if len(gi.Hist) != fm.NLabels {
		gi.Hist = make([]int64, fm.NLabels)
	}
	for i := range gi.Hist {
		gi.Hist[i] = 0
	}
	for _, row := range rows {
		gi.Hist[fm.Labels[row]]++
	}
	gi.BestGini = giniOf(gi.Hist, int64(len(rows)))
}

//GiniQuestion identifies a candidate or chosen split. Exactly one binning
//mode's fields are meaningful: uniform questions carry the sampled column's
//range (or the extreme sentinels in the all-columns variant) and a zero
//threshold placeholder, quantile questions carry the concrete threshold
//value read back from the quantile table.
type GiniQuestion struct {
	ColumnIndex    int
	OriginalColumn int
	BinID          int
	NBins          int
	NCols          int
	RangeMin       float64
	RangeMax       float64
	Threshold      float64
}

//giniOf computes the Gini impurity 1 - sum of squared label fractions of a
//partition. An empty partition defaults to the maximal impurity 1, which can
//never win against the gain floor of 0. A result outside [0, 1] indicates a
//counting bug upstream and interrupts the process.
func giniOf(counts []int64, total int64) float64 {
	if total == 0 {
		return 1.0
	}
	gini := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		gini -= p * p
	}
	if gini < -giniEps || gini > 1.0+giniEps {
		log.Panicf("gini impurity %v is outside [0, 1]", gini)
	}
	return gini
}

//hostBinCounts reads the per-label counts of one histogram bin from the
//host mirror. coords addresses the bin: (bin) for single-column mirrors,
//(col, bin) for all-columns mirrors; the label dimension is innermost.
func hostBinCounts(tm *TemporaryMemory, dst []int64, coords ...int) {
	at := make([]int, len(coords)+1)
	copy(at, coords)
	for label := range dst {
		at[len(coords)] = label
		element, err := tm.HostHist.At(at...)
		HandleError(err)
		dst[label] = element.(int64)
	}
}

//reduceColumn scans the nbins histogram batch of one column and selects the
//bin with the largest information gain over the parent impurity. The best
//gain starts at 0, so a split with non-positive gain is never selected, and
//the comparison is strict: the first bin achieving the maximum wins and
//later ties do not overwrite it. An empty partition keeps the default
//impurity of 1 and therefore cannot win.
//
//When a bin wins, the left record receives the bin's per-label counts and
//impurity; the right histogram is derived as the parent histogram minus the
//left one, never recomputed from rows. The returned bin is -1 when no bin
//improved on zero gain.
func reduceColumn(tm *TemporaryMemory, parent, left, right *GiniInfo, nrows, nbins, nlabels int) (bestBin int, bestGain float64) {
	bestBin = -1
	binCounts := make([]int64, nlabels)
	bestLeft := make([]int64, nlabels)
	var bestGiniLeft, bestGiniRight float64

	total := int64(nrows)
	for b := 0; b < nbins; b++ {
		hostBinCounts(tm, binCounts, b)

		var leftCount int64
		for _, c := range binCounts {
			leftCount += c
		}
		rightCount := total - leftCount

		giniLeft := giniOf(binCounts, leftCount)
		giniRight := giniRightOf(parent, binCounts, rightCount, nlabels)

		impurity := float64(leftCount)/float64(total)*giniLeft +
			float64(rightCount)/float64(total)*giniRight
		gain := parent.BestGini - impurity
		if gain > bestGain {
			bestGain = gain
			bestBin = b
			copy(bestLeft, binCounts)
			bestGiniLeft, bestGiniRight = giniLeft, giniRight
		}
	}

	if bestBin >= 0 {
		publishPartitions(parent, left, right, bestLeft, bestGiniLeft, bestGiniRight, nlabels)
	}
	return bestBin, bestGain
}

//reduceAllCols scans the histogram batches of every sampled column and
//selects the best (column, bin) pair. Candidates with an empty side are
//skipped. The tie-break matches reduceColumn: lowest column first, then
//lowest bin. When nothing improves on zero gain both indices stay -1 and
//the left/right records are left untouched; the caller must treat the node
//as a leaf and must not read any other question field.
func reduceAllCols(tm *TemporaryMemory, parent, left, right *GiniInfo, nrows, ncols, nbins, nlabels int) (bestCol, bestBin int, bestGain float64) {
	bestCol, bestBin = -1, -1
	binCounts := make([]int64, nlabels)
	bestLeft := make([]int64, nlabels)
	var bestGiniLeft, bestGiniRight float64

	total := int64(nrows)
	for q := 0; q < ncols; q++ {
		for b := 0; b < nbins; b++ {
			hostBinCounts(tm, binCounts, q, b)

			var leftCount int64
			for _, c := range binCounts {
				leftCount += c
			}
			rightCount := total - leftCount
			if leftCount == 0 || rightCount == 0 {
				continue
			}

			giniLeft := giniOf(binCounts, leftCount)
			giniRight := giniRightOf(parent, binCounts, rightCount, nlabels)

			impurity := float64(leftCount)/float64(total)*giniLeft +
				float64(rightCount)/float64(total)*giniRight
			gain := parent.BestGini - impurity
			if gain > bestGain {
				bestGain = gain
				bestCol, bestBin = q, b
				copy(bestLeft, binCounts)
				bestGiniLeft, bestGiniRight = giniLeft, giniRight
			}
		}
	}

	if bestCol >= 0 {
		publishPartitions(parent, left, right, bestLeft, bestGiniLeft, bestGiniRight, nlabels)
	}
	return bestCol, bestBin, bestGain
}

//giniRightOf computes the impurity of the complement partition from the
//parent histogram and the left counts.
func giniRightOf(parent *GiniInfo, leftCounts []int64, rightCount int64, nlabels int) float64 {
	rightCounts := make([]int64, nlabels)
	for label := 0; label < nlabels; label++ {
		rightCounts[label] = parent.Hist[label] - leftCounts[label]
	}
	return giniOf(rightCounts, rightCount)
}

//publishPartitions copies the winning bin's statistics onto the left and
//right records of the parent's triple.
func publishPartitions(parent, left, right *GiniInfo, bestLeft []int64, giniLeft, giniRight float64, nlabels int) {
	if len(left.Hist) != nlabels {
		left.Hist = make([]int64, nlabels)
	}
	if len(right.Hist) != nlabels {
		right.Hist = make([]int64, nlabels)
	}
	copy(left.Hist, bestLeft)
	for label := 0; label < nlabels; label++ {
		right.Hist[label] = parent.Hist[label] - left.Hist[label]
	}
	left.BestGini = giniLeft
	right.BestGini = giniRight
}
