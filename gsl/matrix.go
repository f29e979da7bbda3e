package gsl

import (
	"log"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//FeatureMatrix holds the dense feature block in column-major order together
//with one integer class label per row. The flat buffer keeps a fixed stride
//of rowOffset values between the starts of consecutive columns.
type FeatureMatrix struct {
	data      []float64
	rowOffset int
	nrows     int
	ncols     int

	Labels  []int
	NLabels int
}

//NewFeatureMatrix repacks a gonum dense matrix into the column-major layout
//the kernels expect and attaches the label vector. nlabels is the number of
//distinct class ids; every label must lie in [0, nlabels).
func NewFeatureMatrix(features *mat.Dense, labels []int, nlabels int) *FeatureMatrix {
	nrows, ncols := features.Dims()
	fm := &FeatureMatrix{
		data:      make([]float64, nrows*ncols),
		rowOffset: nrows,
		nrows:     nrows,
		ncols:     ncols,
		Labels:    labels,
		NLabels:   nlabels,
	}
	for q := 0; q < ncols; q++ {
		for p := 0; p < nrows; p++ {
			fm.data[q*fm.rowOffset+p] = features.At(p, q)
		}
	}
	fm.validatedDimensions()
	return fm
}

//At returns the value at (row, col) of the full matrix.
func (fm *FeatureMatrix) At(row, col int) float64 {
	return fm.data[col*fm.rowOffset+row]
}

//Dims returns the number of rows and columns of the full matrix.
func (fm *FeatureMatrix) Dims() (nrows, ncols int) {
	return fm.nrows, fm.ncols
}

//validatedDimensions checks the consistency of the feature block and the
//label vector and returns the height and the width of the matrix.
func (fm *FeatureMatrix) validatedDimensions() (h, w int) {
	h, w = fm.nrows, fm.ncols
	if len(fm.Labels) != h {
		log.Panicf("the label height %d is not equal to the feature height %d", len(fm.Labels), h)
	}
	if fm.NLabels < 1 {
		log.Panicf("the number of distinct labels should be positive, not %d", fm.NLabels)
	}
	for p, label := range fm.Labels {
		if label < 0 || label >= fm.NLabels {
			log.Panicf("label %d of row %d is outside [0, %d)", label, p, fm.NLabels)
		}
	}
	return h, w
}

//ReadFeatureMatrix reads the feature block and the label vector from two npy
//files and unites them into one FeatureMatrix object.
func ReadFeatureMatrix(fileNameFeatures, fileNameLabels string) *FeatureMatrix {
	log.Print("\ttry to load features <", fileNameFeatures, ">")
	features := ReadNpy(fileNameFeatures)
	log.Print("\ttry to load labels <", fileNameLabels, ">")
	rawLabels := ReadNpy(fileNameLabels)

	h, _ := rawLabels.Dims()
	labels := make([]int, h)
	nlabels := 0
	for p := 0; p < h; p++ {
		labels[p] = int(rawLabels.At(p, 0))
		if labels[p]+1 > nlabels {
			nlabels = labels[p] + 1
		}
	}

	return NewFeatureMatrix(features, labels, nlabels)
}

//ReadQuantileTable reads a precomputed quantile table from an npy file of
//shape (ncols, nbins) and flattens it into the row-major layout the quantile
//builders index with column*nbins+bin.
func ReadQuantileTable(fileName string) *tensor.Dense {
	table := ReadNpy(fileName)
	h, w := table.Dims()
	flat := make([]float64, h*w)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			flat[p*w+q] = table.At(p, q)
		}
	}
	return tensor.New(tensor.WithShape(h*w), tensor.WithBacking(flat))
}

//ReadNpy reads the content of npy file
func ReadNpy(fileName string) (denseMat *mat.Dense) {
	f, err := os.Open(fileName)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { HandleError(f.Close()) }()

	r, err := npyio.NewReader(f)
	if err != nil {
		log.Fatal(err)
	}

	denseMat = &mat.Dense{}
	HandleError(r.Read(denseMat))
	return
}
