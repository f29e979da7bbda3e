package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/goccy/go-graphviz"
	"github.com/parforest/ginisplit/gsl"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	gsl.HandleError(err)
	defer func() { gsl.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	gsl.HandleError(decoder.Decode(out))
}

func splitAlgoByName(name string) gsl.SplitAlgo {
	algo, ok := map[string]gsl.SplitAlgo{
		"minmax":          gsl.SplitMinMax,
		"quantile_local":  gsl.SplitQuantileLocal,
		"quantile_global": gsl.SplitQuantileGlobal,
	}[name]
	if !ok {
		log.Fatalf("unknown split algorithm %q", name)
	}
	return algo
}

type GrowConfig struct {
	FileNameFeatures  string `json:"filename_features"`
	FileNameLabels    string `json:"filename_labels"`
	FileNameQuantiles string `json:"filename_quantiles"`
	FileNameModel     string `json:"filename_model"`
	SplitAlgo         string `json:"split_algo"`
	NBins             int    `json:"nbins"`
	MaxDepth          int    `json:"max_depth"`
	MinRows           int    `json:"min_rows"`
}

func grow(srcConfig string) {
	var growConfig GrowConfig
	decodeConfig(srcConfig, &growConfig)

	fm := gsl.ReadFeatureMatrix(growConfig.FileNameFeatures, growConfig.FileNameLabels)

	params := gsl.TreeParams{
		MaxDepth: growConfig.MaxDepth,
		MinRows:  growConfig.MinRows,
		Config: gsl.SearchConfig{
			Algo:  splitAlgoByName(growConfig.SplitAlgo),
			NBins: growConfig.NBins,
		},
	}
	if growConfig.FileNameQuantiles != "" {
		params.Quantiles = gsl.ReadQuantileTable(growConfig.FileNameQuantiles)
	}

	tree, err := gsl.GrowTree(fm, params)
	gsl.HandleError(err)

	log.Printf("grown a tree of %d nodes and %d leaves", len(tree.TreeNodes), len(tree.LeafNodes))
	tree.Save(growConfig.FileNameModel)
}

type PredictConfig struct {
	FileNameFeatures   string `json:"filename_features"`
	FileNameModel      string `json:"filename_model"`
	FileNamePrediction string `json:"filename_prediction"`
}

func predict(srcConfig string) {
	var predictConfig PredictConfig
	decodeConfig(srcConfig, &predictConfig)

	features := gsl.ReadNpy(predictConfig.FileNameFeatures)
	tree := gsl.LoadTree(predictConfig.FileNameModel)

	classes := tree.Predict(features)
	prediction := mat.NewDense(len(classes), 1, nil)
	for p, class := range classes {
		prediction.Set(p, 0, float64(class))
	}

	dst, err := os.Create(predictConfig.FileNamePrediction)
	gsl.HandleError(err)
	defer func() { gsl.HandleError(dst.Close()) }()
	gsl.HandleError(npyio.Write(dst, prediction))
}

type GraphConfig struct {
	FileNameModel  string `json:"filename_model"`
	FigureType     string `json:"figure_type"`
	FileNameFigure string `json:"filename_figure"`
}

func graph(srcConfig string) {
	var graphConfig GraphConfig
	decodeConfig(srcConfig, &graphConfig)

	graphvizType := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[graphConfig.FigureType]

	tree := gsl.LoadTree(graphConfig.FileNameModel)
	graphViz, renderedGraph := tree.DrawGraph()
	gsl.HandleError(graphViz.RenderFilename(renderedGraph, graphvizType, graphConfig.FileNameFigure))
}

func main() {
	runMode := flag.String("mode", "grow", "you can select either 'grow', 'predict' or 'graph' modes")
	config := flag.String("config", "split_config.json", "a config file for the run of the program")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")

	flag.Parse()

	map[string]func(string){
		"grow":    grow,
		"predict": predict,
		"graph":   graph,
	}[*runMode](*config)

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		gsl.HandleError(err)
		defer func() { gsl.HandleError(f.Close()) }()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
	}
}
