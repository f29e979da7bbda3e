package gsl

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//TreeNode is a node of a tree. The tree is stored in an array. LeftIndex and
//RightIndex are equal to -1 when the current node is a leaf otherwise they
//contain array indices of children. A leaf node contains LeafIndex that is
//an index of the LeafNodes array.
type TreeNode struct {
	TreeNodeId            int
	FeatureNumber         int
	Threshold             float64
	LeftIndex, RightIndex int // -1, -1 if it is a leaf
	LeafIndex             int // -1 if it is a non-leaf tree node
	NumberOfObjects       int
	Gini                  float64
}

//NewTreeNode creates an empty tree node with leaf sentinels everywhere.
func NewTreeNode() TreeNode {
	return TreeNode{0, -1, 0, -1, -1, -1, 0, 0}
}

//IsLeaf returns whether this node points into the LeafNodes array.
func (node TreeNode) IsLeaf() bool {
	return node.LeafIndex != -1
}

//GraphDescription returns the description of a tree node for tree rendering
//as a graph
func (node TreeNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.NumberOfObjects))
	sb.WriteString(fmt.Sprintln("id: ", node.TreeNodeId))
	sb.WriteString(fmt.Sprintln("gini: ", node.Gini))
	sb.WriteString(fmt.Sprintf("f_%d <= %6.5f", node.FeatureNumber, node.Threshold))
	return sb.String()
}

//LeafNode stores leaf-related information: the predicted class and the class
//distribution of the rows that reached the leaf.
type LeafNode struct {
	LeafNodeId      int
	Class           int
	ClassCounts     []int64
	NumberOfObjects int
}

//GraphDescription returns the description of a leaf node for tree rendering
//as a graph
func (node LeafNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("id: ", node.LeafNodeId))
	sb.WriteString(fmt.Sprintln("class: ", node.Class))
	sb.WriteString(fmt.Sprintln(node.ClassCounts))
	sb.WriteString(fmt.Sprintln(node.NumberOfObjects))
	return sb.String()
}

//newLeafNode creates a leaf from the impurity record of its partition.
func newLeafNode(info *GiniInfo, numberOfObjects int) LeafNode {
	leaf := LeafNode{LeafNodeId: -1, ClassCounts: append([]int64(nil), info.Hist...), NumberOfObjects: numberOfObjects}
	for label, count := range leaf.ClassCounts {
		if count > leaf.ClassCounts[leaf.Class] {
			leaf.Class = label
		}
	}
	return leaf
}

//DecisionTree is a classification tree grown by repeated split searches.
//Growing it is the engine caller's side of the contract: the tree decides
//when to stop, partitions the rows after each split and owns the scratch
//handle; the engine only answers "which (column, threshold) is best here".
type DecisionTree struct {
	NLabels   int
	TreeNodes []TreeNode
	LeafNodes []LeafNode
}

//TreeParams collect the arguments required to grow a tree. Quantiles must
//be set for the quantile binning modes; growing uses all columns, so the
//global and local table layouts coincide.
type TreeParams struct {
	MaxDepth  int
	MinRows   int
	Config    SearchConfig
	Quantiles *tensor.Dense
}

//GrowTree grows a classification tree over all rows and columns of the
//feature matrix. It allocates one queue and one scratch handle and reuses
//them for every node, the way the engine expects its buffers to be borrowed.
func GrowTree(fm *FeatureMatrix, params TreeParams) (*DecisionTree, error) {
	nrows, ncols := fm.Dims()
	if params.MinRows < 2 {
		params.MinRows = 2
	}

	queue := NewQueue()
	defer queue.Close()
	tm := NewTemporaryMemory(nrows, ncols, params.Config.NBins, fm.NLabels, queue)
	tm.QuantileTable = params.Quantiles
	tm.ColIDs = make([]int, ncols)
	for q := 0; q < ncols; q++ {
		tm.ColIDs[q] = q
	}

	rows := make([]int, nrows)
	for p := 0; p < nrows; p++ {
		rows[p] = p
	}

	tree := &DecisionTree{NLabels: fm.NLabels}
	if _, err := tree.growNode(fm, tm, params, rows, 0); err != nil {
		return nil, err
	}
	return tree, nil
}

//growNode builds the subtree over the given row subset and returns the array
//index of its root.
func (tree *DecisionTree) growNode(fm *FeatureMatrix, tm *TemporaryMemory, params TreeParams, rows []int, depth int) (int, error) {
	parent := NewGiniInfo(fm.NLabels)
	parent.InitFromRows(fm, rows)

	nodeId := len(tree.TreeNodes)
	node := NewTreeNode()
	node.TreeNodeId = nodeId
	node.NumberOfObjects = len(rows)
	node.Gini = parent.BestGini
	tree.TreeNodes = append(tree.TreeNodes, node)

	if depth < params.MaxDepth && len(rows) >= params.MinRows && parent.BestGini > 0 {
		tm.RowIDs = rows
		left, right := NewGiniInfo(fm.NLabels), NewGiniInfo(fm.NLabels)
		result, err := FindBestSplitAllCols(fm, tm, params.Config, parent, left, right)
		if err != nil {
			return -1, err
		}
		if result.Found {
			threshold := resolveThreshold(tm, params.Config, result.Question)
			leftRows, rightRows := partitionRows(fm, rows, result.Question.OriginalColumn, threshold)

			tree.TreeNodes[nodeId].FeatureNumber = result.Question.OriginalColumn
			tree.TreeNodes[nodeId].Threshold = threshold

			leftId, err := tree.growNode(fm, tm, params, leftRows, depth+1)
			if err != nil {
				return -1, err
			}
			tree.TreeNodes[nodeId].LeftIndex = leftId

			rightId, err := tree.growNode(fm, tm, params, rightRows, depth+1)
			if err != nil {
				return -1, err
			}
			tree.TreeNodes[nodeId].RightIndex = rightId

			return nodeId, nil
		}
	}

	leaf := newLeafNode(parent, len(rows))
	leaf.LeafNodeId = len(tree.LeafNodes)
	tree.TreeNodes[nodeId].LeafIndex = leaf.LeafNodeId
	tree.LeafNodes = append(tree.LeafNodes, leaf)
	return nodeId, nil
}

//resolveThreshold turns a winning question into a concrete cut value.
//Quantile questions already carry it; uniform questions are re-derived from
//the bin id and the column range, either the one echoed on the question or,
//when the question carries the extreme sentinels, the one recorded in the
//scratch handle during histogram building.
func resolveThreshold(tm *TemporaryMemory, cfg SearchConfig, question GiniQuestion) float64 {
	if cfg.Algo != SplitMinMax {
		return question.Threshold
	}
	colMin, colMax := question.RangeMin, question.RangeMax
	if colMin > colMax {
		colMin, colMax = tm.ColumnRange(question.ColumnIndex)
	}
	return uniformThreshold(colMin, colMax, question.BinID, question.NBins)
}

//partitionRows splits a row subset by the "value <= threshold goes left"
//relation the histograms were counted with.
func partitionRows(fm *FeatureMatrix, rows []int, col int, threshold float64) (left, right []int) {
	for _, row := range rows {
		if fm.At(row, col) <= threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return left, right
}

//Predict walks the tree for every row of the dense feature block and returns
//the predicted class ids.
func (tree *DecisionTree) Predict(features *mat.Dense) []int {
	h, _ := features.Dims()
	prediction := make([]int, h)
	for p := 0; p < h; p++ {
		ind := 0
		for tree.TreeNodes[ind].LeafIndex == -1 {
			if features.At(p, tree.TreeNodes[ind].FeatureNumber) <= tree.TreeNodes[ind].Threshold {
				ind = tree.TreeNodes[ind].LeftIndex
			} else {
				ind = tree.TreeNodes[ind].RightIndex
			}
		}
		prediction[p] = tree.LeafNodes[tree.TreeNodes[ind].LeafIndex].Class
	}
	return prediction
}

//Save writes the tree as indented JSON.
func (tree *DecisionTree) Save(filename string) {
	dest, err := os.Create(filename)
	HandleError(err)
	defer func() { HandleError(dest.Close()) }()

	treeByteRepr, err := json.MarshalIndent(tree, "", "  ")
	HandleError(err)

	_, err = dest.Write(treeByteRepr)
	HandleError(err)
}

//LoadTree reads a tree saved by Save.
func LoadTree(filename string) (tree DecisionTree) {
	source, err := os.Open(filename)
	HandleError(err)
	defer func() { HandleError(source.Close()) }()

	decoder := json.NewDecoder(source)
	HandleError(decoder.Decode(&tree))
	return
}

func recurrentDraw(g *cgraph.Graph, tree *DecisionTree, nodeNumber int, parentNode *cgraph.Node) {
	currentNode, err := g.CreateNode(fmt.Sprint(tree.TreeNodes[nodeNumber].TreeNodeId))
	HandleError(err)

	if parentNode != nil {
		g.CreateEdge("", parentNode, currentNode)
	}

	if tree.TreeNodes[nodeNumber].IsLeaf() {
		currentNode.Set("label", tree.LeafNodes[tree.TreeNodes[nodeNumber].LeafIndex].GraphDescription())
		currentNode.Set("shape", "box")
	} else {
		currentNode.Set("label", tree.TreeNodes[nodeNumber].GraphDescription())
		recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].LeftIndex, currentNode)
		recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].RightIndex, currentNode)
	}
}

//DrawGraph renders the tree as a graphviz graph.
func (tree *DecisionTree) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	HandleError(err)

	recurrentDraw(graph, tree, 0, nil)

	return graphViz, graph
}
