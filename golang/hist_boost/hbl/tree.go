package hbl

import (
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//histogramChunkRows is the row count above which one feature's histogram is built
//from several chunks in parallel and merged afterwards.
const histogramChunkRows = 8192

//TreeNode is a node of a tree. Tree is stored in an array. LeftIndex and RightIndex are equal to -1
//when the current node is a leaf otherwise they contain array indices of children.
//A leaf node contains LeafIndex that is an index of the LeafNodes array.
type TreeNode struct {
	TreeNodeId      int     `json:"id"`
	FeatureNumber   int     `json:"feature"`
	Threshold       float64 `json:"threshold"`
	DefaultLeft     bool    `json:"default_left"`
	LeftIndex       int     `json:"left"`  // -1 if it is a leaf
	RightIndex      int     `json:"right"` // -1 if it is a leaf
	LeafIndex       int     `json:"leaf"`  // -1 if it is a non-leaf tree node
	NumberOfObjects int     `json:"count"`
	Gain            float64 `json:"gain"`
	Cover           float64 `json:"cover"`
	Depth           int     `json:"depth"`
}

//NewTreeNode creates a node with no children and no leaf.
func NewTreeNode() TreeNode {
	return TreeNode{FeatureNumber: -1, LeftIndex: -1, RightIndex: -1, LeafIndex: -1}
}

//NewTreeNodeFromSplitInfo creates a new tree node and extracts a feature index and a split threshold
//from a BestSplit object.
func NewTreeNodeFromSplitInfo(splitInfo BestSplit, treeNodeId, depth int) TreeNode {
	treeNode := NewTreeNode()
	treeNode.TreeNodeId = treeNodeId
	treeNode.FeatureNumber = splitInfo.FeatureIndex
	treeNode.Threshold = splitInfo.Threshold
	treeNode.DefaultLeft = splitInfo.DefaultLeft
	treeNode.NumberOfObjects = splitInfo.Left.Count + splitInfo.Right.Count
	treeNode.Gain = splitInfo.Gain
	treeNode.Cover = splitInfo.Left.SumHess + splitInfo.Right.SumHess
	treeNode.Depth = depth
	return treeNode
}

//IsLeaf returns whether this node is a LeafNode.
func (node TreeNode) IsLeaf() bool {
	return node.LeafIndex != -1
}

//GraphDescription returns the description of a tree node for tree rendering as a graph
func (node TreeNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.NumberOfObjects))
	sb.WriteString(fmt.Sprintln("id: ", node.TreeNodeId))
	sb.WriteString(fmt.Sprintln("gain: ", node.Gain))
	missing := "right"
	if node.DefaultLeft {
		missing = "left"
	}
	sb.WriteString(fmt.Sprintln("missing: ", missing))
	sb.WriteString(fmt.Sprintf("f_%d <= %6.5f", node.FeatureNumber, node.Threshold))
	return sb.String()
}

//LeafNode stores leaf-related information. It is a prediction from this leaf and some statistics.
type LeafNode struct {
	LeafNodeId      int     `json:"id"`
	Weight          float64 `json:"weight"`
	NumberOfObjects int     `json:"count"`
	SumGrad         float64 `json:"sum_grad"`
	SumHess         float64 `json:"sum_hess"`
	RecordIds       []int   `json:"-"`
}

//GraphDescription returns the description of a leaf node for tree rendering as a graph
func (node LeafNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("id: ", node.LeafNodeId))
	sb.WriteString(fmt.Sprintf("%6.4f\n", node.Weight))
	sb.WriteString(fmt.Sprintln(node.NumberOfObjects))
	return sb.String()
}

//OneTree describes one tree in a model.
type OneTree struct {
	Group     int        `json:"group"`
	TreeNodes []TreeNode `json:"nodes"`
	LeafNodes []LeafNode `json:"leaves"`
}

//GetLeafDescription returns the description of a leaf node
func (tree OneTree) GetLeafDescription(ind int) string {
	return tree.LeafNodes[tree.TreeNodes[ind].LeafIndex].GraphDescription()
}

//GetNodeDescription returns the description of a split node
func (tree OneTree) GetNodeDescription(ind int) string {
	return tree.TreeNodes[ind].GraphDescription()
}

//LeafFor walks the tree with one row of features and returns the leaf index.
//NaN values follow the default direction stored in each node.
func (tree OneTree) LeafFor(row []float64) int {
	ind := 0
	for !tree.TreeNodes[ind].IsLeaf() {
		node := tree.TreeNodes[ind]
		value := row[node.FeatureNumber]
		switch {
		case math.IsNaN(value):
			if node.DefaultLeft {
				ind = node.LeftIndex
			} else {
				ind = node.RightIndex
			}
		case value <= node.Threshold:
			ind = node.LeftIndex
		default:
			ind = node.RightIndex
		}
	}
	return tree.TreeNodes[ind].LeafIndex
}

//PredictRow returns the leaf weight reached by one row of features.
func (tree OneTree) PredictRow(row []float64) float64 {
	return tree.LeafNodes[tree.LeafFor(row)].Weight
}

//Scale multiplies every leaf weight by factor.
func (tree *OneTree) Scale(factor float64) {
	for ind := range tree.LeafNodes {
		tree.LeafNodes[ind].Weight *= factor
	}
}

//MaxDepth returns the number of splits on the longest root-to-leaf path.
func (tree OneTree) MaxDepth() int {
	depth := 0
	for _, node := range tree.TreeNodes {
		if node.Depth > depth {
			depth = node.Depth
		}
	}
	return depth
}

//treeBuilder grows one tree over a quantized matrix with fixed gradients.
type treeBuilder struct {
	binned *BinnedMatrix
	grads  []GradientPair
	params TreeParams
	logger *zap.Logger
}

//GrowTree grows one regression tree greedily over the given rows. Leaf weights are the
//unscaled Newton steps -G/(H+lambda); the caller applies the learning rate.
func GrowTree(binned *BinnedMatrix, rows RowsView, grads []GradientPair, params TreeParams) (oneTree OneTree, err error) {
	if rows.Len() == 0 {
		return oneTree, errors.Wrap(ErrEmptyInput, "grow tree over zero rows")
	}
	if len(grads) != binned.NumRows() {
		return oneTree, errors.Wrapf(ErrInvalidConfig, "got %d gradient pairs for %d rows", len(grads), binned.NumRows())
	}
	if params.MaxDepth < 1 {
		return oneTree, errors.Wrapf(ErrInvalidConfig, "max_depth must be positive, got %d", params.MaxDepth)
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	builder := &treeBuilder{binned: binned, grads: grads, params: params, logger: logger}

	oneTree.TreeNodes = make([]TreeNode, 0)
	oneTree.LeafNodes = make([]LeafNode, 0)
	if _, err = builder.BuildTree(&oneTree, rows, 0); err != nil {
		return OneTree{}, err
	}
	return oneTree, nil
}

//BuildTree recurrently builds a tree node and returns its index.
func (builder *treeBuilder) BuildTree(oneTree *OneTree, rows RowsView, currentDepth int) (int, error) {
	total := builder.sumRows(rows)
	treeNodeId := len(oneTree.TreeNodes)

	if currentDepth < builder.params.MaxDepth && total.SumHess >= builder.params.MinChildWeight {
		bestSplit, err := builder.TheBestSplit(rows)
		if err != nil {
			return -1, err
		}
		if bestSplit.Valid && bestSplit.Gain > 0 {
			builder.logger.Debug("split node",
				zap.Int("node", treeNodeId),
				zap.Int("depth", currentDepth),
				zap.Int("feature", bestSplit.FeatureIndex),
				zap.Float64("threshold", bestSplit.Threshold),
				zap.Float64("gain", bestSplit.Gain),
				zap.Bool("default_left", bestSplit.DefaultLeft))

			oneTree.TreeNodes = append(oneTree.TreeNodes, NewTreeNodeFromSplitInfo(bestSplit, treeNodeId, currentDepth))
			leftRows, rightRows := builder.partition(rows, bestSplit)

			leftNodeId, err := builder.BuildTree(oneTree, leftRows, currentDepth+1)
			if err != nil {
				return -1, err
			}
			oneTree.TreeNodes[treeNodeId].LeftIndex = leftNodeId

			rightNodeId, err := builder.BuildTree(oneTree, rightRows, currentDepth+1)
			if err != nil {
				return -1, err
			}
			oneTree.TreeNodes[treeNodeId].RightIndex = rightNodeId
			return treeNodeId, nil
		}
	}

	currentTreeNode := NewTreeNode()
	currentTreeNode.TreeNodeId = treeNodeId
	currentTreeNode.NumberOfObjects = total.Count
	currentTreeNode.Cover = total.SumHess
	currentTreeNode.Depth = currentDepth
	currentTreeNode.LeafIndex = len(oneTree.LeafNodes)
	oneTree.TreeNodes = append(oneTree.TreeNodes, currentTreeNode)

	oneTree.LeafNodes = append(oneTree.LeafNodes, LeafNode{
		LeafNodeId:      currentTreeNode.LeafIndex,
		Weight:          CalcWeight(total.SumGrad, total.SumHess, builder.params.Lambda),
		NumberOfObjects: total.Count,
		SumGrad:         total.SumGrad,
		SumHess:         total.SumHess,
		RecordIds:       rows.Indices(),
	})
	return treeNodeId, nil
}

func (builder *treeBuilder) sumRows(rows RowsView) (total HistogramBin) {
	for it := rows.Iterator(); it.HasNext(); {
		total.addPair(builder.grads[it.GetNext()])
	}
	return
}

//TheBestSplit finds the best possible split of the given rows.
//Histograms are built on the pool, one task per feature and row chunk; the chunks are
//merged and scanned once every task has finished.
func (builder *treeBuilder) TheBestSplit(rows RowsView) (BestSplit, error) {
	w := builder.binned.NumFeatures()
	chunks := rows.Chunks(histogramChunkRows)
	partial := make([][]Histogram, w)

	taskPool := NewPool(builder.params.ThreadsNum)
	for q := 0; q < w; q++ {
		partial[q] = make([]Histogram, len(chunks))
		for c, chunk := range chunks {
			feature, slot, chunkRows := q, c, chunk
			taskPool.AddTask(TaskFunc(func() error {
				partial[feature][slot] = BuildHistogram(builder.binned, feature, chunkRows.Iterator(), builder.grads)
				return nil
			}))
		}
	}
	taskPool.Close()
	if err := taskPool.WaitAll(); err != nil {
		return BestSplit{}, err
	}

	var best BestSplit
	for q := 0; q < w; q++ {
		hist := partial[q][0]
		for _, other := range partial[q][1:] {
			if err := hist.Merge(other); err != nil {
				return BestSplit{}, err
			}
		}
		best = betterSplit(best, hist.FindBestSplit(builder.binned.Cuts(), builder.params))
	}
	return best, nil
}

//partition routes rows to the children of a split; missing values follow the default direction.
func (builder *treeBuilder) partition(rows RowsView, split BestSplit) (left, right RowsView) {
	leftRows := make([]int, 0, split.Left.Count)
	rightRows := make([]int, 0, split.Right.Count)
	for it := rows.Iterator(); it.HasNext(); {
		p := it.GetNext()
		bin := builder.binned.BinAt(p, split.FeatureIndex)
		goLeft := bin <= split.BinIndex
		if bin == missingBin {
			goLeft = split.DefaultLeft
		}
		if goLeft {
			leftRows = append(leftRows, p)
		} else {
			rightRows = append(rightRows, p)
		}
	}
	return RowsView{rows: leftRows}, RowsView{rows: rightRows}
}

func recurrentDraw(g *cgraph.Graph, tree OneTree, nodeNumber int, parentNode *cgraph.Node, label string) error {
	currentNode, err := g.CreateNode(fmt.Sprint(tree.TreeNodes[nodeNumber].TreeNodeId))
	if err != nil {
		return err
	}

	if parentNode != nil {
		edge, err := g.CreateEdge("", parentNode, currentNode)
		if err != nil {
			return err
		}
		edge.SetLabel(label)
	}

	if tree.TreeNodes[nodeNumber].IsLeaf() {
		currentNode.Set("label", tree.GetLeafDescription(nodeNumber))
		currentNode.Set("shape", "box")
		return nil
	}
	currentNode.Set("label", tree.GetNodeDescription(nodeNumber))
	if err := recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].LeftIndex, currentNode, "yes"); err != nil {
		return err
	}
	return recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].RightIndex, currentNode, "no")
}

//DrawGraph builds a graphviz graph of the tree.
func (tree OneTree) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph, error) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		return nil, nil, err
	}
	if err := recurrentDraw(graph, tree, 0, nil, ""); err != nil {
		return nil, nil, err
	}
	return graphViz, graph, nil
}
