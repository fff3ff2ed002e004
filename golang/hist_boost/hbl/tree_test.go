package hbl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binnedFromColumns(t *testing.T, rows int, columns ...[]float64) *BinnedMatrix {
	t.Helper()
	data := make([]float64, 0, rows*len(columns))
	for _, column := range columns {
		require.Len(t, column, rows)
		data = append(data, column...)
	}
	m, err := NewDMatrixFromColMajor(data, rows, len(columns), -1000)
	require.NoError(t, err)
	cuts, err := NewQuantileCuts(m, 256, 2)
	require.NoError(t, err)
	binned, err := NewBinnedMatrix(m, cuts, 2)
	require.NoError(t, err)
	return binned
}

func TestLeafWeightOfUnsplittableNode(t *testing.T) {
	// a constant feature gives nothing to split on
	feature := []float64{7, 7, 7, 7}
	grads := []GradientPair{{0.5, 1}, {-1.25, 0.5}, {2, 2}, {-0.75, 0.25}}
	binned := binnedFromColumns(t, 4, feature)

	lambda := 1.5
	tree, err := GrowTree(binned, binned.Matrix().AllRows(), grads, TreeParams{MaxDepth: 4, Lambda: lambda, ThreadsNum: 2})
	require.NoError(t, err)
	require.Len(t, tree.TreeNodes, 1)
	require.Len(t, tree.LeafNodes, 1)

	var g, h float64
	for _, pair := range grads {
		g += pair.Grad
		h += pair.Hess
	}
	assert.Equal(t, -g/(h+lambda), tree.LeafNodes[0].Weight)
	assert.Equal(t, 4, tree.LeafNodes[0].NumberOfObjects)
	assert.Equal(t, []int{0, 1, 2, 3}, tree.LeafNodes[0].RecordIds)
}

func stepFixture(t *testing.T) (*BinnedMatrix, []GradientPair) {
	t.Helper()
	rows := 100
	x := make([]float64, rows)
	grads := make([]GradientPair, rows)
	for p := range x {
		x[p] = float64(p)
		// gradient of 0.5*(pred-label)^2 at pred 0 for label 0 below 50 and 10 above
		grads[p] = GradientPair{Grad: 0, Hess: 1}
		if p >= 50 {
			grads[p].Grad = -10
		}
	}
	return binnedFromColumns(t, rows, x, x), grads
}

func TestGrowTreeFindsStep(t *testing.T) {
	binned, grads := stepFixture(t)

	tree, err := GrowTree(binned, binned.Matrix().AllRows(), grads, TreeParams{MaxDepth: 1, Lambda: 1, MinChildWeight: 1, ThreadsNum: 4})
	require.NoError(t, err)
	require.Len(t, tree.TreeNodes, 3)

	root := tree.TreeNodes[0]
	assert.False(t, root.IsLeaf())
	assert.Equal(t, 0, root.FeatureNumber, "identical features resolve to the lowest index")
	assert.Equal(t, 49.0, root.Threshold)
	assert.Equal(t, 100, root.NumberOfObjects)
	assert.Equal(t, 1, tree.MaxDepth())

	assert.Equal(t, 0.0, tree.PredictRow([]float64{10, 10}))
	assert.Equal(t, 500.0/51.0, tree.PredictRow([]float64{80, 80}))
	assert.Equal(t, 500.0/51.0, tree.PredictRow([]float64{49.5, 0}))

	tree.Scale(0.1)
	assert.InDelta(t, 50.0/51.0, tree.PredictRow([]float64{80, 80}), 1e-12)
}

func TestGrowTreeRespectsMaxDepth(t *testing.T) {
	binned, grads := randomBinnedMatrix(t, 400, 3, 0.05, 11)
	for _, depth := range []int{1, 2, 3, 5} {
		tree, err := GrowTree(binned, binned.Matrix().AllRows(), grads, TreeParams{MaxDepth: depth, Lambda: 1, ThreadsNum: 2})
		require.NoError(t, err)
		assert.LessOrEqual(t, tree.MaxDepth(), depth)
		assert.Equal(t, len(tree.TreeNodes), 2*len(tree.LeafNodes)-1)

		covered := 0
		for _, leaf := range tree.LeafNodes {
			covered += len(leaf.RecordIds)
		}
		assert.Equal(t, 400, covered)
	}
}

func TestGrowTreeRoutesMissingRowsLikePrediction(t *testing.T) {
	binned, grads := randomBinnedMatrix(t, 600, 3, 0.3, 5)
	tree, err := GrowTree(binned, binned.Matrix().AllRows(), grads, TreeParams{MaxDepth: 4, Lambda: 1, ThreadsNum: 3})
	require.NoError(t, err)

	for leafInd, leaf := range tree.LeafNodes {
		for _, p := range leaf.RecordIds {
			row, err := binned.Matrix().Row(p)
			require.NoError(t, err)
			assert.Equal(t, leafInd, tree.LeafFor(row), "row %d", p)
		}
	}
}

func TestGrowTreeIsDeterministicAcrossThreads(t *testing.T) {
	binned, grads := randomBinnedMatrix(t, 3*histogramChunkRows/2, 4, 0.1, 17)
	rows := binned.Matrix().AllRows()

	single, err := GrowTree(binned, rows, grads, TreeParams{MaxDepth: 3, Lambda: 1, ThreadsNum: 1})
	require.NoError(t, err)
	parallel, err := GrowTree(binned, rows, grads, TreeParams{MaxDepth: 3, Lambda: 1, ThreadsNum: 8})
	require.NoError(t, err)
	assert.Equal(t, single, parallel)
}

func TestGrowTreeErrors(t *testing.T) {
	binned, grads := stepFixture(t)

	_, err := GrowTree(binned, RowsView{}, grads, TreeParams{MaxDepth: 2})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = GrowTree(binned, binned.Matrix().AllRows(), grads[:10], TreeParams{MaxDepth: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = GrowTree(binned, binned.Matrix().AllRows(), grads, TreeParams{MaxDepth: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLeafForFollowsDefaultDirection(t *testing.T) {
	tree := OneTree{
		TreeNodes: []TreeNode{
			{TreeNodeId: 0, FeatureNumber: 1, Threshold: 0.5, DefaultLeft: false, LeftIndex: 1, RightIndex: 2, LeafIndex: -1},
			{TreeNodeId: 1, FeatureNumber: -1, LeftIndex: -1, RightIndex: -1, LeafIndex: 0},
			{TreeNodeId: 2, FeatureNumber: -1, LeftIndex: -1, RightIndex: -1, LeafIndex: 1},
		},
		LeafNodes: []LeafNode{{LeafNodeId: 0, Weight: -1}, {LeafNodeId: 1, Weight: 1}},
	}
	assert.Equal(t, -1.0, tree.PredictRow([]float64{0, 0.5}))
	assert.Equal(t, 1.0, tree.PredictRow([]float64{0, 0.6}))
	assert.Equal(t, 1.0, tree.PredictRow([]float64{0, math.NaN()}))

	tree.TreeNodes[0].DefaultLeft = true
	assert.Equal(t, -1.0, tree.PredictRow([]float64{0, math.NaN()}))
	assert.Contains(t, tree.GetNodeDescription(0), "missing:  left")
}
