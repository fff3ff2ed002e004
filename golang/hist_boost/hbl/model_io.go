package hbl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/goccy/go-graphviz"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

//modelFormatVersion is written into every saved model.
const modelFormatVersion = 1

//compressedSuffix selects zstd compression of a saved model.
const compressedSuffix = ".zst"

type modelFile struct {
	Version     int          `json:"version"`
	Params      Params       `json:"params"`
	NumFeatures int          `json:"num_features"`
	Rounds      int          `json:"rounds"`
	Trees       []OneTree    `json:"trees"`
	History     []EvalRecord `json:"history,omitempty"`
}

//Save writes the model as JSON. A path ending in .zst is zstd compressed.
func (b *Booster) Save(filename string) (err error) {
	dest, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "can't open file %s to write", filename)
	}
	defer func() {
		if closeErr := dest.Close(); err == nil {
			err = closeErr
		}
	}()

	if !strings.HasSuffix(filename, compressedSuffix) {
		return b.SaveTo(dest)
	}
	encoder, err := zstd.NewWriter(dest)
	if err != nil {
		return err
	}
	if err = b.SaveTo(encoder); err != nil {
		encoder.Close()
		return err
	}
	return encoder.Close()
}

//SaveTo writes the model as JSON to w.
func (b *Booster) SaveTo(w io.Writer) error {
	b.mu.RLock()
	if b.state == Uninitialized {
		b.mu.RUnlock()
		return errors.Wrap(ErrNotReady, "save an uninitialized booster")
	}
	model := modelFile{
		Version:     modelFormatVersion,
		Params:      b.params,
		NumFeatures: b.numFeatures,
		Rounds:      b.rounds,
		Trees:       b.trees,
	}
	b.mu.RUnlock()
	model.History = b.History()

	modelByteRepr, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(modelByteRepr)
	return err
}

//LoadModel reads a model written by Save. The booster is in the Trained state.
func LoadModel(filename string, opts ...Option) (*Booster, error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	if !strings.HasSuffix(filename, compressedSuffix) {
		return LoadModelFrom(bufio.NewReader(source), opts...)
	}
	decoder, err := zstd.NewReader(source)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return LoadModelFrom(decoder, opts...)
}

//LoadModelFrom reads a JSON model from r and checks its structure.
func LoadModelFrom(r io.Reader, opts ...Option) (*Booster, error) {
	var model modelFile
	if err := json.NewDecoder(r).Decode(&model); err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if model.Version != modelFormatVersion {
		return nil, errors.Wrapf(ErrInvalidConfig, "model format version %d", model.Version)
	}
	if model.NumFeatures < 1 {
		return nil, errors.Wrapf(ErrInvalidConfig, "model has %d features", model.NumFeatures)
	}
	b, err := newBooster(model.Params, model.NumFeatures, opts...)
	if err != nil {
		return nil, err
	}
	if len(model.Trees) != model.Rounds*b.numGroups {
		return nil, errors.Wrapf(ErrInvalidConfig, "%d trees for %d rounds of %d groups", len(model.Trees), model.Rounds, b.numGroups)
	}
	for ind, tree := range model.Trees {
		if err := tree.check(model.NumFeatures, ind%b.numGroups); err != nil {
			return nil, errors.Wrapf(err, "tree %d", ind)
		}
	}
	b.trees = model.Trees
	b.rounds = model.Rounds
	b.history = model.History
	b.state = Trained
	return b, nil
}

//check validates the structure of a decoded tree.
func (tree OneTree) check(numFeatures, group int) error {
	if tree.Group != group {
		return errors.Wrapf(ErrInvalidConfig, "group %d, expected %d", tree.Group, group)
	}
	if len(tree.TreeNodes) == 0 {
		return errors.Wrap(ErrInvalidConfig, "no nodes")
	}
	for ind, node := range tree.TreeNodes {
		if node.IsLeaf() {
			if node.LeafIndex < 0 || node.LeafIndex >= len(tree.LeafNodes) {
				return errors.Wrapf(ErrInvalidConfig, "node %d points to leaf %d of %d", ind, node.LeafIndex, len(tree.LeafNodes))
			}
			continue
		}
		if node.FeatureNumber < 0 || node.FeatureNumber >= numFeatures {
			return errors.Wrapf(ErrInvalidConfig, "node %d splits feature %d of %d", ind, node.FeatureNumber, numFeatures)
		}
		// children are always stored after their parent
		for _, child := range []int{node.LeftIndex, node.RightIndex} {
			if child <= ind || child >= len(tree.TreeNodes) {
				return errors.Wrapf(ErrInvalidConfig, "node %d has child %d", ind, child)
			}
		}
	}
	return nil
}

//DumpNode is a tree node in the JSON dump, nested like the XGBoost json dump.
type DumpNode struct {
	NodeId         int        `json:"nodeid"`
	Depth          int        `json:"depth"`
	Split          string     `json:"split,omitempty"`
	SplitCondition *float64   `json:"split_condition,omitempty"`
	Yes            *int       `json:"yes,omitempty"`
	No             *int       `json:"no,omitempty"`
	Missing        *int       `json:"missing,omitempty"`
	Leaf           *float64   `json:"leaf,omitempty"`
	Gain           *float64   `json:"gain,omitempty"`
	Cover          *float64   `json:"cover,omitempty"`
	Children       []DumpNode `json:"children,omitempty"`
}

func (tree OneTree) dumpNode(ind int, withStats bool) DumpNode {
	node := tree.TreeNodes[ind]
	dump := DumpNode{NodeId: node.TreeNodeId, Depth: node.Depth}
	if withStats {
		cover := node.Cover
		dump.Cover = &cover
	}
	if node.IsLeaf() {
		weight := tree.LeafNodes[node.LeafIndex].Weight
		dump.Leaf = &weight
		return dump
	}
	left, right := tree.TreeNodes[node.LeftIndex].TreeNodeId, tree.TreeNodes[node.RightIndex].TreeNodeId
	missing := right
	if node.DefaultLeft {
		missing = left
	}
	threshold := node.Threshold
	dump.Split = fmt.Sprintf("f%d", node.FeatureNumber)
	dump.SplitCondition = &threshold
	dump.Yes, dump.No, dump.Missing = &left, &right, &missing
	if withStats {
		gain := node.Gain
		dump.Gain = &gain
	}
	dump.Children = []DumpNode{tree.dumpNode(node.LeftIndex, withStats), tree.dumpNode(node.RightIndex, withStats)}
	return dump
}

//DumpModel writes every tree as a nested JSON object. Yes is taken when value <= split_condition.
func (b *Booster) DumpModel(w io.Writer, withStats bool) error {
	trees := b.Trees()
	dump := make([]DumpNode, len(trees))
	for ind, tree := range trees {
		dump[ind] = tree.dumpNode(0, withStats)
	}
	bytesResult, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(bytesResult)
	return err
}

//RenderTrees draws every tree into dir as <prefix>_<index>.<format>; format is png, svg or jpg.
func (b *Booster) RenderTrees(dumpPrefix, figureType, picturesDirectory string) error {
	graphvizType, ok := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]
	if !ok {
		return errors.Wrapf(ErrInvalidConfig, "unknown figure type %q", figureType)
	}

	for graphInd, currentTree := range b.Trees() {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		graphViz, graph, err := currentTree.DrawGraph()
		if err != nil {
			return err
		}
		err = graphViz.RenderFilename(graph, graphvizType, path.Join(picturesDirectory, filename))
		graph.Close()
		graphViz.Close()
		if err != nil {
			return errors.Wrapf(err, "render tree %d", graphInd)
		}
	}
	return nil
}

//LearningCurvesDump is the JSON form of the eval history: one title per (set, metric)
//and one row per evaluated iteration. A cell is null when the set was not evaluated.
type LearningCurvesDump struct {
	Titles     []string     `json:"titles"`
	Iterations []int        `json:"iterations"`
	Values     [][]*float64 `json:"values"`
}

//LearningCurves groups the eval history by iteration.
func (b *Booster) LearningCurves() LearningCurvesDump {
	var dump LearningCurvesDump
	dump.Titles = make([]string, 0)
	dump.Iterations = make([]int, 0)
	dump.Values = make([][]*float64, 0)

	columns := map[string]int{}
	rows := map[int]int{}
	for _, record := range b.History() {
		title := record.Set + ":" + record.Metric
		if _, ok := columns[title]; !ok {
			columns[title] = len(dump.Titles)
			dump.Titles = append(dump.Titles, title)
		}
		if _, ok := rows[record.Iteration]; !ok {
			rows[record.Iteration] = len(dump.Iterations)
			dump.Iterations = append(dump.Iterations, record.Iteration)
			dump.Values = append(dump.Values, nil)
		}
		row := dump.Values[rows[record.Iteration]]
		for len(row) < len(dump.Titles) {
			row = append(row, nil)
		}
		value := record.Value
		row[columns[title]] = &value
		dump.Values[rows[record.Iteration]] = row
	}
	for ind, row := range dump.Values {
		for len(row) < len(dump.Titles) {
			row = append(row, nil)
		}
		dump.Values[ind] = row
	}
	return dump
}

//DumpLearningCurves writes LearningCurves as JSON.
func (b *Booster) DumpLearningCurves(w io.Writer) error {
	bytesResult, err := json.MarshalIndent(b.LearningCurves(), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(bytesResult)
	return err
}
