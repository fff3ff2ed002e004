package hbl

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

//BoosterState is the lifecycle stage of a booster.
type BoosterState int

const (
	Uninitialized BoosterState = iota
	Ready
	Training
	Trained
)

func (s BoosterState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Training:
		return "training"
	case Trained:
		return "trained"
	}
	return "BoosterState(" + strconv.Itoa(int(s)) + ")"
}

//EvalRecord is one point of a learning curve.
type EvalRecord struct {
	Iteration int     `json:"iteration"`
	Set       string  `json:"set"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
}

//evalCache keeps running raw scores of an eval set so every eval only walks the new trees.
type evalCache struct {
	preds *PredictionBuffer
	trees int
}

//Booster is the model class. It grows an ensemble of trees one round at a time;
//each round appends one tree per output group.
type Booster struct {
	mu sync.RWMutex

	state       BoosterState
	params      Params
	objective   Objective
	metric      Metric
	numFeatures int
	numGroups   int
	trees       []OneTree
	rounds      int

	train  *DMatrix
	binned *BinnedMatrix
	preds  *PredictionBuffer
	grads  *GradientBuffer

	evalMu    sync.Mutex
	evalCache map[*DMatrix]*evalCache
	history   []EvalRecord

	logger  *zap.Logger
	metrics *Metrics
}

//NewBooster validates the parameters, quantizes the training matrix and returns a booster in the Ready state.
func NewBooster(train *DMatrix, params Params, opts ...Option) (*Booster, error) {
	if train == nil {
		return nil, errors.Wrap(ErrEmptyInput, "no training matrix")
	}
	if params.NThread <= 0 {
		params.NThread = DefaultThreadsNum()
	}
	b, err := newBooster(params, train.NumCols(), opts...)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	cuts, err := NewQuantileCuts(train, params.MaxBin, params.NThread)
	if err != nil {
		return nil, err
	}
	binned, err := NewBinnedMatrix(train, cuts, params.NThread)
	if err != nil {
		return nil, err
	}
	b.train = train
	b.binned = binned
	b.preds = NewPredictionBuffer(train.NumRows(), b.numGroups, params.BaseScore)
	b.grads = NewGradientBuffer(train.NumRows(), b.numGroups)
	b.state = Ready

	b.logger.Debug("booster created",
		zap.Int("rows", train.NumRows()),
		zap.Int("features", train.NumCols()),
		zap.String("objective", string(params.Objective)),
		zap.Int("groups", b.numGroups),
		zap.Duration("quantize", time.Since(started)))
	return b, nil
}

func newBooster(params Params, numFeatures int, opts ...Option) (*Booster, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	objective, err := NewObjective(params)
	if err != nil {
		return nil, err
	}
	metric, err := NewMetric(params.EvalMetric, params.Objective)
	if err != nil {
		return nil, err
	}
	b := &Booster{
		params:      params,
		objective:   objective,
		metric:      metric,
		numFeatures: numFeatures,
		numGroups:   objective.NumGroups(),
		trees:       make([]OneTree, 0),
		evalCache:   make(map[*DMatrix]*evalCache),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

//UpdateOneIteration runs one boosting round: it computes gradients from the current predictions,
//grows one tree per group on all training rows, shrinks the leaves by eta and folds the new
//trees into the predictions. On error nothing is changed.
func (b *Booster) UpdateOneIteration(iter int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Ready && b.state != Training {
		return errors.Wrapf(ErrNotReady, "update in state %s", b.state)
	}
	if iter < 0 {
		return errors.Wrapf(ErrInvalidConfig, "negative iteration %d", iter)
	}
	labels := b.train.labelData()
	if labels == nil {
		return errors.Wrap(ErrMissingLabel, "training matrix has no labels")
	}
	if err := b.objective.ValidateLabels(labels); err != nil {
		return err
	}

	started := time.Now()
	if err := b.objective.ComputeGradients(b.preds, labels, b.train.weightData(), b.grads); err != nil {
		return err
	}

	treeParams := b.params.treeParams()
	treeParams.Logger = b.logger
	rows := b.train.AllRows()
	newTrees := make([]OneTree, b.numGroups)
	for group := 0; group < b.numGroups; group++ {
		tree, err := GrowTree(b.binned, rows, b.grads.Group(group), treeParams)
		if err != nil {
			return errors.Wrapf(err, "round %d group %d", iter, group)
		}
		tree.Group = group
		tree.Scale(b.params.Eta)
		newTrees[group] = tree
	}

	for _, tree := range newTrees {
		for ind := range tree.LeafNodes {
			leaf := &tree.LeafNodes[ind]
			for _, p := range leaf.RecordIds {
				b.preds.Add(p, tree.Group, leaf.Weight)
			}
			leaf.RecordIds = nil
		}
	}
	b.trees = append(b.trees, newTrees...)
	b.rounds++
	b.state = Training

	elapsed := time.Since(started)
	b.metrics.observeRound(len(newTrees), elapsed)
	b.logger.Debug("round finished",
		zap.Int("iteration", iter),
		zap.Int("trees", len(newTrees)),
		zap.Int("total_trees", len(b.trees)),
		zap.Duration("elapsed", elapsed))
	return nil
}

//EvalOneIteration scores the current ensemble on every set and returns one
//"<name>:<metric>:<value>" field per set, joined by tabs.
func (b *Booster) EvalOneIteration(iter int, sets []*DMatrix, names []string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.evalLocked(iter, sets, names)
}

//EvalTrain scores the current ensemble on the training matrix under the name "train".
func (b *Booster) EvalTrain() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.train == nil {
		return "", errors.Wrapf(ErrNotReady, "no training matrix in state %s", b.state)
	}
	return b.evalLocked(b.rounds-1, []*DMatrix{b.train}, []string{"train"})
}

func (b *Booster) evalLocked(iter int, sets []*DMatrix, names []string) (string, error) {
	if b.state == Uninitialized || b.rounds == 0 {
		return "", errors.Wrapf(ErrNotReady, "evaluate after %d rounds in state %s", b.rounds, b.state)
	}
	if len(sets) != len(names) {
		return "", errors.Wrapf(ErrInvalidConfig, "%d eval sets with %d names", len(sets), len(names))
	}
	if len(sets) == 0 {
		return "", errors.Wrap(ErrInvalidConfig, "no eval sets")
	}

	b.evalMu.Lock()
	defer b.evalMu.Unlock()

	fields := make([]string, 0, len(sets))
	records := make([]EvalRecord, 0, len(sets))
	for ind, set := range sets {
		if set == nil {
			return "", errors.Wrapf(ErrInvalidConfig, "eval set %q is nil", names[ind])
		}
		if !set.HasLabels() {
			return "", errors.Wrapf(ErrMissingLabel, "eval set %q", names[ind])
		}
		preds, err := b.evalPredictions(set)
		if err != nil {
			return "", errors.Wrapf(err, "eval set %q", names[ind])
		}
		value, err := b.metric.Evaluate(preds, set.labelData(), set.weightData())
		if err != nil {
			return "", errors.Wrapf(err, "eval set %q", names[ind])
		}
		fields = append(fields, fmt.Sprintf("%s:%s:%s", names[ind], b.metric.Name(), strconv.FormatFloat(value, 'f', 6, 64)))
		records = append(records, EvalRecord{Iteration: iter, Set: names[ind], Metric: b.metric.Name(), Value: value})
	}

	result := strings.Join(fields, "\t")
	b.history = append(b.history, records...)
	for _, record := range records {
		b.metrics.observeEval(record.Set, record.Metric, record.Value)
	}
	b.logger.Info("eval", zap.Int("iteration", iter), zap.String("result", result))
	return result, nil
}

//evalPredictions returns the raw scores of a set; the caller holds evalMu.
func (b *Booster) evalPredictions(set *DMatrix) (*PredictionBuffer, error) {
	if set == b.train {
		return b.preds, nil
	}
	if set.NumCols() != b.numFeatures {
		return nil, errors.Wrapf(ErrInvalidConfig, "set has %d features, model has %d", set.NumCols(), b.numFeatures)
	}
	cache, ok := b.evalCache[set]
	if !ok {
		cache = &evalCache{preds: NewPredictionBuffer(set.NumRows(), b.numGroups, b.params.BaseScore)}
		b.evalCache[set] = cache
	}
	if cache.trees < len(b.trees) {
		row := make([]float64, set.NumCols())
		for p := 0; p < set.NumRows(); p++ {
			for q := range row {
				row[q] = set.columns.At(q, p)
			}
			for _, tree := range b.trees[cache.trees:] {
				cache.preds.Add(p, tree.Group, tree.PredictRow(row))
			}
		}
		cache.trees = len(b.trees)
	}
	return cache.preds, nil
}

//NumFeatures returns the column count of the training matrix the booster was created with.
func (b *Booster) NumFeatures() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.numFeatures
}

//NumTrees returns the ensemble size.
func (b *Booster) NumTrees() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.trees)
}

//BoostedRounds returns the number of completed rounds.
func (b *Booster) BoostedRounds() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rounds
}

//State returns the lifecycle stage.
func (b *Booster) State() BoosterState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

//Params returns the parameters the booster was created with.
func (b *Booster) Params() Params {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.params
}

//Trees returns a copy of the ensemble.
func (b *Booster) Trees() []OneTree {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]OneTree(nil), b.trees...)
}

//History returns the recorded learning-curve points.
func (b *Booster) History() []EvalRecord {
	b.evalMu.Lock()
	defer b.evalMu.Unlock()
	return append([]EvalRecord(nil), b.history...)
}

//Forget drops the cached eval predictions of m. The next eval of m starts from scratch.
func (b *Booster) Forget(m *DMatrix) {
	b.evalMu.Lock()
	defer b.evalMu.Unlock()
	delete(b.evalCache, m)
}

//NumCachedSets returns how many eval matrices have cached predictions.
func (b *Booster) NumCachedSets() int {
	b.evalMu.Lock()
	defer b.evalMu.Unlock()
	return len(b.evalCache)
}

//Finish ends training. The training matrix is released and further updates fail with ErrNotReady.
func (b *Booster) Finish() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Ready && b.state != Training {
		return errors.Wrapf(ErrNotReady, "finish in state %s", b.state)
	}
	b.state = Trained
	b.binned = nil
	b.grads = nil
	return nil
}

//Predict returns the finalized prediction for one row: the regression value, the argmax class,
//or the class probabilities. Missing values are NaN.
func (b *Booster) Predict(row []float64) ([]float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state == Uninitialized {
		return nil, errors.Wrap(ErrNotReady, "predict on an uninitialized booster")
	}
	if len(row) != b.numFeatures {
		return nil, errors.Wrapf(ErrInvalidConfig, "row has %d features, model has %d", len(row), b.numFeatures)
	}
	return b.objective.FinalizePrediction(b.rawScores(row, b.trees)), nil
}

func (b *Booster) rawScores(row []float64, trees []OneTree) []float64 {
	raw := make([]float64, b.numGroups)
	for group := range raw {
		raw[group] = b.params.BaseScore
	}
	for _, tree := range trees {
		raw[tree.Group] += tree.PredictRow(row)
	}
	return raw
}

//PredictOptions selects the output of PredictMatrix.
type PredictOptions struct {
	//OutputMargin returns the raw scores instead of finalized predictions.
	OutputMargin bool
	//TreeLimit uses only the trees of the first TreeLimit rounds; 0 means all rounds.
	TreeLimit int
}

//PredictMatrix predicts every row of m. The result has one row per matrix row and one
//column per output value.
func (b *Booster) PredictMatrix(m *DMatrix, opts PredictOptions) (*mat.Dense, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state == Uninitialized {
		return nil, errors.Wrap(ErrNotReady, "predict on an uninitialized booster")
	}
	if m == nil {
		return nil, errors.Wrap(ErrEmptyInput, "no matrix to predict")
	}
	if m.NumCols() != b.numFeatures {
		return nil, errors.Wrapf(ErrInvalidConfig, "matrix has %d features, model has %d", m.NumCols(), b.numFeatures)
	}
	if opts.TreeLimit < 0 || opts.TreeLimit > b.rounds {
		return nil, errors.Wrapf(ErrOutOfRange, "tree limit %d of %d rounds", opts.TreeLimit, b.rounds)
	}
	trees := b.trees
	if opts.TreeLimit > 0 {
		trees = trees[:opts.TreeLimit*b.numGroups]
	}

	width := b.objective.OutputSize()
	if opts.OutputMargin {
		width = b.numGroups
	}
	result := mat.NewDense(m.NumRows(), width, nil)

	taskPool := NewPool(b.params.NThread)
	for _, chunk := range m.AllRows().Chunks(histogramChunkRows) {
		chunkRows := chunk
		taskPool.AddTask(TaskFunc(func() error {
			row := make([]float64, m.NumCols())
			for it := chunkRows.Iterator(); it.HasNext(); {
				p := it.GetNext()
				for q := range row {
					row[q] = m.columns.At(q, p)
				}
				out := b.rawScores(row, trees)
				if !opts.OutputMargin {
					out = b.objective.FinalizePrediction(out)
				}
				result.SetRow(p, out)
			}
			return nil
		}))
	}
	taskPool.Close()
	if err := taskPool.WaitAll(); err != nil {
		return nil, err
	}
	return result, nil
}
