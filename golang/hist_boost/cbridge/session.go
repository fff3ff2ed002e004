package main

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/tarstars/hist_boosting/golang/hist_boost/dataset"
	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

//session is the booster behind a C handle. Parameters are collected until the first
//update, which quantizes the training matrix and creates the engine booster.
type session struct {
	mu      sync.Mutex
	cache   []uint64
	params  hbl.Params
	booster *hbl.Booster
	train   *hbl.DMatrix
}

//registry owns every object handed out through the C interface.
type registry struct {
	mu         sync.Mutex
	nextHandle uint64
	matrices   map[uint64]*hbl.DMatrix
	sessions   map[uint64]*session

	lastErrorMu sync.Mutex
	lastError   string
}

//engine returns the trained booster, or ErrNotReady before the first successful update.
func (s *session) engine(action string) (*hbl.Booster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.booster == nil {
		return nil, errors.Wrapf(hbl.ErrNotReady, "%s before the first update", action)
	}
	return s.booster, nil
}

func newRegistry() *registry {
	return &registry{
		nextHandle: 1,
		matrices:   make(map[uint64]*hbl.DMatrix),
		sessions:   make(map[uint64]*session),
	}
}

func (r *registry) setLastError(err error) {
	r.lastErrorMu.Lock()
	defer r.lastErrorMu.Unlock()
	if err != nil {
		r.lastError = err.Error()
	} else {
		r.lastError = ""
	}
}

func (r *registry) getLastError() string {
	r.lastErrorMu.Lock()
	defer r.lastErrorMu.Unlock()
	return r.lastError
}

func (r *registry) newHandle() uint64 {
	handle := r.nextHandle
	r.nextHandle++
	return handle
}

func (r *registry) storeMatrix(m *hbl.DMatrix) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle := r.newHandle()
	r.matrices[handle] = m
	return handle
}

func (r *registry) matrix(handle uint64) (*hbl.DMatrix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matrices[handle]
	if !ok {
		return nil, errors.Errorf("invalid matrix handle %d", handle)
	}
	return m, nil
}

func (r *registry) freeMatrix(handle uint64) {
	r.mu.Lock()
	m, ok := r.matrices[handle]
	delete(r.matrices, handle)
	r.mu.Unlock()
	if ok {
		r.forget(m)
	}
}

//forget drops the cached eval predictions of a matrix that no handle refers to any more.
func (r *registry) forget(m *hbl.DMatrix) {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		if booster, err := s.engine("forget"); err == nil {
			booster.Forget(m)
		}
	}
}

func (r *registry) session(handle uint64) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[handle]
	if !ok {
		return nil, errors.Errorf("invalid booster handle %d", handle)
	}
	return s, nil
}

func (r *registry) freeSession(handle uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, handle)
}

func (r *registry) matrixFromFile(uri string) (uint64, error) {
	m, err := dataset.Load(uri)
	if err != nil {
		return 0, err
	}
	return r.storeMatrix(m), nil
}

func (r *registry) matrixFromColMajor(data []float64, rows, cols int, missing float64) (uint64, error) {
	m, err := hbl.NewDMatrixFromColMajor(data, rows, cols, missing)
	if err != nil {
		return 0, err
	}
	return r.storeMatrix(m), nil
}

//setFloatInfo replaces the matrix behind handle with a copy carrying labels or weights.
func (r *registry) setFloatInfo(handle uint64, field string, values []float64) error {
	m, err := r.matrix(handle)
	if err != nil {
		return err
	}
	var updated *hbl.DMatrix
	switch field {
	case "label":
		updated, err = m.WithLabels(values)
	case "weight":
		updated, err = m.WithWeights(values)
	default:
		return errors.Wrapf(hbl.ErrInvalidConfig, "unknown float info %q", field)
	}
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.matrices[handle] = updated
	r.mu.Unlock()
	r.forget(m)
	return nil
}

func (r *registry) createSession(cache []uint64) (uint64, error) {
	for _, handle := range cache {
		if _, err := r.matrix(handle); err != nil {
			return 0, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	handle := r.newHandle()
	r.sessions[handle] = &session{cache: cache, params: hbl.DefaultParams()}
	return handle, nil
}

func (r *registry) setParam(handle uint64, name, value string) error {
	s, err := r.session(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.booster != nil {
		return errors.Wrapf(hbl.ErrInvalidConfig, "parameter %s set after training started", name)
	}
	return s.params.Set(name, value)
}

//updateOneIter runs one round. The engine booster is kept only once its first round
//succeeds; after that every round must be given the matrix it was built on.
func (r *registry) updateOneIter(handle uint64, iter int, train uint64) error {
	s, err := r.session(handle)
	if err != nil {
		return err
	}
	m, err := r.matrix(train)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.booster != nil {
		if s.train != nil && s.train != m {
			return errors.Wrapf(hbl.ErrInvalidConfig, "matrix %d is not the training matrix of booster %d", train, handle)
		}
		return s.booster.UpdateOneIteration(iter)
	}
	booster, err := hbl.NewBooster(m, s.params)
	if err != nil {
		return err
	}
	if err := booster.UpdateOneIteration(iter); err != nil {
		return err
	}
	s.booster = booster
	s.train = m
	return nil
}

func (r *registry) evalOneIter(handle uint64, iter int, sets []uint64, names []string) (string, error) {
	s, err := r.session(handle)
	if err != nil {
		return "", err
	}
	booster, err := s.engine("eval")
	if err != nil {
		return "", err
	}
	matrices := make([]*hbl.DMatrix, len(sets))
	for ind, set := range sets {
		if matrices[ind], err = r.matrix(set); err != nil {
			return "", err
		}
	}
	return booster.EvalOneIteration(iter, matrices, names)
}

//numFeature reports the training feature count, or the first cached matrix's before training.
func (r *registry) numFeature(handle uint64) (int, error) {
	s, err := r.session(handle)
	if err != nil {
		return 0, err
	}
	if booster, err := s.engine("num_feature"); err == nil {
		return booster.NumFeatures(), nil
	}
	if len(s.cache) == 0 {
		return 0, errors.Wrap(hbl.ErrNotReady, "booster has no data")
	}
	m, err := r.matrix(s.cache[0])
	if err != nil {
		return 0, err
	}
	return m.NumCols(), nil
}

func (r *registry) predict(handle, data uint64, outputMargin bool, treeLimit int) ([]float64, error) {
	s, err := r.session(handle)
	if err != nil {
		return nil, err
	}
	booster, err := s.engine("predict")
	if err != nil {
		return nil, err
	}
	m, err := r.matrix(data)
	if err != nil {
		return nil, err
	}
	prediction, err := booster.PredictMatrix(m, hbl.PredictOptions{OutputMargin: outputMargin, TreeLimit: treeLimit})
	if err != nil {
		return nil, err
	}
	return prediction.RawMatrix().Data, nil
}

func (r *registry) saveModel(handle uint64, fileName string) error {
	s, err := r.session(handle)
	if err != nil {
		return err
	}
	booster, err := s.engine("save")
	if err != nil {
		return err
	}
	return booster.Save(fileName)
}

func (r *registry) loadModel(fileName string) (uint64, error) {
	booster, err := hbl.LoadModel(fileName)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	handle := r.newHandle()
	r.sessions[handle] = &session{params: booster.Params(), booster: booster}
	return handle, nil
}
