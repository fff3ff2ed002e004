package hbl

import (
	"gorgonia.org/tensor"
)

//GradientPair is the first and second derivative of the loss for one row and one group.
type GradientPair struct {
	Grad float64
	Hess float64
}

//GradientBuffer stores the gradient pairs of one round in a rows x groups x 2 tensor.
type GradientBuffer struct {
	raw    *tensor.Dense
	data   []float64
	rows   int
	groups int
}

//NewGradientBuffer allocates a zeroed buffer.
func NewGradientBuffer(rows, groups int) *GradientBuffer {
	raw := tensor.New(tensor.WithShape(rows, groups, 2), tensor.Of(tensor.Float64))
	return &GradientBuffer{raw: raw, data: raw.Data().([]float64), rows: rows, groups: groups}
}

//Shape returns the tensor shape (rows, groups, 2).
func (g *GradientBuffer) Shape() tensor.Shape {
	return g.raw.Shape()
}

//At returns the pair of a row in a group.
func (g *GradientBuffer) At(row, group int) GradientPair {
	offset := (row*g.groups + group) * 2
	return GradientPair{Grad: g.data[offset], Hess: g.data[offset+1]}
}

//Set stores the pair of a row in a group.
func (g *GradientBuffer) Set(row, group int, pair GradientPair) {
	offset := (row*g.groups + group) * 2
	g.data[offset] = pair.Grad
	g.data[offset+1] = pair.Hess
}

//Group extracts the pairs of one group, one per row.
func (g *GradientBuffer) Group(group int) []GradientPair {
	out := make([]GradientPair, g.rows)
	for p := range out {
		out[p] = g.At(p, group)
	}
	return out
}

//PredictionBuffer stores cumulative raw scores in a rows x groups tensor.
type PredictionBuffer struct {
	raw    *tensor.Dense
	data   []float64
	rows   int
	groups int
}

//NewPredictionBuffer allocates a buffer where every score equals base.
func NewPredictionBuffer(rows, groups int, base float64) *PredictionBuffer {
	raw := tensor.New(tensor.WithShape(rows, groups), tensor.Of(tensor.Float64))
	data := raw.Data().([]float64)
	for i := range data {
		data[i] = base
	}
	return &PredictionBuffer{raw: raw, data: data, rows: rows, groups: groups}
}

//NumRows returns the number of rows.
func (pb *PredictionBuffer) NumRows() int {
	return pb.rows
}

//NumGroups returns the number of scores per row.
func (pb *PredictionBuffer) NumGroups() int {
	return pb.groups
}

//At returns the raw score of a row in a group.
func (pb *PredictionBuffer) At(row, group int) float64 {
	return pb.data[row*pb.groups+group]
}

//Add adds delta to the raw score of a row in a group.
func (pb *PredictionBuffer) Add(row, group int, delta float64) {
	pb.data[row*pb.groups+group] += delta
}

//Row returns the scores of one row. The slice aliases the buffer.
func (pb *PredictionBuffer) Row(row int) []float64 {
	return pb.data[row*pb.groups : (row+1)*pb.groups : (row+1)*pb.groups]
}

//Clone returns a deep copy.
func (pb *PredictionBuffer) Clone() *PredictionBuffer {
	raw := pb.raw.Clone().(*tensor.Dense)
	return &PredictionBuffer{raw: raw, data: raw.Data().([]float64), rows: pb.rows, groups: pb.groups}
}
