package hbl

//RowIterable is the interface for iteration over a collection of row indices.
type RowIterable interface {
	HasNext() bool
	GetNext() int
}

//Range is an iterator over half interval [begin, end) with the step step.
type Range struct {
	begin, end, step, pos int
}

//NewRange initializes a new iterator over a half interval.
func NewRange(start, end, step int) *Range {
	return &Range{start, end, step, start}
}

//GetNext returns the next element from the iterator and moves iterator to the next position.
func (r *Range) GetNext() int {
	val := r.pos
	r.pos += r.step
	return val
}

//HasNext checks whether there are more values in the iterator.
func (r *Range) HasNext() bool {
	if r.step > 0 {
		return r.pos < r.end
	}
	return r.pos > r.end
}

//RowsView is an immutable ordered subset of matrix rows. Every call to Iterator
//starts a fresh pass, so a view can be scanned any number of times.
type RowsView struct {
	rows []int
}

//Len returns the number of rows in the view.
func (v RowsView) Len() int {
	return len(v.rows)
}

//Iterator returns a new iterator positioned at the first row of the view.
func (v RowsView) Iterator() RowIterable {
	return &viewIterator{rows: v.rows}
}

//Slice returns the rows [begin, end) of the view. It shares storage with the receiver.
func (v RowsView) Slice(begin, end int) RowsView {
	return RowsView{rows: v.rows[begin:end:end]}
}

//Indices returns a copy of the row indices.
func (v RowsView) Indices() []int {
	return append([]int(nil), v.rows...)
}

//Chunks splits the view into consecutive pieces of at most size rows.
func (v RowsView) Chunks(size int) []RowsView {
	if size <= 0 || len(v.rows) <= size {
		return []RowsView{v}
	}
	chunks := make([]RowsView, 0, (len(v.rows)+size-1)/size)
	for begin := 0; begin < len(v.rows); begin += size {
		end := begin + size
		if end > len(v.rows) {
			end = len(v.rows)
		}
		chunks = append(chunks, v.Slice(begin, end))
	}
	return chunks
}

type viewIterator struct {
	rows []int
	pos  int
}

func (it *viewIterator) HasNext() bool {
	return it.pos < len(it.rows)
}

func (it *viewIterator) GetNext() int {
	val := it.rows[it.pos]
	it.pos++
	return val
}

//collectRows drains an iterator into a view.
func collectRows(it RowIterable) RowsView {
	rows := make([]int, 0)
	for it.HasNext() {
		rows = append(rows, it.GetNext())
	}
	return RowsView{rows: rows}
}
