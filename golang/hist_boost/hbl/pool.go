package hbl

import (
	"log"

	"golang.org/x/sync/errgroup"
)

//Task is a unit of work executed by a Pool.
type Task interface {
	Run() error
}

//TaskFunc adapts an ordinary function to the Task interface.
type TaskFunc func() error

//Run calls f.
func (f TaskFunc) Run() error {
	return f()
}

//Pool runs tasks on a bounded number of goroutines. WaitAll is the barrier:
//it returns after every added task has finished, with the first task error.
type Pool struct {
	group  errgroup.Group
	closed bool
}

//NewPool creates a pool running at most threadsNum tasks at a time.
func NewPool(threadsNum int) *Pool {
	if threadsNum < 1 {
		threadsNum = 1
	}
	pool := &Pool{}
	pool.group.SetLimit(threadsNum)
	return pool
}

//AddTask schedules a task. It blocks while the pool is saturated.
func (pool *Pool) AddTask(task Task) {
	if pool.closed {
		log.Panic("add task to a closed pool")
	}
	pool.group.Go(task.Run)
}

//Close forbids adding new tasks.
func (pool *Pool) Close() {
	pool.closed = true
}

//WaitAll waits for all scheduled tasks.
func (pool *Pool) WaitAll() error {
	return pool.group.Wait()
}
