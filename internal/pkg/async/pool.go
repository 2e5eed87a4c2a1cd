package async

import (
	"context"
	"fmt"
	"sync"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (any, error)
}

type Result struct {
	Name string
	Data any
	Err  error
}

// Pool runs batches of named tasks on a bounded number of workers. A Pool
// holds no channels of its own, so Execute may be called concurrently.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

func (p *Pool) worker(ctx context.Context, wg *sync.WaitGroup, tasks <-chan Task, results chan<- Result) {
	defer wg.Done()
	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				return
			}
			results <- run(ctx, task)
		case <-ctx.Done():
			return
		}
	}
}

// run executes a task, turning a panic into an error result.
func run(ctx context.Context, task Task) (result Result) {
	result.Name = task.Name
	defer func() {
		if r := recover(); r != nil {
			result.Data = nil
			result.Err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	result.Data, result.Err = task.Execute(ctx)
	return result
}

// Execute runs tasks and returns their results keyed by task name. Tasks
// that did not finish before ctx ended are missing from the map.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	results := make(map[string]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	taskCh := make(chan Task)
	resultCh := make(chan Result, len(tasks))

	workers := p.workerCount
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, taskCh, resultCh)
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < len(tasks); i++ {
		select {
		case result := <-resultCh:
			results[result.Name] = result
		case <-ctx.Done():
			return results
		}
	}

	wg.Wait()
	return results
}
