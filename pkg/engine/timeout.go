package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/cellmesh/pkg/population"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout matches evaluations that ran past the engine timeout.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded matches evaluations overtaken by a newer Evaluate call.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// evalResult carries one evaluation from its goroutine.
type evalResult struct {
	pop    *population.Population
	errors []EvalError
	err    error
}

// await blocks until ch delivers or the engine timeout expires. A result
// whose generation is no longer current is discarded. On timeout the
// evaluation goroutine keeps running; its late result lands in the buffered
// channel and is dropped with it.
func (e *Engine) await(ch <-chan evalResult, gen uint64) (*population.Population, []EvalError, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if gen != e.generation.Load() {
			return nil, nil, ErrSuperseded
		}
		return res.pop, res.errors, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
}
