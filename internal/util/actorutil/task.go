package actorutil

import (
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

var ErrEmptyTaskResult = errors.New("background task returned no result")

// BackgroundTask runs a blocking call (a meter read, typically) outside the
// actor goroutine and delivers the outcome as a message. A recover function
// turns failures and timeouts into a value, so the owner always gets an
// answer it can use to leave its waiting state.
type BackgroundTask[T any] struct {
	system  *actor.ActorSystem
	fn      func() (*T, error)
	timeout time.Duration
	recover func(error) T
}

func NewBackgroundTask[T any](ctx actor.Context, fn func() (*T, error)) *BackgroundTask[T] {
	return &BackgroundTask[T]{
		system: ctx.ActorSystem(),
		fn:     fn,
	}
}

// MapBackgroundTask converts the result of task. Timeout and recover must be
// set on the mapped task.
func MapBackgroundTask[T, R any](task *BackgroundTask[T], mapFn func(*T) *R) *BackgroundTask[R] {
	return &BackgroundTask[R]{
		system: task.system,
		fn: func() (*R, error) {
			r, err := task.fn()
			if err != nil {
				return nil, err
			}
			return mapFn(r), nil
		},
	}
}

func (t *BackgroundTask[T]) WithTimeout(timeout time.Duration) *BackgroundTask[T] {
	t.timeout = timeout
	return t
}

func (t *BackgroundTask[T]) Recover(fn func(error) T) *BackgroundTask[T] {
	t.recover = fn
	return t
}

// PipeTo starts the task and sends its value to pid. Without a recover
// function a failed task sends nothing.
func (t *BackgroundTask[T]) PipeTo(pid *actor.PID) {
	go func() {
		if value, ok := t.Run(); ok {
			t.system.Root.Send(pid, value)
		}
	}()
}

// Run blocks until the task completes or times out.
func (t *BackgroundTask[T]) Run() (T, bool) {
	task := io.Eval(func() (T, error) {
		var zero T
		r, err := t.fn()
		if err != nil {
			return zero, err
		}
		if r == nil {
			return zero, ErrEmptyTaskResult
		}
		return *r, nil
	})
	if t.timeout > 0 {
		task = io.WithTimeout[T](t.timeout)(task)
	}
	result := io.RunSync(task)
	if result.Error == nil {
		return result.Value, true
	}
	if t.recover == nil {
		var zero T
		return zero, false
	}
	return t.recover(result.Error), true
}
