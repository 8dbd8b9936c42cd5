package actorutil

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundTaskRun(t *testing.T) {
	v := 42
	task := &BackgroundTask[int]{fn: func() (*int, error) { return &v, nil }}

	value, ok := task.Run()
	assert.True(t, ok)
	assert.Equal(t, 42, value)
}

func TestBackgroundTaskFailure(t *testing.T) {
	readErr := errors.New("modbus: request timed out")
	task := &BackgroundTask[int]{fn: func() (*int, error) { return nil, readErr }}

	_, ok := task.Run()
	assert.False(t, ok)

	var recovered error
	value, ok := task.Recover(func(err error) int {
		recovered = err
		return -1
	}).Run()
	assert.True(t, ok)
	assert.Equal(t, -1, value)
	assert.ErrorIs(t, recovered, readErr)
}

func TestBackgroundTaskEmptyResult(t *testing.T) {
	var recovered error
	task := &BackgroundTask[int]{fn: func() (*int, error) { return nil, nil }}
	_, ok := task.Recover(func(err error) int {
		recovered = err
		return 0
	}).Run()

	assert.True(t, ok)
	assert.ErrorIs(t, recovered, ErrEmptyTaskResult)
}

func TestBackgroundTaskTimeout(t *testing.T) {
	task := &BackgroundTask[int]{fn: func() (*int, error) {
		time.Sleep(time.Second)
		v := 1
		return &v, nil
	}}

	start := time.Now()
	value, ok := task.WithTimeout(20 * time.Millisecond).Recover(func(error) int { return -1 }).Run()
	assert.True(t, ok)
	assert.Equal(t, -1, value)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestBackgroundTaskMapAndPipe(t *testing.T) {
	system := actor.NewActorSystem()
	defer system.Shutdown()

	received := make(chan string, 1)
	pid := system.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if msg, ok := ctx.Message().(string); ok {
			received <- msg
		}
	}))

	v := 7
	task := &BackgroundTask[int]{system: system, fn: func() (*int, error) { return &v, nil }}
	MapBackgroundTask(task, func(i *int) *string {
		s := "reading " + strconv.Itoa(*i)
		return &s
	}).PipeTo(pid)

	select {
	case msg := <-received:
		require.Equal(t, "reading 7", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no message piped")
	}
}
