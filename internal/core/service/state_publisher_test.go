package service

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/reugn/go-quartz/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatePublisherExecute(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)
	m.SetCableLimit(16)
	job := NewStatePublisher(m)

	require.NoError(t, job.Execute(context.Background()))
	require.NoError(t, job.Execute(context.Background()))

	assert.Equal(t, 2, sink.count(domain.EVENT_STATE_SNAPSHOT))
	snap := sink.events[0].(domain.StateSnapshot)
	assert.Equal(t, int32(16), snap.Config.CableLimit)
	assert.NotEmpty(t, job.Description())
}

func TestScheduleStatePublisher(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)

	sched := quartz.NewStdScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	require.NoError(t, ScheduleStatePublisher(sched, m, 20*time.Millisecond))

	assert.Eventually(t, func() bool {
		return sink.count(domain.EVENT_STATE_SNAPSHOT) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	sched.Stop()
}
