package service

import (
	"context"
	"time"

	"github.com/reugn/go-quartz/quartz"
)

const STATE_PUBLISHER_JOB_KEY = "energy-state-publisher"

// StatePublisher pushes a state snapshot on every trigger.
type StatePublisher struct {
	manager *EnergyManager
}

func NewStatePublisher(manager *EnergyManager) *StatePublisher {
	return &StatePublisher{manager: manager}
}

func (j *StatePublisher) Execute(_ context.Context) error {
	j.manager.PublishSnapshot()
	return nil
}

func (j *StatePublisher) Description() string {
	return "publish energy state snapshot"
}

// ensure interface compliance
var _ quartz.Job = (*StatePublisher)(nil)

// ScheduleStatePublisher registers the snapshot job on a started scheduler.
func ScheduleStatePublisher(sched quartz.Scheduler, manager *EnergyManager, interval time.Duration) error {
	job := quartz.NewJobDetail(NewStatePublisher(manager), quartz.NewJobKey(STATE_PUBLISHER_JOB_KEY))
	return sched.ScheduleJob(job, quartz.NewSimpleTrigger(interval))
}
