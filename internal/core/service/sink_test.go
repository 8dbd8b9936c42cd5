package service

import (
	"sync"

	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

type mockSink struct {
	mock.Mock
}

func (s *mockSink) Notify(event domain.EnergyEvent) {
	s.Called(event)
}

type collectSink struct {
	mu     sync.Mutex
	events []domain.EnergyEvent
}

func (s *collectSink) Notify(event domain.EnergyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) overLimits() []domain.OverLimit {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OverLimit
	for _, ev := range s.events {
		if ol, ok := ev.(domain.OverLimit); ok {
			out = append(out, ol)
		}
	}
	return out
}

func (s *collectSink) availableCurrents() []domain.AvailableCurrentChanged {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AvailableCurrentChanged
	for _, ev := range s.events {
		if ac, ok := ev.(domain.AvailableCurrentChanged); ok {
			out = append(out, ac)
		}
	}
	return out
}

func (s *collectSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.EventName() == name {
			n++
		}
	}
	return n
}
