package service

import (
	"fmt"
	"sync"

	"github.com/berfenger/engymgr/internal/core/domain"
	"go.uber.org/zap"
)

// MeterChannel owns the data set of one category. Updates are serialized by
// a non-blocking guard: a concurrent callback fails with ErrMeterBusy
// instead of waiting.
type MeterChannel struct {
	category domain.MeterCategory
	mu       sync.Mutex
	data     domain.MeterDataSet
	manager  *EnergyManager
	logger   *zap.Logger
}

func NewMeterChannel(category domain.MeterCategory, variation int32, manager *EnergyManager) *MeterChannel {
	data := domain.NewMeterDataSet(category)
	if variation > 0 {
		data.Variation = variation
	}
	return &MeterChannel{
		category: category,
		data:     data,
		manager:  manager,
		logger:   manager.logger.With(zap.Stringer("category", category)),
	}
}

func (c *MeterChannel) Category() domain.MeterCategory {
	return c.category
}

// Ingest applies a single phase reading. An accepted total marks the cycle
// complete and triggers evaluation against whatever L1..L3 the channel holds
// at that moment, so sources must send the phases before the total. Sources
// that cannot guarantee that order should use IngestCycle.
func (c *MeterChannel) Ingest(phase int, reading float64) error {
	if !c.mu.TryLock() {
		return fmt.Errorf("ingest %s: %w", c.category, domain.ErrMeterBusy)
	}
	if err := c.data.UpdateAt(phase, reading, c.manager.clock.Now()); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("ingest %s: %w", c.category, err)
	}
	complete, ok := c.takeDirty()
	c.mu.Unlock()

	if ok {
		c.dispatch(complete)
	}
	return nil
}

// IngestCycle applies a [total, l1, l2, l3] cycle under one guard and
// evaluates once after the last slot. Shorter cycles are allowed.
func (c *MeterChannel) IngestCycle(readings []float64) error {
	if len(readings) > domain.PHASE_COUNT {
		return fmt.Errorf("ingest %s: %w: %d", c.category, domain.ErrInvalidPhase, len(readings)-1)
	}
	if !c.mu.TryLock() {
		return fmt.Errorf("ingest %s: %w", c.category, domain.ErrMeterBusy)
	}
	now := c.manager.clock.Now()
	for phase, reading := range readings {
		if err := c.data.UpdateAt(phase, reading, now); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("ingest %s: %w", c.category, err)
		}
	}
	complete, ok := c.takeDirty()
	c.mu.Unlock()

	if ok {
		c.dispatch(complete)
	}
	return nil
}

func (c *MeterChannel) Read() domain.MeterDataSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.Clone()
}

// ResetBaseline starts a new energy session.
func (c *MeterChannel) ResetBaseline() (domain.MeterDataSet, error) {
	if !c.mu.TryLock() {
		return domain.MeterDataSet{}, fmt.Errorf("reset %s: %w", c.category, domain.ErrMeterBusy)
	}
	err := c.data.ResetBaseline()
	data := c.data.Clone()
	c.mu.Unlock()

	if err != nil {
		return data, err
	}
	c.logger.Info("meter@reset baseline", zap.Float64("baseline", domain.FromFixed(data.Baseline)))
	c.manager.Evaluate(data)
	return data, nil
}

// takeDirty must be called with the guard held.
func (c *MeterChannel) takeDirty() (domain.MeterDataSet, bool) {
	if !c.data.Dirty {
		return domain.MeterDataSet{}, false
	}
	complete := c.data.Clone()
	c.data.Dirty = false
	return complete, true
}

func (c *MeterChannel) dispatch(data domain.MeterDataSet) {
	c.manager.Evaluate(data)
	c.manager.emit(domain.MeterUpdated{Data: data, At: c.manager.clock.Now()})

	if c.category == domain.MeterCategoryPower {
		amps, cableLimit := c.manager.AvailableCurrent(data)
		c.logger.Debug("meter@power available current", zap.Int32("amps", amps), zap.Int32("cable_limit", cableLimit))
		if amps < cableLimit {
			c.manager.emit(domain.AvailableCurrentChanged{Amps: amps})
		}
	}
}

// MeterBank holds one channel per category for the process lifetime.
type MeterBank struct {
	channels map[domain.MeterCategory]*MeterChannel
}

func NewMeterBank(manager *EnergyManager, variation int32, categories ...domain.MeterCategory) *MeterBank {
	if len(categories) == 0 {
		categories = domain.MeterCategories
	}
	bank := &MeterBank{
		channels: make(map[domain.MeterCategory]*MeterChannel, len(categories)),
	}
	for _, category := range categories {
		bank.channels[category] = NewMeterChannel(category, variation, manager)
	}
	return bank
}

func (b *MeterBank) Channel(category domain.MeterCategory) (*MeterChannel, bool) {
	ch, ok := b.channels[category]
	return ch, ok
}

// Ingest is the inbound telemetry callback. Categories without a channel
// are ignored.
func (b *MeterBank) Ingest(category domain.MeterCategory, phase int, reading float64) error {
	ch, ok := b.channels[category]
	if !ok {
		return nil
	}
	return ch.Ingest(phase, reading)
}

func (b *MeterBank) IngestCycle(category domain.MeterCategory, readings []float64) error {
	ch, ok := b.channels[category]
	if !ok {
		return nil
	}
	return ch.IngestCycle(readings)
}

func (b *MeterBank) Read(category domain.MeterCategory) (domain.MeterDataSet, bool) {
	ch, ok := b.channels[category]
	if !ok {
		return domain.MeterDataSet{}, false
	}
	return ch.Read(), true
}

func (b *MeterBank) ResetEnergy() (domain.MeterDataSet, error) {
	ch, ok := b.channels[domain.MeterCategoryEnergy]
	if !ok {
		return domain.MeterDataSet{}, fmt.Errorf("reset %s: %w", domain.MeterCategoryEnergy, domain.ErrResetUnsupported)
	}
	return ch.ResetBaseline()
}
