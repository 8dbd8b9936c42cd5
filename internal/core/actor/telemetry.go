package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/engymgr/internal/config"
	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/core/service"
	. "github.com/berfenger/engymgr/internal/util/actorutil"
	"github.com/berfenger/engymgr/pkg/sdm_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const TELEMETRY_REQUEST_TIMEOUT = 1 * time.Second

// TelemetryActor polls the meter and feeds every cycle into the meter bank.
type TelemetryActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	modbusActor *actor.PID
	config      *config.Config
	bank        *service.MeterBank
	cycles      uint64
	failures    uint64

	logger *zap.Logger
}

type telemetryTick struct {
}

func NewTelemetryActor(config *config.Config, modbusActor *actor.PID, bank *service.MeterBank, logger *zap.Logger) *TelemetryActor {
	act := &TelemetryActor{
		config:      config,
		modbusActor: modbusActor,
		bank:        bank,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_TELEMETRY, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *TelemetryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *TelemetryActor) pollInterval() time.Duration {
	return time.Duration(state.config.MonitorConfig.PollIntervalMillis) * time.Millisecond
}

func (state *TelemetryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("telemetry@default started")
		if state.pollInterval() > 0 {
			state.scheduler = scheduler.NewTimerScheduler(ctx)
			state.scheduler.RequestOnce(state.pollInterval(), ctx.Self(), telemetryTick{})
		}
	case *actor.Restarting:
	case domain.ActorHealthRequest:
		state.logger.Debug("telemetry@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_TELEMETRY,
			Healthy: true,
			State:   fmt.Sprintf("cycles=%d failures=%d", state.cycles, state.failures),
		})
	case telemetryTick:
		state.logger.Debug("telemetry@default tick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.GetMeterReadingsRequest{}, TELEMETRY_REQUEST_TIMEOUT), func(err error) any {
			return domain.GetMeterReadingsResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		})

		// schedule next tick
		state.scheduler.RequestOnce(state.pollInterval(), ctx.Self(), telemetryTick{})
		state.behavior.BecomeStacked(state.WaitingReadingsReceive)
	default:
		state.logger.Debug("telemetry@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *TelemetryActor) WaitingReadingsReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetMeterReadingsResponse:
		if msg.HasResponseError() || msg.Readings == nil {
			state.failures++
			state.logger.Error("telemetry@waiting GetMeterReadingsResponse error", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Debug("telemetry@waiting GetMeterReadingsResponse")
			state.cycles++
			state.ingest(msg.Readings)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case telemetryTick:
		// a read is still in flight, skip this cycle
		state.logger.Debug("telemetry@waiting tick skipped")
		state.scheduler.RequestOnce(state.pollInterval(), ctx.Self(), telemetryTick{})
	default:
		state.logger.Debug("telemetry@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *TelemetryActor) ingest(readings *sdm_modbus.MeterReadings) {
	cycles := []struct {
		category domain.MeterCategory
		values   sdm_modbus.PhaseReadings
	}{
		{domain.MeterCategoryCurrent, readings.Current},
		{domain.MeterCategoryVoltage, readings.Voltage},
		{domain.MeterCategoryPower, readings.Power},
		{domain.MeterCategoryEnergy, readings.Energy},
	}
	for _, cycle := range cycles {
		err := state.bank.IngestCycle(cycle.category, cycle.values.Slice())
		switch {
		case errors.Is(err, domain.ErrMeterBusy):
			state.logger.Debug("telemetry@ingest meter busy, cycle dropped", zap.Stringer("category", cycle.category))
		case err != nil:
			state.logger.Warn("telemetry@ingest failed", zap.Stringer("category", cycle.category), zap.Error(err))
		}
	}
}
