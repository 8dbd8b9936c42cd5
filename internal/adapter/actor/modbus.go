package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/util/actorutil"
	"github.com/berfenger/engymgr/pkg/sdm_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	MODBUS_ACTOR_ID = domain.ACTOR_ID_MODBUS

	MODBUS_TASK_TIMEOUT = 2 * time.Second
)

// ModbusActor serializes every access to the meter. Requests received
// while a read is in flight are stashed until it completes.
type ModbusActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	meter    sdm_modbus.MeterModbusReader
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewModbusActor(meter sdm_modbus.MeterModbusReader, logger *zap.Logger) *ModbusActor {
	act := &ModbusActor{
		meter:    meter,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(MODBUS_ACTOR_ID, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ModbusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		if err := state.meter.Open(); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("modbus@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default: ActorHealthRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      MODBUS_ACTOR_ID,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetMeterInfoRequest:
		state.logger.Debug("modbus@default: GetMeterInfoRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getMeterInfo),
			mapTaskResult[domain.GetMeterInfoResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetMeterInfoResponse{ActorResponseMixIn: domain.ErrorResponse(err)},
				replyTo: sender,
			}
		}).WithTimeout(MODBUS_TASK_TIMEOUT).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.GetMeterReadingsRequest:
		state.logger.Debug("modbus@default: GetMeterReadingsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getMeterReadings),
			mapTaskResult[domain.GetMeterReadingsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetMeterReadingsResponse{ActorResponseMixIn: domain.ErrorResponse(err)},
				replyTo: sender,
			}
		}).WithTimeout(MODBUS_TASK_TIMEOUT).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("modbus@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("modbus@WaitingModbus backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("modbus@WaitingModbus stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) close() {
	if err := state.meter.Close(); err != nil {
		state.logger.Warn("modbus close failed", zap.Error(err))
	}
}

func (state *ModbusActor) getMeterInfo() (*domain.GetMeterInfoResponse, error) {
	info, err := state.meter.GetInfo()
	if err != nil {
		state.logger.Error("modbus get info failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetMeterInfoResponse{Meter: info}, nil
}

func (state *ModbusActor) getMeterReadings() (*domain.GetMeterReadingsResponse, error) {
	readings, err := state.meter.GetReadings()
	if err != nil {
		state.logger.Error("modbus get readings failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetMeterReadingsResponse{Readings: readings}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
