package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/engymgr/internal/config"
	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/core/service"
	"github.com/berfenger/engymgr/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	HADISCOVERY_ACTOR_ID = domain.ACTOR_ID_HA_DISCOVERY
)

// HADiscoveryActor announces the bridge, the manager entities and, when a
// meter is attached, the meter sensors. It stops once discovery is sent.
type HADiscoveryActor struct {
	config             *config.Config
	behavior           actor.Behavior
	stash              *actorutil.Stash
	manager            *service.EnergyManager
	modbusActor        *actor.PID
	mqttActor          *actor.PID
	modbusActorHealthy bool
	mqttActorHealthy   bool
	healthyRecv        int

	logger *zap.Logger
}

// NewHADiscoveryActor builds the discovery actor. modbusActor may be nil
// when telemetry is only pushed from outside.
func NewHADiscoveryActor(config *config.Config, manager *service.EnergyManager, modbusActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:      config,
		manager:     manager,
		modbusActor: modbusActor,
		mqttActor:   mqttActor,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) expectedHealthChecks() int {
	if state.modbusActor == nil {
		return 1
	}
	return 2
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		state.healthyRecv = 0
		state.modbusActorHealthy = state.modbusActor == nil
		state.mqttActorHealthy = false
		if state.modbusActor != nil {
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      domain.ACTOR_ID_MODBUS,
					Healthy: false,
				}
			})
		}
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_MODBUS:
				state.modbusActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv < state.expectedHealthChecks() {
			return
		}
		if !state.modbusActorHealthy || !state.mqttActorHealthy {
			panic(errors.New("MQTT Actor or Modbus Actor are not healthy"))
		}
		if state.modbusActor == nil {
			state.publishDiscovery(ctx, nil)
			return
		}
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.GetMeterInfoRequest{}, 2*time.Second), func(err error) any {
			return domain.GetMeterInfoResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		})
		state.behavior.Become(state.WaitingInfoReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PublishDiscoveryResponse:
		if msg.HasResponseError() {
			state.logger.Error("hadiscovery@done discovery failed", zap.Error(msg.GetResponseError()))
		}
	}
}

func (state *HADiscoveryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetMeterInfoResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@info: GetMeterInfoResponse", zap.Any("response", msg.Meter))
		state.publishDiscovery(ctx, &msg)
	default:
		state.logger.Debug("hadiscovery@info: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) publishDiscovery(ctx actor.Context, info *domain.GetMeterInfoResponse) {
	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(state.config.MQTT.BaseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	sensors = append(sensors, domain.ManagerSensors(domain.IdDevice(bridgeDevice))...)

	if info != nil && info.Meter != nil {
		meterDevice := domain.MeterDevice(info.Meter)
		meterDevice.ViaDevice = bridgeDevice.Id
		meterSensors := domain.MeterSensors(meterDevice)
		for i := range meterSensors {
			if i > 0 {
				meterSensors[i].Device = domain.IdDevice(meterDevice)
			}
			sensors = append(sensors, meterSensors[i])
		}
	}

	ctx.Request(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors:      sensors,
		Buttons:      domain.EnergyControlButtons(domain.IdDevice(bridgeDevice)),
		InputNumbers: domain.EnergyControlInputNumbers(domain.IdDevice(bridgeDevice), state.manager.Ceilings()),
	})

	// input numbers need a state right after discovery
	state.manager.PublishSnapshot()
	state.behavior.Become(state.Done)
}
