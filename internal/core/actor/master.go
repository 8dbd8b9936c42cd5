package actor

import (
	"errors"
	"fmt"
	"time"

	adactor "github.com/berfenger/engymgr/internal/adapter/actor"
	"github.com/berfenger/engymgr/internal/config"
	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/core/service"
	. "github.com/berfenger/engymgr/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ModbusActorProvider func() *adactor.ModbusActor

// MasterOfPuppetsActor supervises the adapters and routes inbound energy
// commands to the manager and the meter bank.
type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	manager             *service.EnergyManager
	bank                *service.MeterBank
	modbusActor         *actor.PID
	mqttActor           *actor.PID
	telemetryActor      *actor.PID
	modbusActorProvider ModbusActorProvider
	mqttActorProvider   MQTTActorProvider
	logger              *zap.Logger
}

type healthCheckResult struct {
	expected       map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

// NewMasterOfPuppetsActor builds the root actor. A nil modbusActorProvider
// disables meter polling.
func NewMasterOfPuppetsActor(config config.Config, eventStream *eventstream.EventStream, manager *service.EnergyManager, bank *service.MeterBank,
	modbusActorProvider ModbusActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         eventStream,
		manager:             manager,
		bank:                bank,
		modbusActorProvider: modbusActorProvider,
		mqttActorProvider:   mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start Modbus and Telemetry children
		if state.modbusActorProvider != nil {
			modbusActorPID, err := state.startModbusActor(ctx)
			if err != nil {
				panic(err)
			}
			state.modbusActor = modbusActorPID

			telemetryActorPID, err := state.startTelemetryActor(ctx)
			if err != nil {
				panic(err)
			}
			state.telemetryActor = telemetryActorPID
		}

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset(state.children())

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		children := state.children()
		state.currentHealthCheck.reset(children)
		state.currentHealthCheck.respondTo = ForRequest(msg).ReplyTo(ctx)
		for id, pid := range children {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// translate MQTT command into an energy command
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command == nil {
			return
		}
		cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
		if err != nil {
			state.logger.Warn("master@default invalid command", zap.String("device", msg.Command.DeviceId), zap.Error(err))
			return
		}
		if _, ok := cmd.(domain.IngestTelemetryCommand); ok && !state.config.MonitorConfig.MQTTTelemetryEnable {
			state.logger.Debug("master@default mqtt telemetry disabled, dropped", zap.String("device", msg.Command.DeviceId))
			return
		}
		if cmd != nil {
			state.handleCommand(ctx, cmd, nil)
		}
	case domain.EnergyCommand:
		state.handleCommand(ctx, msg, ForRequest(msg).ReplyTo(ctx))
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MODBUS) {
			state.logger.Error("master@default modbus error")
			panic(errors.New("modbus terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// handleCommand applies a command and responds to replyTo when set.
func (state *MasterOfPuppetsActor) handleCommand(ctx actor.Context, cmd domain.EnergyCommand, replyTo *actor.PID) {
	resp := domain.EnergyCommandResponse{}
	switch c := cmd.(type) {
	case domain.SetCableLimitCommand:
		cfg := state.manager.SetCableLimit(c.Amps)
		resp.Config = &cfg
		state.manager.PublishSnapshot()
	case domain.SetBackendLimitCommand:
		cfg := state.manager.SetBackendLimit(c.KW)
		resp.Config = &cfg
		state.manager.PublishSnapshot()
	case domain.ConfigureLimitsCommand:
		cfg := state.manager.Configure(c.Limits)
		resp.Config = &cfg
		state.manager.PublishSnapshot()
	case domain.ResetEnergySessionCommand:
		if _, err := state.bank.ResetEnergy(); err != nil {
			resp.ActorResponseMixIn = domain.ErrorResponse(err)
		}
	case domain.IngestTelemetryCommand:
		if err := state.bank.IngestCycle(c.Category, c.Readings); err != nil {
			resp.ActorResponseMixIn = domain.ErrorResponse(err)
		}
	default:
		resp.ActorResponseMixIn = domain.ErrorResponse(fmt.Errorf("unsupported command %s", cmd.EnergyCommand()))
	}
	if resp.HasResponseError() {
		state.logger.Warn("master@command failed", zap.String("command", fmt.Sprintf("%T", cmd)), zap.Error(resp.GetResponseError()))
	}
	if replyTo != nil {
		ctx.Send(replyTo, resp)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if _, ok := state.currentHealthCheck.expected[msg.Id]; ok && msg.Healthy {
			state.currentHealthCheck.expected[msg.Id] = true
		}
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) children() map[string]*actor.PID {
	children := map[string]*actor.PID{
		domain.ACTOR_ID_MQTT: state.mqttActor,
	}
	if state.modbusActor != nil {
		children[domain.ACTOR_ID_MODBUS] = state.modbusActor
	}
	if state.telemetryActor != nil {
		children[domain.ACTOR_ID_TELEMETRY] = state.telemetryActor
	}
	return children
}

func (state *MasterOfPuppetsActor) startModbusActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return state.modbusActorProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(modbusProps, domain.ACTOR_ID_MODBUS)
}

func (state *MasterOfPuppetsActor) startTelemetryActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, state.restartDecider)

	telemetryProps := actor.PropsFromProducer(func() actor.Actor {
		return NewTelemetryActor(&state.config, state.modbusActor, state.bank, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(telemetryProps, domain.ACTOR_ID_TELEMETRY)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, state.restartDecider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.manager, state.modbusActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, HADISCOVERY_ACTOR_ID)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *MasterOfPuppetsActor) restartDecider(reason interface{}) actor.Directive {
	state.logger.Warn("master handling failure for child", zap.Any("reason", reason))
	return actor.RestartDirective
}

func (state *healthCheckResult) reset(children map[string]*actor.PID) {
	state.expected = make(map[string]bool, len(children))
	for id := range children {
		state.expected[id] = false
	}
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, healthy := range state.expected {
		if !healthy {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
