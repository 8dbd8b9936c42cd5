package actorutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an inbound MQTT command onto an energy
// command. Unknown entities yield a nil command and no error.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.EnergyCommand, error) {
	switch cmd.Command {
	case mqtt.COMMAND_NUMBER:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		switch cmd.DeviceId {
		case domain.INPUT_NUMBER_ID_CABLE_LIMIT:
			return domain.SetCableLimitCommand{Amps: int32(value)}, nil
		case domain.INPUT_NUMBER_ID_BACKEND_LIMIT:
			return domain.SetBackendLimitCommand{KW: int32(value)}, nil
		}
	case mqtt.COMMAND_BUTTON:
		if cmd.DeviceId == domain.BUTTON_ID_ENERGY_RESET {
			return domain.ResetEnergySessionCommand{}, nil
		}
	case mqtt.COMMAND_TELEMETRY:
		category, err := domain.ParseMeterCategory(cmd.DeviceId)
		if err != nil {
			return nil, err
		}
		var readings []float64
		if err := json.Unmarshal([]byte(cmd.Payload), &readings); err != nil {
			return nil, fmt.Errorf("telemetry %s: %w", category, err)
		}
		return domain.IngestTelemetryCommand{Category: category, Readings: readings}, nil
	}
	return nil, nil
}
