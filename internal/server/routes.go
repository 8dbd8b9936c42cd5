package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/engymgr/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type TelemetryRequest struct {
	Phase    int       `json:"phase"`
	Reading  *float64  `json:"reading,omitempty"`
	Readings []float64 `json:"readings,omitempty"`
}

type EnergyStateResponse struct {
	Snapshot         domain.EnergySnapshot `json:"snapshot"`
	Config           domain.EnergyConfig   `json:"config"`
	Ceilings         domain.EnergyCeilings `json:"ceilings"`
	PowerLimitWatts  int32                 `json:"power_limit_watts"`
	AvailableCurrent *int32                `json:"available_current,omitempty"`
}

type VersionResponse struct {
	Version    string    `json:"version"`
	Revision   string    `json:"revision"`
	LastCommit time.Time `json:"last_commit"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/version", s.VersionHandler)
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.GET("/energy/config", s.GetEnergyConfigHandler)
	api.POST("/energy/config", s.ConfigureEnergyHandler)
	api.GET("/energy/state", s.EnergyStateHandler)
	api.POST("/meters/energy/reset", s.ResetEnergyHandler)
	api.GET("/meters/:category", s.GetMeterHandler)
	api.POST("/meters/:category/telemetry", s.IngestTelemetryHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) VersionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, VersionResponse{
		Version:    versioninfo.Short(),
		Revision:   versioninfo.Revision,
		LastCommit: versioninfo.LastCommit,
	})
}

func (s *Server) GetEnergyConfigHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.EffectiveConfig())
}

func (s *Server) ConfigureEnergyHandler(c echo.Context) error {
	var req domain.ConfigureLimits
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg := s.manager.Configure(req)
	s.manager.PublishSnapshot()
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) EnergyStateHandler(c echo.Context) error {
	resp := EnergyStateResponse{
		Snapshot:        s.manager.Snapshot(),
		Config:          s.manager.EffectiveConfig(),
		Ceilings:        s.manager.Ceilings(),
		PowerLimitWatts: s.manager.PowerLimitWatts(),
	}
	if power, ok := s.bank.Read(domain.MeterCategoryPower); ok && power.Total != 0 {
		amps, _ := s.manager.AvailableCurrent(power)
		resp.AvailableCurrent = &amps
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) GetMeterHandler(c echo.Context) error {
	category, err := domain.ParseMeterCategory(c.Param("category"))
	if err != nil {
		return httpError(err)
	}
	data, ok := s.bank.Read(category)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no meter for category "+category.String())
	}
	return c.JSON(http.StatusOK, data.Readings())
}

func (s *Server) IngestTelemetryHandler(c echo.Context) error {
	category, err := domain.ParseMeterCategory(c.Param("category"))
	if err != nil {
		return httpError(err)
	}
	var req TelemetryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	switch {
	case len(req.Readings) > 0:
		err = s.bank.IngestCycle(category, req.Readings)
	case req.Reading != nil:
		// single readings follow the phases-before-total order of Ingest
		err = s.bank.Ingest(category, req.Phase, *req.Reading)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "reading or readings required")
	}
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) ResetEnergyHandler(c echo.Context) error {
	data, err := s.bank.ResetEnergy()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, data.Readings())
}

func httpError(err error) error {
	switch {
	case errors.Is(err, domain.ErrMeterBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidPhase),
		errors.Is(err, domain.ErrInvalidReading),
		errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrResetUnsupported):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
