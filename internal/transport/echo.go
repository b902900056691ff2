package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/beanbocchi/nimbus/internal/service"
	"github.com/beanbocchi/nimbus/pkg/auth"
	"github.com/beanbocchi/nimbus/pkg/validator"
)

type Options struct {
	// Domain is the service domain; collections are addressed as
	// <collection>.<Domain>.
	Domain string
	Users  []auth.Identity
	// ClockSkew bounds request timestamps; zero disables the check.
	ClockSkew time.Duration
	Now       func() time.Time
}

// NewEcho creates the emulator's HTTP surface.
func NewEcho(svc *service.Service, opts Options) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if opts.Now == nil {
		opts.Now = time.Now
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogHost:     true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("request",
				"method", v.Method,
				"host", v.Host,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	customVal, err := validator.New()
	if err != nil {
		return nil, err
	}
	e.Validator = customVal

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	SetupRoute(e, svc, opts)

	return e, nil
}
