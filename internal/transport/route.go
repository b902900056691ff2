package transport

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/nimbus/internal/model"
	"github.com/beanbocchi/nimbus/internal/service"
	"github.com/beanbocchi/nimbus/pkg/response"
)

type Handler struct {
	svc *service.Service
}

func SetupRoute(e *echo.Echo, svc *service.Service, opts Options) {
	h := &Handler{svc: svc}
	api := e.Group("", resolveHost(opts.Domain), authenticate(opts))

	// account scope
	api.POST("/customers/:user/collections", h.CreateCollection)
	api.GET("/customers/:user/collections", h.ListCollections)
	api.PUT("/customers/:user/collections/:name", h.UpdateCollection)
	api.GET("/customers/:user/collections/:name", h.SpaceUsage)
	api.DELETE("/customers/:user/collections/:name", h.DeleteCollection)

	// collection scope
	api.GET("/", h.ListVersions)
	api.GET("/data/*", h.Get)
	api.HEAD("/data/*", h.Head)
	api.POST("/data/*", h.Archive)
	api.DELETE("/data/*", h.Delete)
	api.GET("/conjoined/*", h.ListConjoined)
	api.POST("/conjoined/*", h.Conjoined)
}

// writeError reports err with the status its model.Error carries. Bodies
// are omitted where HTTP forbids them.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var modelErr model.Error
	if errors.As(err, &modelErr) {
		status = modelErr.HTTPStatus()
	}
	if status == http.StatusNotModified || c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}
	return response.FromError(c.Response().Writer, status, err)
}

// bindQuery binds query parameters only, so that request bodies stay
// untouched for the handler.
func bindQuery(c echo.Context, req any) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, req); err != nil {
		return model.ErrValidation.Fmt(err.Error())
	}
	return c.Validate(req)
}
