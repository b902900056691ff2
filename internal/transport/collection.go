package transport

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/nimbus/internal/db"
	"github.com/beanbocchi/nimbus/internal/model"
	"github.com/beanbocchi/nimbus/internal/service"
	"github.com/beanbocchi/nimbus/pkg/response"
)

func toCollection(c db.Collection) response.Collection {
	return response.Collection{
		Name:         c.Name,
		Versioning:   c.Versioning,
		CreationTime: time.Unix(0, c.CreatedAt).UTC().Format(http.TimeFormat),
	}
}

// owner checks that the path user is the authenticated one.
func owner(c echo.Context) (string, error) {
	user := c.Param("user")
	if id := identity(c); id.UserName != user {
		return "", model.ErrForbidden.Fmt(id.UserName, user)
	}
	return user, nil
}

type CreateCollectionRequest struct {
	Action     string `query:"action" validate:"required,eq=create"`
	Name       string `query:"name" validate:"required,collection_name"`
	Versioning bool   `query:"versioning"`
}

func (h *Handler) CreateCollection(c echo.Context) error {
	user, err := owner(c)
	if err != nil {
		return writeError(c, err)
	}
	var req CreateCollectionRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return writeError(c, err)
	}

	collection, err := h.svc.CreateCollection(c.Request().Context(), service.CreateCollectionParams{
		Owner:         user,
		Name:          req.Name,
		Versioning:    req.Versioning,
		AccessControl: body,
	})
	if err != nil {
		return writeError(c, err)
	}
	return response.JSON(c.Response().Writer, http.StatusCreated, toCollection(collection))
}

func (h *Handler) ListCollections(c echo.Context) error {
	user, err := owner(c)
	if err != nil {
		return writeError(c, err)
	}

	collections, err := h.svc.ListCollections(c.Request().Context(), user)
	if err != nil {
		return writeError(c, err)
	}

	result := make([]response.Collection, 0, len(collections))
	for _, collection := range collections {
		result = append(result, toCollection(collection))
	}
	return response.JSON(c.Response().Writer, http.StatusOK, result)
}

type UpdateCollectionRequest struct {
	Versioning    string `query:"versioning" validate:"omitempty,oneof=true false"`
	AccessControl string `query:"access_control" validate:"omitempty,eq=update"`
}

// UpdateCollection toggles versioning or replaces the access control
// document, which is echoed back.
func (h *Handler) UpdateCollection(c echo.Context) error {
	user, err := owner(c)
	if err != nil {
		return writeError(c, err)
	}
	var req UpdateCollectionRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}

	params := service.UpdateCollectionParams{Owner: user, Name: c.Param("name")}
	switch {
	case req.Versioning != "":
		enabled, _ := strconv.ParseBool(req.Versioning)
		params.Versioning = &enabled
	case req.AccessControl != "":
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return writeError(c, err)
		}
		params.AccessControl = body
	default:
		return writeError(c, model.ErrValidation.Fmt("one of versioning or access_control is required"))
	}

	collection, err := h.svc.UpdateCollection(c.Request().Context(), params)
	if err != nil {
		return writeError(c, err)
	}

	if params.AccessControl == nil {
		return response.FromMessage(c.Response().Writer, http.StatusOK)
	}
	doc := collection.AccessControl.String
	if doc == "" {
		doc = "{}"
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(doc))
}

type SpaceUsageRequest struct {
	Action string `query:"action" validate:"required,eq=space_usage"`
}

func (h *Handler) SpaceUsage(c echo.Context) error {
	user, err := owner(c)
	if err != nil {
		return writeError(c, err)
	}
	var req SpaceUsageRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}

	usage, err := h.svc.SpaceUsage(c.Request().Context(), user, c.Param("name"))
	if err != nil {
		return writeError(c, err)
	}
	return response.JSON(c.Response().Writer, http.StatusOK, response.SpaceUsage{
		Success:       true,
		KeyCount:      usage.KeyCount,
		VersionCount:  usage.VersionCount,
		BytesStored:   usage.BytesStored,
		UploadsActive: usage.UploadsActive,
	})
}

func (h *Handler) DeleteCollection(c echo.Context) error {
	user, err := owner(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.svc.DeleteCollection(c.Request().Context(), service.DeleteCollectionParams{
		Owner: user,
		Name:  c.Param("name"),
	}); err != nil {
		return writeError(c, err)
	}
	return response.FromMessage(c.Response().Writer, http.StatusOK)
}
