package transport

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/nimbus/internal/db"
	"github.com/beanbocchi/nimbus/internal/service"
	"github.com/beanbocchi/nimbus/pkg/response"
)

func toConjoined(c db.Conjoined) response.Conjoined {
	format := func(nanos int64) string {
		return time.Unix(0, nanos).UTC().Format(http.TimeFormat)
	}
	result := response.Conjoined{
		ConjoinedIdentifier: c.ID,
		Key:                 c.Key,
		CreateTimestamp:     format(c.CreatedAt),
	}
	if c.AbortedAt.Valid {
		result.AbortTimestamp = format(c.AbortedAt.Int64)
	}
	if c.CompletedAt.Valid {
		result.CompleteTimestamp = format(c.CompletedAt.Int64)
	}
	if c.DeletedAt.Valid {
		result.DeleteTimestamp = format(c.DeletedAt.Int64)
	}
	return result
}

type ListConjoinedRequest struct {
	MaxConjoined              int32  `query:"max_conjoined" validate:"omitempty,gt=0,lte=1000"`
	KeyMarker                 string `query:"key_marker"`
	ConjoinedIdentifierMarker string `query:"conjoined_identifier_marker"`
}

func (h *Handler) ListConjoined(c echo.Context) error {
	collection, err := collectionName(c)
	if err != nil {
		return writeError(c, err)
	}
	var req ListConjoinedRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}

	result, err := h.svc.ListConjoined(c.Request().Context(), service.ListConjoinedParams{
		Owner:        identity(c).UserName,
		Collection:   collection,
		KeyMarker:    req.KeyMarker,
		IDMarker:     req.ConjoinedIdentifierMarker,
		MaxConjoined: req.MaxConjoined,
	})
	if err != nil {
		return writeError(c, err)
	}

	listing := response.ConjoinedListing{
		ConjoinedList: make([]response.Conjoined, 0, len(result.Data)),
		Truncated:     result.Truncated,
	}
	for _, conjoined := range result.Data {
		listing.ConjoinedList = append(listing.ConjoinedList, toConjoined(conjoined))
	}
	return response.JSON(c.Response().Writer, http.StatusOK, listing)
}

type ConjoinedRequest struct {
	Action              string `query:"action" validate:"required,oneof=start finish abort"`
	ConjoinedIdentifier string `query:"conjoined_identifier" validate:"required_unless=Action start"`
}

// Conjoined starts, finishes or aborts a multipart upload.
func (h *Handler) Conjoined(c echo.Context) error {
	collection, err := collectionName(c)
	if err != nil {
		return writeError(c, err)
	}
	var req ConjoinedRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}

	params := service.ConjoinedParams{
		Owner:       identity(c).UserName,
		Collection:  collection,
		Key:         keyName(c, "/conjoined/"),
		ConjoinedID: req.ConjoinedIdentifier,
	}

	var conjoined db.Conjoined
	ctx := c.Request().Context()
	switch req.Action {
	case "start":
		conjoined, err = h.svc.StartConjoined(ctx, params)
	case "finish":
		conjoined, err = h.svc.FinishConjoined(ctx, params)
	case "abort":
		conjoined, err = h.svc.AbortConjoined(ctx, params)
	}
	if err != nil {
		return writeError(c, err)
	}
	return response.JSON(c.Response().Writer, http.StatusOK, toConjoined(conjoined))
}
