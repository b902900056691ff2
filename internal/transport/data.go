package transport

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/nimbus/internal/db"
	"github.com/beanbocchi/nimbus/internal/model"
	"github.com/beanbocchi/nimbus/internal/service"
	"github.com/beanbocchi/nimbus/pkg/response"
)

// keyName is the decoded object name following prefix in the request path.
func keyName(c echo.Context, prefix string) string {
	return strings.TrimPrefix(c.Request().URL.Path, prefix)
}

func toListing(listing service.Listing) response.KeyListing {
	if listing.Rollup {
		prefixes := listing.Prefixes
		if prefixes == nil {
			prefixes = []string{}
		}
		return response.KeyListing{Prefixes: &prefixes, Truncated: listing.Truncated}
	}

	entries := make([]response.KeyEntry, 0, len(listing.Versions))
	for _, v := range listing.Versions {
		entries = append(entries, response.KeyEntry{
			Key:               v.Key,
			VersionIdentifier: v.ID,
			Timestamp:         service.LastModified(v).Format(http.TimeFormat),
		})
	}
	return response.KeyListing{KeyData: &entries, Truncated: listing.Truncated}
}

func setVersionHeaders(c echo.Context, v db.Version) {
	header := c.Response().Header()
	header.Set(response.HeaderVersionID, v.ID)
	header.Set(echo.HeaderLastModified, service.LastModified(v).Format(http.TimeFormat))
}

// conditions reads If-Modified-Since and If-Unmodified-Since.
func conditions(c echo.Context) (modifiedSince, unmodifiedSince null.Time, err error) {
	for _, cond := range []struct {
		name string
		dst  *null.Time
	}{
		{echo.HeaderIfModifiedSince, &modifiedSince},
		{"If-Unmodified-Since", &unmodifiedSince},
	} {
		value := c.Request().Header.Get(cond.name)
		if value == "" {
			continue
		}
		t, err := http.ParseTime(value)
		if err != nil {
			return null.Time{}, null.Time{}, model.ErrValidation.Fmt(fmt.Sprintf("%s: %v", cond.name, err))
		}
		*cond.dst = null.TimeFrom(t)
	}
	return modifiedSince, unmodifiedSince, nil
}

type ListKeysRequest struct {
	model.PaginationParams
}

func (h *Handler) listKeys(c echo.Context, collection string) error {
	var req ListKeysRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}

	listing, err := h.svc.ListKeys(c.Request().Context(), service.ListKeysParams{
		Owner:            identity(c).UserName,
		Collection:       collection,
		PaginationParams: req.PaginationParams,
	})
	if err != nil {
		return writeError(c, err)
	}
	return response.JSON(c.Response().Writer, http.StatusOK, toListing(listing))
}

type ListVersionsRequest struct {
	Versions        bool        `query:"versions" validate:"required"`
	Prefix          null.String `query:"prefix"`
	Delimiter       null.String `query:"delimiter"`
	KeyMarker       null.String `query:"key_marker"`
	VersionIDMarker string      `query:"version_id_marker"`
	MaxKeys         int32       `query:"max_keys" validate:"omitempty,gt=0,lte=1000"`
}

func (h *Handler) ListVersions(c echo.Context) error {
	collection, err := collectionName(c)
	if err != nil {
		return writeError(c, err)
	}
	var req ListVersionsRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}

	listing, err := h.svc.ListVersions(c.Request().Context(), service.ListVersionsParams{
		Owner:      identity(c).UserName,
		Collection: collection,
		PaginationParams: model.PaginationParams{
			Prefix:    req.Prefix,
			Delimiter: req.Delimiter,
			Marker:    req.KeyMarker,
			MaxKeys:   req.MaxKeys,
		},
		VersionIDMarker: req.VersionIDMarker,
	})
	if err != nil {
		return writeError(c, err)
	}
	return response.JSON(c.Response().Writer, http.StatusOK, toListing(listing))
}

type RetrieveRequest struct {
	VersionIdentifier string `query:"version_identifier"`
	Action            string `query:"action" validate:"omitempty,eq=meta"`
}

// Get serves the key listing, a key's metadata or its content.
func (h *Handler) Get(c echo.Context) error {
	collection, err := collectionName(c)
	if err != nil {
		return writeError(c, err)
	}
	key := keyName(c, "/data/")
	if key == "" {
		return h.listKeys(c, collection)
	}

	var req RetrieveRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}
	params := service.KeyParams{
		Owner:      identity(c).UserName,
		Collection: collection,
		Key:        key,
		VersionID:  req.VersionIdentifier,
	}

	if req.Action == "meta" {
		meta, err := h.svc.Metadata(c.Request().Context(), params)
		if err != nil {
			return writeError(c, err)
		}
		return response.JSON(c.Response().Writer, http.StatusOK, meta)
	}

	modifiedSince, unmodifiedSince, err := conditions(c)
	if err != nil {
		return writeError(c, err)
	}
	retrieval, err := h.svc.Retrieve(c.Request().Context(), service.RetrieveParams{
		KeyParams:         params,
		Range:             c.Request().Header.Get("Range"),
		IfModifiedSince:   modifiedSince,
		IfUnmodifiedSince: unmodifiedSince,
	})
	if err != nil {
		return writeError(c, err)
	}
	defer retrieval.Body.Close()

	setVersionHeaders(c, retrieval.Version)
	header := c.Response().Header()
	header.Set(echo.HeaderContentLength, strconv.FormatInt(retrieval.Length, 10))
	header.Set("Accept-Ranges", "bytes")

	status := http.StatusOK
	if retrieval.Partial {
		status = http.StatusPartialContent
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d",
			retrieval.Offset, retrieval.Offset+retrieval.Length-1, retrieval.Version.Size))
	}
	return c.Stream(status, echo.MIMEOctetStream, retrieval.Body)
}

func (h *Handler) Head(c echo.Context) error {
	collection, err := collectionName(c)
	if err != nil {
		return writeError(c, err)
	}
	var req RetrieveRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}
	modifiedSince, unmodifiedSince, err := conditions(c)
	if err != nil {
		return writeError(c, err)
	}

	version, err := h.svc.Stat(c.Request().Context(), service.RetrieveParams{
		KeyParams: service.KeyParams{
			Owner:      identity(c).UserName,
			Collection: collection,
			Key:        keyName(c, "/data/"),
			VersionID:  req.VersionIdentifier,
		},
		IfModifiedSince:   modifiedSince,
		IfUnmodifiedSince: unmodifiedSince,
	})
	if err != nil {
		return writeError(c, err)
	}

	setVersionHeaders(c, version)
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(version.Size, 10))
	return c.NoContent(http.StatusOK)
}

type ArchiveRequest struct {
	ConjoinedIdentifier string `query:"conjoined_identifier"`
	ConjoinedPart       int64  `query:"conjoined_part" validate:"required_with=ConjoinedIdentifier"`
}

func (h *Handler) Archive(c echo.Context) error {
	collection, err := collectionName(c)
	if err != nil {
		return writeError(c, err)
	}
	var req ArchiveRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}

	meta := map[string]string{}
	for name, values := range c.Request().Header {
		if suffix, ok := strings.CutPrefix(name, response.HeaderMetaPrefix); ok && suffix != "" && len(values) > 0 {
			meta[strings.ToLower(suffix)] = values[0]
		}
	}

	result, err := h.svc.Archive(c.Request().Context(), service.ArchiveParams{
		Owner:       identity(c).UserName,
		Collection:  collection,
		Key:         keyName(c, "/data/"),
		Body:        c.Request().Body,
		Metadata:    meta,
		ConjoinedID: req.ConjoinedIdentifier,
		Part:        req.ConjoinedPart,
	})
	if err != nil {
		return writeError(c, err)
	}

	c.Response().Header().Set(echo.HeaderLastModified, result.LastModified.Format(http.TimeFormat))
	return response.JSON(c.Response().Writer, http.StatusOK, response.Archived{
		VersionIdentifier: result.VersionID,
		Size:              result.Size,
	})
}

type DeleteRequest struct {
	VersionIdentifier string `query:"version_identifier"`
}

func (h *Handler) Delete(c echo.Context) error {
	collection, err := collectionName(c)
	if err != nil {
		return writeError(c, err)
	}
	var req DeleteRequest
	if err := bindQuery(c, &req); err != nil {
		return writeError(c, err)
	}

	if err := h.svc.DeleteKey(c.Request().Context(), service.KeyParams{
		Owner:      identity(c).UserName,
		Collection: collection,
		Key:        keyName(c, "/data/"),
		VersionID:  req.VersionIdentifier,
	}); err != nil {
		return writeError(c, err)
	}
	return response.FromMessage(c.Response().Writer, http.StatusOK)
}
