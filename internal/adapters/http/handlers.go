package http

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/usecases"
)

const (
	maxQueryLen  = 200
	maxRadiusKm  = 100
	maxBulkCafes = 1000
)

// ---- Cafes ----

// ListCafesHandler returns a page of the visible cafe list, optionally
// filtered by text and by distance from a point.
func ListCafesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := cafeQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		cafes, err := deps.Cafes.List(c.UserContext(), q)
		if err != nil {
			return errFrom(c, err)
		}

		offset, limit := pageParams(c)
		page, pg := paginate(cafes, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

func cafeQuery(c *fiber.Ctx) (usecases.CafeQuery, error) {
	q := usecases.CafeQuery{Text: strings.TrimSpace(c.Query("q"))}
	if len(q.Text) > maxQueryLen {
		return q, errors.New("query too long (max 200 characters)")
	}

	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" && lonStr == "" {
		if c.Query("radius_km") != "" {
			return q, errors.New("radius_km needs lat and lon")
		}
		return q, nil
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lon, err2 := strconv.ParseFloat(lonStr, 64)
	if err1 != nil || err2 != nil {
		return q, errors.New("lat and lon must both be numbers")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return q, errors.New("lat or lon out of range")
	}
	q.Near = &domain.GeoPoint{Lat: lat, Lon: lon}

	if r := c.Query("radius_km"); r != "" {
		radius, err := strconv.ParseFloat(r, 64)
		if err != nil || radius <= 0 || radius > maxRadiusKm {
			return q, errors.New("radius_km must be between 0 and 100")
		}
		q.RadiusKm = radius
	}
	return q, nil
}

// GetCafeHandler returns one visible cafe.
func GetCafeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cafe, err := deps.Cafes.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(cafe)
	}
}

// RefreshCafesHandler drops the cached open data and pulls it again.
func RefreshCafesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cafes, err := deps.Cafes.Refresh(c.UserContext())
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(fiber.Map{"count": len(cafes)})
	}
}

// ---- Navigation ----

// GeocodeHandler resolves an address inside the configured area.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := c.Query("q")
		if len(q) > maxQueryLen {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		point, ok, err := deps.Geocode.Geocode(c.UserContext(), q)
		if err != nil {
			return errFrom(c, err)
		}
		if !ok {
			return errNotFound(c, "no match for "+strconv.Quote(q))
		}
		return c.JSON(point)
	}
}

// RouteHandler plans a driving route. from and to are "lat,lon".
func RouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := parsePoint(c.Query("from"))
		if err != nil {
			return errBadRequest(c, "from: "+err.Error())
		}
		to, err := parsePoint(c.Query("to"))
		if err != nil {
			return errBadRequest(c, "to: "+err.Error())
		}

		route, err := deps.Routes.Plan(c.UserContext(), from, to)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(route)
	}
}

func parsePoint(s string) (domain.GeoPoint, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return domain.GeoPoint{}, errors.New(`expected "lat,lon"`)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.GeoPoint{}, errors.New("lat is not a number")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return domain.GeoPoint{}, errors.New("lon is not a number")
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, nil
}

// ---- Custom store ----

// AddCustomCafeHandler stores a user-submitted cafe.
func AddCustomCafeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var form domain.CafeForm
		if err := c.BodyParser(&form); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		id, err := deps.Custom.Add(c.UserContext(), form)
		if err != nil {
			return errFrom(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	}
}

// ListCustomCafesHandler returns the user-submitted cafes. A failing store
// yields an empty list.
func ListCustomCafesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(nonNil(deps.Custom.List(c.UserContext())))
	}
}

// UpdateCustomCafeHandler applies the fields present in the body.
func UpdateCustomCafeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var patch domain.CafePatch
		if err := c.BodyParser(&patch); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Custom.Update(c.UserContext(), c.Params("id"), patch); err != nil {
			return errFrom(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DeleteCustomCafeHandler removes a user-submitted cafe.
func DeleteCustomCafeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Custom.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFrom(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type bulkRequest struct {
	Cafes []domain.Cafe `json:"cafes"`
}

// BulkAddHandler copies many cafes into the store at once.
func BulkAddHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req bulkRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Cafes) == 0 {
			return errBadRequest(c, "cafes must not be empty")
		}
		if len(req.Cafes) > maxBulkCafes {
			return errBadRequest(c, "too many cafes (max 1000 per request)")
		}

		res, err := deps.Custom.BulkAdd(c.UserContext(), req.Cafes)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(res)
	}
}

// SubmitReportHandler records an issue report about a cafe.
func SubmitReportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var report domain.IssueReport
		if err := c.BodyParser(&report); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Custom.SubmitIssueReport(c.UserContext(), report); err != nil {
			return errFrom(c, err)
		}
		return c.SendStatus(fiber.StatusCreated)
	}
}

// ListReportsHandler returns submitted reports for moderators.
func ListReportsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(nonNil(deps.Custom.ListIssueReports(c.UserContext())))
	}
}

// ListOverridesHandler returns the overrides keyed by original cafe id.
func ListOverridesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Custom.ListOverrides(c.UserContext()))
	}
}

// SaveOverrideHandler creates or replaces the override of the cafe in the
// path. The path id wins over any original_id in the body.
func SaveOverrideHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var o domain.Override
		if err := c.BodyParser(&o); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		o.OriginalID = c.Params("id")
		if err := deps.Custom.SaveOverride(c.UserContext(), o); err != nil {
			return errFrom(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DeleteOverrideHandler removes the override of a cafe.
func DeleteOverrideHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Custom.DeleteOverride(c.UserContext(), c.Params("id")); err != nil {
			return errFrom(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ---- Visits ----

type visitResponse struct {
	domain.VisitStats
	Counted bool `json:"counted"`
}

// RecordVisitHandler counts the caller's session once.
func RecordVisitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, counted, err := deps.Visits.RecordVisit(c.UserContext(), SessionID(c))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(visitResponse{VisitStats: stats, Counted: counted})
	}
}

// GetVisitsHandler returns the current counters.
func GetVisitsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Visits.Snapshot(c.UserContext())
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(stats)
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
