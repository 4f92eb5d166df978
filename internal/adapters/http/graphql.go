package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services. Fields
// resolve through the json tags of the domain types.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	amenitiesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Amenities",
		Fields: graphql.Fields{
			"wifi":             &graphql.Field{Type: graphql.Boolean},
			"outdoor_seating":  &graphql.Field{Type: graphql.Boolean},
			"takeaway":         &graphql.Field{Type: graphql.Boolean},
			"air_conditioning": &graphql.Field{Type: graphql.Boolean},
			"smoking":          &graphql.Field{Type: graphql.String},
		},
	})

	cafeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Cafe",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"name":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"location":      &graphql.Field{Type: geoPointType},
			"address":       &graphql.Field{Type: graphql.String},
			"phone":         &graphql.Field{Type: graphql.String},
			"website":       &graphql.Field{Type: graphql.String},
			"opening_hours": &graphql.Field{Type: graphql.String},
			"cuisine":       &graphql.Field{Type: graphql.String},
			"amenities":     &graphql.Field{Type: amenitiesType},
			"price_range":   &graphql.Field{Type: graphql.String},
			"description":   &graphql.Field{Type: graphql.String},
			"logo":          &graphql.Field{Type: graphql.String},
			"photos":        &graphql.Field{Type: graphql.NewList(graphql.String)},
			"source":        &graphql.Field{Type: graphql.String},
			"created_at":    &graphql.Field{Type: graphql.DateTime},
			"distance_km":   &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"coordinates": &graphql.Field{
				Type: graphql.NewList(geoPointType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if r, ok := p.Source.(*domain.Route); ok {
						return r.Path.Coordinates, nil
					}
					return nil, nil
				},
			},
			"distance_km":  &graphql.Field{Type: graphql.Float},
			"duration_min": &graphql.Field{Type: graphql.Float},
		},
	})

	visitStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "VisitStats",
		Fields: graphql.Fields{
			"today": &graphql.Field{Type: graphql.Int},
			"total": &graphql.Field{Type: graphql.Int},
			"date":  &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"cafes": &graphql.Field{
				Type:        graphql.NewList(cafeType),
				Description: "Visible cafes, optionally filtered by text and distance",
				Args: graphql.FieldConfigArgument{
					"q":         &graphql.ArgumentConfig{Type: graphql.String},
					"lat":       &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":       &graphql.ArgumentConfig{Type: graphql.Float},
					"radius_km": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := usecases.CafeQuery{}
					q.Text, _ = p.Args["q"].(string)
					lat, hasLat := p.Args["lat"].(float64)
					lon, hasLon := p.Args["lon"].(float64)
					if hasLat && hasLon {
						q.Near = &domain.GeoPoint{Lat: lat, Lon: lon}
						q.RadiusKm, _ = p.Args["radius_km"].(float64)
					}
					return deps.Cafes.List(p.Context, q)
				},
			},
			"cafe": &graphql.Field{
				Type:        cafeType,
				Description: "A visible cafe by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Cafes.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"geocode": &graphql.Field{
				Type:        geoPointType,
				Description: "First address match inside the configured area, null when nothing matched",
				Args: graphql.FieldConfigArgument{
					"q": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					point, ok, err := deps.Geocode.Geocode(p.Context, p.Args["q"].(string))
					if err != nil || !ok {
						return nil, err
					}
					return point, nil
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Driving route between two points",
				Args: graphql.FieldConfigArgument{
					"from_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"from_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"to_lat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"to_lon":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					from := domain.GeoPoint{Lat: p.Args["from_lat"].(float64), Lon: p.Args["from_lon"].(float64)}
					to := domain.GeoPoint{Lat: p.Args["to_lat"].(float64), Lon: p.Args["to_lon"].(float64)}
					return deps.Routes.Plan(p.Context, from, to)
				},
			},
			"visits": &graphql.Field{
				Type:        visitStatsType,
				Description: "Current visit counters",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Visits.Snapshot(p.Context)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "body must be JSON with a query")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
