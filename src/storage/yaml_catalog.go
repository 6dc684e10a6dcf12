package storage

import (
	"fmt"
	"os"
	"sort"

	"transit-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// YAMLCatalog loads the route network from a YAML file. Intended for
// development and for the built-in simulator, where running a Postgres
// instance just to hold a handful of routes is overkill.
// -----------------------------------------------------------------------------

type YAMLCatalog struct {
	Path   string
	routes map[int][]models.MRouteSegment
}

type yamlCatalogFile struct {
	Routes []struct {
		ID    int                   `yaml:"id"`
		Name  string                `yaml:"name"`
		Stops []models.MRouteSegment `yaml:"stops"`
	} `yaml:"routes"`
}

// -----------------------------------------------------------------------------

func NewYAMLCatalog(path string) (*YAMLCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	var parsed yamlCatalogFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	c := &YAMLCatalog{
		Path:   path,
		routes: make(map[int][]models.MRouteSegment),
	}
	for _, r := range parsed.Routes {
		segments := make([]models.MRouteSegment, len(r.Stops))
		copy(segments, r.Stops)
		for i := range segments {
			segments[i].RouteID = r.ID
		}
		sort.Slice(segments, func(i, j int) bool {
			return segments[i].SequenceOrder < segments[j].SequenceOrder
		})
		c.routes[r.ID] = segments
	}
	return c, nil
}

// -----------------------------------------------------------------------------

func (c *YAMLCatalog) GetSegments(routeID int) ([]models.MRouteSegment, error) {
	// Unknown routes are empty, not errors, per the catalog contract.
	segments, ok := c.routes[routeID]
	if !ok {
		return nil, nil
	}
	out := make([]models.MRouteSegment, len(segments))
	copy(out, segments)
	return out, nil
}

// -----------------------------------------------------------------------------

func (c *YAMLCatalog) RouteIDs() ([]int, error) {
	ids := make([]int, 0, len(c.routes))
	for id := range c.routes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// -----------------------------------------------------------------------------

func (c *YAMLCatalog) Close() error {
	return nil
}
