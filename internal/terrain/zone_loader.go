package terrain

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LoadZones loads zone polygons from a GeoJSON feature collection file, or
// from every *.geojson file when path is a directory.
func LoadZones(path string, logger *slog.Logger) ([]orb.Polygon, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat zone source: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.geojson"))
		if err != nil {
			return nil, fmt.Errorf("failed to list zone files: %w", err)
		}
	}

	logger.Info("loading zones", "files", len(files))

	var all []orb.Polygon
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}

		count := 0
		for _, feature := range fc.Features {
			polygons := polygonsOf(feature.Geometry)
			all = append(all, polygons...)
			count += len(polygons)
		}

		logger.Debug("zones loaded", "file", filepath.Base(file), "polygons", count)
	}

	logger.Info("zones loaded", "polygons", len(all))
	return all, nil
}

// polygonsOf extracts the polygons of a geometry; other geometry types
// contribute nothing.
func polygonsOf(g orb.Geometry) []orb.Polygon {
	switch geometry := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{geometry}
	case orb.MultiPolygon:
		polygons := make([]orb.Polygon, 0, len(geometry))
		for _, p := range geometry {
			polygons = append(polygons, p)
		}
		return polygons
	}
	return nil
}
