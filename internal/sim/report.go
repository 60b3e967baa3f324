package sim

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Report summarises a run
type Report struct {
	ID       string        `json:"id"`
	MapID    string        `json:"map"`
	Strategy string        `json:"strategy"`
	Ticks    int           `json:"ticks"`
	Waves    int           `json:"waves"`
	Arrived  int           `json:"arrived"`
	Died     int           `json:"died"`
	Stranded int           `json:"stranded"`
	Deaths   int64         `json:"deaths"`
	Agents   []AgentReport `json:"agents"`
}

// AgentReport is the outcome for one agent
type AgentReport struct {
	Name     string      `json:"name"`
	Wave     int         `json:"wave"`
	Arrived  bool        `json:"arrived"`
	Dead     bool        `json:"dead"`
	Ticks    int         `json:"ticks"`
	Position orb.Point   `json:"position"`
	Path     []orb.Point `json:"path"`
}

// GeoJSON renders every agent's path as a LineString feature
func (r *Report) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, a := range r.Agents {
		f := geojson.NewFeature(orb.LineString(a.Path))
		f.Properties["name"] = a.Name
		f.Properties["wave"] = a.Wave
		f.Properties["arrived"] = a.Arrived
		f.Properties["dead"] = a.Dead
		fc.Append(f)
	}
	return fc
}
