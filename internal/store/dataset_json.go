package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/assumed-cables/model"
)

// JSON shapes of an offline dataset export. They stay unexported so the
// file format can evolve independently of the model.
type datasetJSON struct {
	Wells                 []wellJSON      `json:"wells"`
	Owners                []ownerJSON     `json:"owners"`
	Directions            []directionJSON `json:"directions"`
	Capacities            []capacityJSON  `json:"capacities"`
	Tags                  []wellCountJSON `json:"tags"`
	DuctCablesByWell      []wellCountJSON `json:"duct_cables_by_well"`
	DuctCablesByDirection []dirCountJSON  `json:"duct_cables_by_direction"`
}

type wellJSON struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
}

type ownerJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type directionJSON struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	StartWellID int64           `json:"start_well_id"`
	EndWellID   int64           `json:"end_well_id"`
	LengthM     float64         `json:"length_m"`
	Geometry    json.RawMessage `json:"geometry"`
}

type capacityJSON struct {
	DirectionID int64 `json:"direction_id"`
	Unaccounted int   `json:"unaccounted"`
}

type wellCountJSON struct {
	WellID  int64 `json:"well_id"`
	OwnerID int64 `json:"owner_id"`
	Count   int   `json:"count"`
}

type dirCountJSON struct {
	DirectionID int64 `json:"direction_id"`
	OwnerID     int64 `json:"owner_id"`
	Count       int   `json:"count"`
}

// LoadDatasetJSON decodes an offline dataset. It fails only on malformed
// JSON or geometry; directions that cannot join the graph are left for the
// graph builder to reject.
func LoadDatasetJSON(r io.Reader) (model.Dataset, error) {
	var payload datasetJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return model.Dataset{}, fmt.Errorf("load dataset: decode failed: %w", err)
	}

	ds := model.Dataset{
		Directions:            make([]model.Direction, 0, len(payload.Directions)),
		Capacities:            make([]model.DirectionCapacity, 0, len(payload.Capacities)),
		Tags:                  wellCounts(payload.Tags),
		DuctCablesByWell:      wellCounts(payload.DuctCablesByWell),
		DuctCablesByDirection: make([]model.DirectionOwnerCount, 0, len(payload.DuctCablesByDirection)),
		Wells:                 make([]model.Well, 0, len(payload.Wells)),
		Owners:                make([]model.Owner, 0, len(payload.Owners)),
	}
	for _, w := range payload.Wells {
		ds.Wells = append(ds.Wells, model.Well{ID: w.ID, Number: w.Number})
	}
	for _, o := range payload.Owners {
		ds.Owners = append(ds.Owners, model.Owner{ID: o.ID, Name: o.Name, Color: o.Color})
	}
	for _, d := range payload.Directions {
		coords, err := parseLine(d.Geometry)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("load dataset: direction %d: %w", d.ID, err)
		}
		ds.Directions = append(ds.Directions, model.Direction{
			ID:          d.ID,
			Number:      d.Number,
			StartWellID: d.StartWellID,
			EndWellID:   d.EndWellID,
			LengthM:     d.LengthM,
			Coords:      coords,
		})
	}
	for _, c := range payload.Capacities {
		ds.Capacities = append(ds.Capacities, model.DirectionCapacity{DirectionID: c.DirectionID, Unaccounted: c.Unaccounted})
	}
	for _, c := range payload.DuctCablesByDirection {
		ds.DuctCablesByDirection = append(ds.DuctCablesByDirection, model.DirectionOwnerCount{
			DirectionID: c.DirectionID,
			OwnerID:     c.OwnerID,
			Count:       c.Count,
		})
	}
	return ds, nil
}

// LoadDatasetFile opens path and decodes it with LoadDatasetJSON.
func LoadDatasetFile(path string) (model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("load dataset: %w", err)
	}
	defer f.Close()
	return LoadDatasetJSON(f)
}

func wellCounts(in []wellCountJSON) []model.WellOwnerCount {
	out := make([]model.WellOwnerCount, 0, len(in))
	for _, c := range in {
		out = append(out, model.WellOwnerCount{WellID: c.WellID, OwnerID: c.OwnerID, Count: c.Count})
	}
	return out
}

// parseLine decodes a GeoJSON geometry into a single polyline. Empty or null
// input yields no coordinates. A MultiLineString is flattened part by part.
func parseLine(raw []byte) (orb.LineString, error) {
	s := string(raw)
	if len(raw) == 0 || s == "null" || s == `""` {
		return nil, nil
	}
	if raw[0] == '"' {
		// Geometry exported as an escaped GeoJSON string, as ST_AsGeoJSON
		// results often are.
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("geometry: %w", err)
		}
		raw = []byte(s)
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	return toLine(g.Geometry()), nil
}

func toLine(geom orb.Geometry) orb.LineString {
	switch v := geom.(type) {
	case orb.LineString:
		return v
	case orb.MultiLineString:
		var out orb.LineString
		for _, part := range v {
			out = append(out, part...)
		}
		return out
	default:
		return nil
	}
}
