package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDataset = `{
  "wells": [{"id": 1, "number": "W1"}, {"id": 2, "number": "W2"}],
  "owners": [{"id": 7, "name": "Acme", "color": "#f00"}],
  "directions": [
    {"id": 10, "number": "D-10", "start_well_id": 1, "end_well_id": 2, "length_m": 120.5,
     "geometry": {"type": "LineString", "coordinates": [[65.1, 57.1], [65.2, 57.2]]}},
    {"id": 11, "number": "D-11", "start_well_id": 2, "end_well_id": 3,
     "geometry": "{\"type\":\"MultiLineString\",\"coordinates\":[[[1,1],[2,2]],[[2,2],[3,3]]]}"},
    {"id": 12, "start_well_id": 3, "end_well_id": 4, "geometry": null}
  ],
  "capacities": [{"direction_id": 10, "unaccounted": 3}],
  "tags": [{"well_id": 1, "owner_id": 7, "count": 2}],
  "duct_cables_by_well": [{"well_id": 1, "owner_id": 7, "count": 1}],
  "duct_cables_by_direction": [{"direction_id": 10, "owner_id": 7, "count": 4}]
}`

func TestLoadDatasetJSON(t *testing.T) {
	ds, err := LoadDatasetJSON(strings.NewReader(sampleDataset))
	if err != nil {
		t.Fatalf("LoadDatasetJSON: %v", err)
	}
	if len(ds.Wells) != 2 || len(ds.Owners) != 1 || ds.Owners[0].Name != "Acme" {
		t.Fatalf("wells/owners = %+v %+v", ds.Wells, ds.Owners)
	}
	if len(ds.Directions) != 3 {
		t.Fatalf("got %d directions, want 3", len(ds.Directions))
	}

	d := ds.Directions[0]
	if d.ID != 10 || d.Number != "D-10" || d.StartWellID != 1 || d.EndWellID != 2 || d.LengthM != 120.5 {
		t.Fatalf("direction 10 = %+v", d)
	}
	if len(d.Coords) != 2 || d.Coords[1][0] != 65.2 || d.Coords[1][1] != 57.2 {
		t.Fatalf("direction 10 coords = %v", d.Coords)
	}
	if got := len(ds.Directions[1].Coords); got != 4 {
		t.Fatalf("multilinestring flattened to %d points, want 4", got)
	}
	if ds.Directions[2].Coords != nil {
		t.Fatalf("null geometry parsed to %v", ds.Directions[2].Coords)
	}

	if len(ds.Capacities) != 1 || ds.Capacities[0].Unaccounted != 3 {
		t.Fatalf("capacities = %+v", ds.Capacities)
	}
	if len(ds.Tags) != 1 || ds.Tags[0].Count != 2 {
		t.Fatalf("tags = %+v", ds.Tags)
	}
	if len(ds.DuctCablesByWell) != 1 || len(ds.DuctCablesByDirection) != 1 || ds.DuctCablesByDirection[0].Count != 4 {
		t.Fatalf("duct cables = %+v %+v", ds.DuctCablesByWell, ds.DuctCablesByDirection)
	}
}

func TestLoadDatasetJSONErrors(t *testing.T) {
	if _, err := LoadDatasetJSON(strings.NewReader("{")); err == nil {
		t.Fatalf("expected decode error")
	}
	bad := `{"directions": [{"id": 1, "geometry": {"type": "Nope", "coordinates": []}}]}`
	if _, err := LoadDatasetJSON(strings.NewReader(bad)); err == nil || !strings.Contains(err.Error(), "direction 1") {
		t.Fatalf("err = %v, want geometry error naming direction 1", err)
	}
}

func TestLoadDatasetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	if err := os.WriteFile(path, []byte(sampleDataset), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	ds, err := LoadDatasetFile(path)
	if err != nil {
		t.Fatalf("LoadDatasetFile: %v", err)
	}
	if len(ds.Directions) != 3 {
		t.Fatalf("got %d directions", len(ds.Directions))
	}
	if _, err := LoadDatasetFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSampleDatasetFile(t *testing.T) {
	ds, err := LoadDatasetFile(filepath.Join("..", "..", "configs", "sample_dataset.json"))
	if err != nil {
		t.Fatalf("LoadDatasetFile: %v", err)
	}
	if len(ds.Directions) != 4 || len(ds.Capacities) != 4 || len(ds.Owners) != 2 {
		t.Fatalf("sample dataset = %d directions, %d capacities, %d owners",
			len(ds.Directions), len(ds.Capacities), len(ds.Owners))
	}
	for _, d := range ds.Directions {
		if len(d.Coords) != 2 {
			t.Fatalf("direction %d has %d points", d.ID, len(d.Coords))
		}
	}
}
