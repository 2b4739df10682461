package scenario

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/assumed-cables/internal/logging"
	"github.com/signalsfoundry/assumed-cables/internal/store"
	"github.com/signalsfoundry/assumed-cables/model"
	"github.com/signalsfoundry/assumed-cables/timectrl"
)

// UnknownOwnerName labels routes without an owner in the map layer and export.
const UnknownOwnerName = "Unknown"

const utf8BOM = "\xEF\xBB\xBF"

// DefaultDelimiter separates exported fields unless the caller picks another.
const DefaultDelimiter = ';'

// ExportHeader is the first row of the delimited export.
var ExportHeader = []string{
	"No", "Variant", "ID", "Owner", "Confidence", "Length (m)",
	"Start well", "End well", "Route (directions)",
}

// NormalizeVariant maps anything outside the known variants to 1.
func NormalizeVariant(v int) int {
	if v < 1 || v > 3 {
		return 1
	}
	return v
}

// ParseVariant parses a query value leniently: empty or unparseable input
// and unknown variants select variant 1.
func ParseVariant(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 1
	}
	return NormalizeVariant(v)
}

// ParseVariantStrict parses a variant number and rejects unknown values.
func ParseVariantStrict(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 || v > 3 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidVariant)
	}
	return v, nil
}

// Summary holds the counters shown next to the route listing.
type Summary struct {
	UsedUnaccounted  int `json:"used_unaccounted"`
	TotalUnaccounted int `json:"total_unaccounted"`
	AssumedTotal     int `json:"assumed_total"`
	Rows             int `json:"rows"`
}

// ListingRow is one route of the listing.
type ListingRow struct {
	RouteID         int64   `json:"route_id"`
	OwnerID         *int64  `json:"owner_id"`
	OwnerName       string  `json:"owner_name"`
	Confidence      float64 `json:"confidence"`
	LengthM         float64 `json:"length_m"`
	DirectionIDs    []int64 `json:"direction_ids"`
	StartWellNumber string  `json:"start_well_number"`
	EndWellNumber   string  `json:"end_well_number"`
}

// Listing is the tabular view of one variant's live scenario.
type Listing struct {
	VariantNo  int          `json:"variant_no"`
	ScenarioID *int64       `json:"scenario_id"`
	BuiltAt    *time.Time   `json:"built_at"`
	Summary    Summary      `json:"summary"`
	Rows       []ListingRow `json:"rows"`
}

// Reader serves the read views from committed scenarios. Missing tables and
// variants that were never built yield empty views rather than errors.
type Reader struct {
	store store.ScenarioReader
	log   logging.Logger
	clock timectrl.Clock
}

// NewReader creates a Reader. A nil clock uses the wall clock.
func NewReader(st store.ScenarioReader, log logging.Logger, clock timectrl.Clock) *Reader {
	if log == nil {
		log = logging.Noop()
	}
	if clock == nil {
		clock = timectrl.System{}
	}
	return &Reader{store: st, log: log, clock: clock}
}

// live loads the latest scenario and its routes. ok is false when there is
// nothing to show.
func (r *Reader) live(ctx context.Context, variant int) (sc model.Scenario, routes []model.RouteView, ok bool, err error) {
	sc, err = r.store.LatestScenario(ctx, variant)
	if err != nil {
		if soft(err) {
			return sc, nil, false, nil
		}
		return sc, nil, false, fmt.Errorf("latest scenario: %w", err)
	}
	routes, err = r.store.ScenarioRoutes(ctx, sc.ID)
	if err != nil {
		if soft(err) {
			return sc, nil, false, nil
		}
		return sc, nil, false, fmt.Errorf("scenario routes: %w", err)
	}
	return sc, routes, true, nil
}

func soft(err error) bool {
	return errors.Is(err, store.ErrSchemaMissing) || errors.Is(err, store.ErrScenarioNotFound)
}

// MapLayer renders a variant's routes as a GeoJSON feature collection.
// Routes without geometry are left out.
func (r *Reader) MapLayer(ctx context.Context, variant int) (*geojson.FeatureCollection, error) {
	variant = NormalizeVariant(variant)
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{"variant": variant}

	sc, routes, ok, err := r.live(ctx, variant)
	if err != nil || !ok {
		return fc, err
	}
	fc.ExtraMembers["scenario_id"] = sc.ID
	fc.ExtraMembers["built_at"] = sc.BuiltAt.Format(time.RFC3339)

	for _, rv := range routes {
		if len(rv.Geometry) < 2 {
			continue
		}
		f := geojson.NewFeature(rv.Geometry)
		name := rv.OwnerName
		if rv.OwnerID == nil || name == "" {
			name = UnknownOwnerName
		}
		f.Properties = geojson.Properties{
			"route_id":          rv.ID,
			"variant_no":        variant,
			"scenario_id":       sc.ID,
			"owner_id":          rv.OwnerID,
			"owner_name":        name,
			"owner_color":       rv.OwnerColor,
			"confidence":        rv.Confidence,
			"length_m":          rv.LengthM,
			"start_well_number": rv.StartWellNumber,
			"end_well_number":   rv.EndWellNumber,
		}
		fc.Append(f)
	}
	return fc, nil
}

// List returns the tabular view of a variant with its summary counters.
func (r *Reader) List(ctx context.Context, variant int) (Listing, error) {
	variant = NormalizeVariant(variant)
	out := Listing{VariantNo: variant, Rows: []ListingRow{}}

	sc, routes, ok, err := r.live(ctx, variant)
	if err != nil || !ok {
		return out, err
	}
	id, builtAt := sc.ID, sc.BuiltAt
	out.ScenarioID, out.BuiltAt = &id, &builtAt

	total, err := r.store.TotalUnaccounted(ctx)
	if err != nil {
		r.log.Warn(ctx, "total unaccounted unavailable", logging.Err(err))
	}
	out.Summary.TotalUnaccounted = total

	for _, rv := range routes {
		dirIDs := rv.Evidence.DirectionIDs
		if dirIDs == nil {
			dirIDs = make([]int64, 0, len(rv.Directions))
			for _, d := range rv.Directions {
				dirIDs = append(dirIDs, d.DirectionID)
			}
		}
		out.Rows = append(out.Rows, ListingRow{
			RouteID:         rv.ID,
			OwnerID:         rv.OwnerID,
			OwnerName:       rv.OwnerName,
			Confidence:      rv.Confidence,
			LengthM:         rv.LengthM,
			DirectionIDs:    dirIDs,
			StartWellNumber: rv.StartWellNumber,
			EndWellNumber:   rv.EndWellNumber,
		})
		if rv.OwnerID != nil {
			out.Summary.UsedUnaccounted++
		}
	}
	out.Summary.AssumedTotal = len(out.Rows)
	out.Summary.Rows = len(out.Rows)
	return out, nil
}

// ExportFilename names the export file of a variant for today.
func (r *Reader) ExportFilename(variant int) string {
	return fmt.Sprintf("assumed_cables_routes_v%d_%s.csv", NormalizeVariant(variant), r.clock.Now().Format("2006-01-02"))
}

// ParseDelimiter takes the first character of s as the field delimiter and
// falls back to the default when it is empty or unusable.
func ParseDelimiter(s string) rune {
	c, size := utf8.DecodeRuneInString(s)
	if size == 0 || c == utf8.RuneError || c == '"' || c == '\r' || c == '\n' {
		return DefaultDelimiter
	}
	return c
}

// Export writes a variant's routes as UTF-8 delimited text with a byte order
// mark. Direction numbers of each route are joined in walk order.
func (r *Reader) Export(ctx context.Context, w io.Writer, variant int, delimiter rune) error {
	variant = NormalizeVariant(variant)
	_, routes, _, err := r.live(ctx, variant)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for i, rv := range routes {
		name := rv.OwnerName
		if rv.OwnerID == nil || name == "" {
			name = UnknownOwnerName
		}
		err := cw.Write([]string{
			strconv.Itoa(i + 1),
			strconv.Itoa(variant),
			strconv.FormatInt(rv.ID, 10),
			name,
			strconv.FormatFloat(rv.Confidence, 'f', 2, 64),
			strconv.FormatFloat(rv.LengthM, 'f', 2, 64),
			rv.StartWellNumber,
			rv.EndWellNumber,
			strings.Join(rv.DirectionNumbers, " -> "),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
