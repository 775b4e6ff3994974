// Package store persists barangays, hazard results, environmental data and
// scores. Postgres (PostGIS) and SQLite backends share one interface.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/negros-cram/brrs/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// Drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is the persistence interface used by loaders, batch runners and the API.
type Store interface {
	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases the underlying connections.
	Close() error

	// UpsertMunicipalities inserts or updates municipalities by name.
	UpsertMunicipalities(ctx context.Context, ms []model.Municipality) (int64, error)
	// UpsertBarangays inserts or updates barangays by (name, municipality).
	UpsertBarangays(ctx context.Context, bs []model.Barangay) (int64, error)
	// UpdateDemographics applies partial census updates; nil fields are kept.
	UpdateDemographics(ctx context.Context, ds []model.Demographics) (int64, error)
	// LinkBarangays sets municipality_id for each barangay id key.
	LinkBarangays(ctx context.Context, links map[int64]int64) (int64, error)
	// UpdateClimate applies a climate summary to every municipality of its province.
	UpdateClimate(ctx context.Context, c model.ClimateSummary) (int64, error)

	// ListMunicipalities returns municipality rows with barangay counts.
	ListMunicipalities(ctx context.Context, f MunicipalityFilter) ([]model.MunicipalitySummary, error)
	// GetMunicipality returns one municipality without geometry.
	GetMunicipality(ctx context.Context, id int64) (*model.Municipality, error)
	// ListBarangays returns barangay rows joined with their scores.
	ListBarangays(ctx context.Context, f BarangayFilter) ([]model.BarangayListItem, error)
	// GetBarangay returns a barangay with nested hazards, class records and score.
	GetBarangay(ctx context.Context, id int64) (*model.BarangayDetail, error)
	// LoadUnits returns every barangay with its geometry, ordered by id.
	LoadUnits(ctx context.Context) ([]model.Barangay, error)

	// ReplaceClassRecords replaces every record of one hazard and period.
	ReplaceClassRecords(ctx context.Context, h model.HazardType, p model.Period, recs []model.ClassRecord) (int64, error)
	// ListClassRecords returns the records of one hazard ordered by barangay name and period.
	ListClassRecords(ctx context.Context, h model.HazardType) ([]model.ClassRecord, error)
	// ReplaceExposures replaces the exposures of one hazard and source.
	ReplaceExposures(ctx context.Context, h model.HazardType, source string, es []model.HazardExposure) (int64, error)
	// ListExposures returns discrete exposure records.
	ListExposures(ctx context.Context, f ExposureFilter) ([]model.HazardExposure, error)

	// ReplaceAirQuality upserts monthly air-quality rows.
	ReplaceAirQuality(ctx context.Context, aq []model.AirQuality) (int64, error)
	// ListAirQuality returns air-quality rows, newest first.
	ListAirQuality(ctx context.Context, f AirQualityFilter) ([]model.AirQuality, error)
	// ReplaceCycloneTracks replaces every cyclone track.
	ReplaceCycloneTracks(ctx context.Context, ts []model.CycloneTrack) (int64, error)
	// ListCycloneTracks returns tracks newest year first.
	ListCycloneTracks(ctx context.Context, f CycloneFilter) ([]model.CycloneTrack, error)

	// LoadScoringInputs assembles the aggregator inputs for every barangay, ordered by id.
	LoadScoringInputs(ctx context.Context) ([]model.ScoringInput, error)
	// UpsertScores writes scores, creating or updating one row per barangay.
	UpsertScores(ctx context.Context, scores []model.ResilienceScore) (int64, error)
	// ListScores returns scores joined with barangay names.
	ListScores(ctx context.Context, f ScoreFilter) ([]model.ScoreListItem, error)
	// Statistics returns the province-wide summary.
	Statistics(ctx context.Context) (*model.Statistics, error)
	// MunicipalityRollup summarizes the scores of one municipality.
	MunicipalityRollup(ctx context.Context, id int64) (*model.MunicipalityRollup, error)

	// RecordRun inserts or updates a batch run.
	RecordRun(ctx context.Context, r *model.Run) error
	// ListRuns returns the most recent runs.
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
}

// TileRenderer is implemented by stores that can render vector tiles.
type TileRenderer interface {
	Tile(ctx context.Context, layer string, z, x, y int) ([]byte, error)
}

// MunicipalityFilter selects municipalities.
type MunicipalityFilter struct {
	Search         string
	Province       string
	Classification string
}

// BarangayFilter selects and orders barangays.
type BarangayFilter struct {
	MunicipalityID *int64
	Municipality   string
	Coastal        *bool
	RiskLevel      model.RiskLevel
	Search         string
	// Ordering is one of name, population, overall_score, optionally
	// prefixed with "-" for descending.
	Ordering string
	Limit    int
	Offset   int
}

// ExposureFilter selects discrete exposures.
type ExposureFilter struct {
	BarangayID     *int64
	Hazard         model.HazardType
	Susceptibility string
}

// AirQualityFilter selects air-quality rows. Latest keeps only the most
// recent year and month present.
type AirQualityFilter struct {
	MunicipalityID *int64
	Year           int
	Month          int
	Latest         bool
}

// CycloneFilter selects cyclone tracks.
type CycloneFilter struct {
	Year     int
	Category string
	Affected *bool
}

// ScoreFilter selects and orders scores.
type ScoreFilter struct {
	RiskLevel model.RiskLevel
	// Ordering is one of overall_score, hazard_exposure_score,
	// health_sensitivity_score, adaptive_capacity_score, optionally
	// prefixed with "-". Defaults to -overall_score.
	Ordering string
	Limit    int
}

// Options selects and configures a backend.
type Options struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	Pool        *PoolConfig
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverPostgres:
		s, err := NewPostgres(ctx, opts.DatabaseURL, opts.Pool)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := NewSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", opts.Driver)
	}
}

var (
	_ Store        = (*PostgresStore)(nil)
	_ Store        = (*SQLiteStore)(nil)
	_ TileRenderer = (*PostgresStore)(nil)
)
