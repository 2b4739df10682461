// Package config assembles service configuration from defaults, an optional
// YAML file, environment variables and command-line flags, in that order of
// precedence.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/assumed-cables/internal/logging"
	"github.com/signalsfoundry/assumed-cables/internal/observability"
	"github.com/signalsfoundry/assumed-cables/internal/owner"
	"github.com/signalsfoundry/assumed-cables/internal/synth"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the complete service configuration.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`

	Storage StorageConfig               `yaml:"storage"`
	Log     LogConfig                   `yaml:"log"`
	Tracing observability.TracingConfig `yaml:"tracing"`

	Synthesis        SynthesisConfig `yaml:"synthesis"`
	Owner            OwnerConfig     `yaml:"owner"`
	Variants         []int           `yaml:"variants"`
	ParallelVariants bool            `yaml:"parallel_variants"`
}

// StorageConfig selects where the dataset is read and scenarios are kept.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	DatabaseURL string `yaml:"database_url"`
	// DatasetFile seeds the memory backend from a JSON dataset.
	DatasetFile string `yaml:"dataset_file"`
	// Migrate applies the scenario tables on startup (postgres only).
	Migrate bool `yaml:"migrate"`
}

// LogConfig mirrors logging.Config for the file format.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// SynthesisConfig carries the route scoring weights.
type SynthesisConfig struct {
	LambdaTag         float64 `yaml:"lambda_tag"`
	MuBottleneck      float64 `yaml:"mu_bottleneck"`
	TagEdgeBonus      float64 `yaml:"tag_edge_bonus"`
	CapacityEdgeBonus float64 `yaml:"capacity_edge_bonus"`
	MaxRoutes         int     `yaml:"max_routes"`
}

// TierConfig is one variant's pair of tag confidences.
type TierConfig struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

// OwnerConfig carries the owner inference knobs.
type OwnerConfig struct {
	Tiers               map[int]TierConfig `yaml:"tiers"`
	FallbackFromVariant int                `yaml:"fallback_from_variant"`
	FallbackConfidence  float64            `yaml:"fallback_confidence"`
	UnknownConfidence   float64            `yaml:"unknown_confidence"`
	MaxCandidates       int                `yaml:"max_candidates"`
	SupplyMode          string             `yaml:"supply_mode"`
}

// Default returns the stock configuration: memory storage, all three
// variants synthesised in parallel, and the stock policies.
func Default() Config {
	sp := synth.DefaultPolicy()
	op := owner.DefaultPolicy()
	tiers := make(map[int]TierConfig, len(op.Tiers))
	for v, t := range op.Tiers {
		tiers[v] = TierConfig{High: t.High, Medium: t.Medium}
	}
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		GRPCAddr:    ":50051",
		Storage:     StorageConfig{Backend: BackendMemory},
		Log:         LogConfig{Level: "info", Format: "text"},
		Tracing:     observability.DefaultTracingConfig(),
		Synthesis: SynthesisConfig{
			LambdaTag:         sp.LambdaTag,
			MuBottleneck:      sp.MuBottleneck,
			TagEdgeBonus:      sp.TagEdgeBonus,
			CapacityEdgeBonus: sp.CapacityEdgeBonus,
			MaxRoutes:         sp.MaxRoutes,
		},
		Owner: OwnerConfig{
			Tiers:               tiers,
			FallbackFromVariant: op.FallbackFromVariant,
			FallbackConfidence:  op.FallbackConfidence,
			UnknownConfidence:   op.UnknownConfidence,
			MaxCandidates:       op.MaxCandidates,
			SupplyMode:          string(op.SupplyMode),
		},
		Variants:         slices.Clone(synth.Variants),
		ParallelVariants: true,
	}
}

// Load returns Default overlaid with the YAML file at path. An empty path
// yields the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.decodeYAML(bytes.NewReader(raw)); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decodeYAML(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays ROUTESYNTH_* variables, DATABASE_URL, LOG_LEVEL,
// LOG_FORMAT and the tracing variables. Malformed numeric or boolean values
// are reported.
func (c Config) ApplyEnv() (Config, error) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("ROUTESYNTH_HTTP_ADDR", &c.HTTPAddr)
	setString("ROUTESYNTH_METRICS_ADDR", &c.MetricsAddr)
	setString("ROUTESYNTH_GRPC_ADDR", &c.GRPCAddr)
	setString("ROUTESYNTH_STORAGE", &c.Storage.Backend)
	setString("DATABASE_URL", &c.Storage.DatabaseURL)
	setString("ROUTESYNTH_DATASET", &c.Storage.DatasetFile)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)
	setString("ROUTESYNTH_SUPPLY_MODE", &c.Owner.SupplyMode)

	if v, ok := os.LookupEnv("ROUTESYNTH_MIGRATE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("ROUTESYNTH_MIGRATE: %w", err)
		}
		c.Storage.Migrate = b
	}
	if v, ok := os.LookupEnv("ROUTESYNTH_PARALLEL_VARIANTS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("ROUTESYNTH_PARALLEL_VARIANTS: %w", err)
		}
		c.ParallelVariants = b
	}
	if v, ok := os.LookupEnv("ROUTESYNTH_MAX_ROUTES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("ROUTESYNTH_MAX_ROUTES: %w", err)
		}
		c.Synthesis.MaxRoutes = n
	}
	if v, ok := os.LookupEnv("ROUTESYNTH_VARIANTS"); ok && v != "" {
		variants, err := parseVariants(v)
		if err != nil {
			return Config{}, fmt.Errorf("ROUTESYNTH_VARIANTS: %w", err)
		}
		c.Variants = variants
	}
	c.Tracing = c.Tracing.ApplyEnv()
	return c, nil
}

func parseVariants(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("variant %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Parse builds the configuration for a binary: flags are parsed from args,
// the file named by -config (or ROUTESYNTH_CONFIG) is loaded, the
// environment is applied, and explicitly set flags win last.
func Parse(name string, args []string) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("ROUTESYNTH_CONFIG"), "path to a YAML config file")
	httpAddr := fs.String("http-addr", "", "HTTP API listen address")
	metricsAddr := fs.String("metrics-addr", "", "metrics listen address (empty to disable)")
	grpcAddr := fs.String("grpc-addr", "", "ops gRPC listen address (empty to disable)")
	backend := fs.String("storage", "", "storage backend: postgres or memory")
	dsn := fs.String("database-url", "", "Postgres connection string")
	dataset := fs.String("dataset", "", "JSON dataset seeding the memory backend")
	migrate := fs.Bool("migrate", false, "create the scenario tables on startup")
	supply := fs.String("supply-mode", "", "owner supply mode: consume or read")
	parallel := fs.Bool("parallel-variants", true, "synthesise variants concurrently")
	variants := fs.String("variants", "", "comma-separated variants to build")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg, err := Load(*configPath)
	if err != nil {
		return Config{}, err
	}
	if cfg, err = cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.HTTPAddr = *httpAddr
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "grpc-addr":
			cfg.GRPCAddr = *grpcAddr
		case "storage":
			cfg.Storage.Backend = *backend
		case "database-url":
			cfg.Storage.DatabaseURL = *dsn
		case "dataset":
			cfg.Storage.DatasetFile = *dataset
		case "migrate":
			cfg.Storage.Migrate = *migrate
		case "supply-mode":
			cfg.Owner.SupplyMode = *supply
		case "parallel-variants":
			cfg.ParallelVariants = *parallel
		case "variants":
			v, err := parseVariants(*variants)
			if err != nil {
				flagErr = fmt.Errorf("-variants: %w", err)
				return
			}
			cfg.Variants = v
		}
	})
	if flagErr != nil {
		return Config{}, flagErr
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks addresses, storage selection and both policies.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	switch strings.ToLower(c.Storage.Backend) {
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage backend %q requires database_url", BackendPostgres)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if len(c.Variants) == 0 {
		return fmt.Errorf("at least one variant is required")
	}
	seen := make(map[int]bool, len(c.Variants))
	for _, v := range c.Variants {
		if !slices.Contains(synth.Variants, v) {
			return fmt.Errorf("variant %d: %w", v, synth.ErrUnknownVariant)
		}
		if seen[v] {
			return fmt.Errorf("variant %d listed twice", v)
		}
		seen[v] = true
	}
	if err := c.SynthesisPolicy().Validate(); err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}
	op, err := c.OwnerPolicy()
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	if err := op.Validate(); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	return nil
}

// SynthesisPolicy converts the synthesis section.
func (c Config) SynthesisPolicy() synth.Policy {
	return synth.Policy{
		LambdaTag:         c.Synthesis.LambdaTag,
		MuBottleneck:      c.Synthesis.MuBottleneck,
		TagEdgeBonus:      c.Synthesis.TagEdgeBonus,
		CapacityEdgeBonus: c.Synthesis.CapacityEdgeBonus,
		MaxRoutes:         c.Synthesis.MaxRoutes,
	}
}

// OwnerPolicy converts the owner section.
func (c Config) OwnerPolicy() (owner.Policy, error) {
	mode, err := owner.ParseSupplyMode(c.Owner.SupplyMode)
	if err != nil {
		return owner.Policy{}, err
	}
	tiers := make(map[int]owner.Tiers, len(c.Owner.Tiers))
	for v, t := range c.Owner.Tiers {
		tiers[v] = owner.Tiers{High: t.High, Medium: t.Medium}
	}
	return owner.Policy{
		Tiers:               tiers,
		FallbackFromVariant: c.Owner.FallbackFromVariant,
		FallbackConfidence:  c.Owner.FallbackConfidence,
		UnknownConfidence:   c.Owner.UnknownConfidence,
		MaxCandidates:       c.Owner.MaxCandidates,
		SupplyMode:          mode,
	}, nil
}

// LoggingConfig converts the log section.
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:     c.Log.Level,
		Format:    c.Log.Format,
		AddSource: c.Log.AddSource,
	}
}
