// Package engine is the datasheet generation facade: it owns the decoder,
// the resolver, and the loaded repositories, and exposes the operations the
// CLI and the HTTP server are built on. Engines are immutable after
// construction and safe for concurrent use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pipespec/valve-datasheet/internal/config"
	"github.com/pipespec/valve-datasheet/internal/repository"
	"github.com/pipespec/valve-datasheet/internal/resolver"
	"github.com/pipespec/valve-datasheet/pkg/vds"
)

// GenerationVersion is stamped into every datasheet's metadata.
const GenerationVersion = "1.0.0"

// Data file names expected under the data directory.
const (
	PipingSpecFile = "piping_specification.json"
	StandardsFile  = "standards_clauses.json"
	VDSIndexFile   = "vds_index.json"
)

// ErrTimeout reports that the context expired between generation phases.
var ErrTimeout = errors.New("generation timed out")

// Engine generates datasheets from VDS numbers.
type Engine struct {
	cfg       *config.Config
	pms       *repository.PMS
	standards *repository.Standards
	index     *repository.VDSIndex
	decoder   *vds.Decoder
	resolver  *resolver.Resolver
	logger    *slog.Logger
	clock     func() time.Time
}

// Option customizes an engine at construction.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the time source for generation metadata. Pin it in tests to
// make generated datasheets byte-identical.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New builds an engine from an already loaded configuration and repositories.
func New(cfg *config.Config, pms *repository.PMS, standards *repository.Standards,
	index *repository.VDSIndex, opts ...Option) (*Engine, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("engine: nil config")
	case pms == nil:
		return nil, errors.New("engine: nil piping specification")
	case standards == nil:
		return nil, errors.New("engine: nil standards")
	case index == nil:
		return nil, errors.New("engine: nil vds index")
	}

	e := &Engine{
		cfg:       cfg,
		pms:       pms,
		standards: standards,
		index:     index,
		decoder:   vds.NewDecoder(cfg.Grammar(), pms),
		resolver:  resolver.New(cfg, pms, standards, index),
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")

	for _, w := range cfg.Warnings {
		e.logger.Warn("configuration warning", "warning", w)
	}
	return e, nil
}

// Load reads the rulebooks from configDir and the extracted source documents
// from dataDir, then builds an engine over them.
func Load(ctx context.Context, configDir, dataDir string, opts ...Option) (*Engine, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pms, err := repository.LoadPMS(filepath.Join(dataDir, PipingSpecFile))
	if err != nil {
		return nil, err
	}
	standards, err := repository.LoadStandards(filepath.Join(dataDir, StandardsFile))
	if err != nil {
		return nil, err
	}
	index, err := repository.LoadVDSIndex(filepath.Join(dataDir, VDSIndexFile))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return New(cfg, pms, standards, index, opts...)
}

// Decode parses a VDS number. The error, when non-nil, is a
// *vds.DecodeError.
func (e *Engine) Decode(code string) (vds.Decoded, error) {
	return e.decoder.Decode(code)
}

// Validate reports whether a VDS number is well formed, with the decode
// failure message when it is not.
func (e *Engine) Validate(code string) (bool, string) {
	return e.decoder.Validate(code)
}

// Version returns the generation version stamped into datasheets.
func (e *Engine) Version() string {
	return GenerationVersion
}

// SupportedPrefixes returns the configured valve-type prefix codes, sorted.
func (e *Engine) SupportedPrefixes() []string {
	return e.cfg.Grammar().PrefixCodes()
}

// PrefixInfo returns the grammar entry for a prefix code.
func (e *Engine) PrefixInfo(code string) (vds.Prefix, bool) {
	p, ok := e.cfg.Grammar().Prefixes[strings.ToUpper(strings.TrimSpace(code))]
	return p, ok
}

// AvailablePipingClasses returns the piping-class names, sorted.
func (e *Engine) AvailablePipingClasses() []string {
	return e.pms.AllClasses()
}

// PipingClassCount returns the number of loaded piping classes.
func (e *Engine) PipingClassCount() int {
	return e.pms.Count()
}

// ClassInfo is the piping-class summary exposed by the metadata endpoints.
type ClassInfo struct {
	Class          string `json:"class"`
	PressureRating string `json:"pressureRating,omitempty"`
	Rating         int    `json:"rating,omitempty"`
	BaseMaterial   string `json:"baseMaterial,omitempty"`
	Service        string `json:"service,omitempty"`
	NaceService    bool   `json:"naceService"`
	LowTemp        bool   `json:"lowTemp"`
}

// PipingClassInfo returns the per-class summaries, sorted by class name.
func (e *Engine) PipingClassInfo() []ClassInfo {
	classes := e.pms.AllClasses()
	out := make([]ClassInfo, 0, len(classes))
	for _, class := range classes {
		row, ok := e.pms.RowFor(class)
		if !ok {
			continue
		}
		out = append(out, ClassInfo{
			Class:          row.Class,
			PressureRating: row.PressureRating,
			Rating:         row.RatingNumeric,
			BaseMaterial:   row.BaseMaterial,
			Service:        row.Service,
			NaceService:    row.IsNaceClass(),
			LowTemp:        row.IsLowTempClass(),
		})
	}
	return out
}

// IndexedVDSCodes returns every VDS code the index carries, sorted.
func (e *Engine) IndexedVDSCodes() []string {
	return e.index.AllCodes()
}

// CodesWithPrefix returns the indexed VDS codes starting with prefix, sorted.
func (e *Engine) CodesWithPrefix(prefix string) []string {
	return e.index.CodesWithPrefix(prefix)
}

// IndexCount returns the number of indexed VDS codes.
func (e *Engine) IndexCount() int {
	return e.index.Count()
}

// IndexValues returns a copy of the index row's value columns for a code.
func (e *Engine) IndexValues(code string) (map[string]string, bool) {
	row, ok := e.index.RowFor(code)
	if !ok {
		return nil, false
	}
	values := make(map[string]string, len(row.Values))
	for k, v := range row.Values {
		values[k] = v
	}
	return values, true
}

// EndConnections returns the configured end connections, sorted by code.
func (e *Engine) EndConnections() []vds.EndConnection {
	g := e.cfg.Grammar()
	out := make([]vds.EndConnection, 0, len(g.EndConnections))
	for _, code := range g.EndConnectionCodes() {
		out = append(out, g.EndConnections[code])
	}
	return out
}

// BoreTypes returns the configured bore types, sorted by code.
func (e *Engine) BoreTypes() []vds.Bore {
	g := e.cfg.Grammar()
	out := make([]vds.Bore, 0, len(g.Bores))
	for _, code := range g.BoreCodes() {
		out = append(out, g.Bores[code])
	}
	return out
}

// PressureClasses returns the distinct ASME pressure classes from the
// class-letter table, sorted ascending.
func (e *Engine) PressureClasses() []int {
	seen := make(map[int]bool, len(e.cfg.Tables.ClassLetterRatings))
	for _, rating := range e.cfg.Tables.ClassLetterRatings {
		if rating > 0 {
			seen[rating] = true
		}
	}
	out := make([]int, 0, len(seen))
	for rating := range seen {
		out = append(out, rating)
	}
	sort.Ints(out)
	return out
}

// deadline converts a context expiry into ErrTimeout.
func deadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return nil
}
