package engine

import (
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"

	"github.com/arnegard/pdfmutate/scanner"
)

// Configuration controls one mutation pass: the optional password spec
// §6 names for encrypted documents, plus the tunables spec §4.3/§4.5.2
// otherwise bake in as package constants, exposed here so a caller can
// widen them for a pathological document. Checked with
// github.com/go-playground/validator/v10 before a pass starts, the way
// sassoftware/viya-pdf-xtract's Config.Validate does.
type Configuration struct {
	// Password authenticates against /Encrypt: tried first as a user
	// password, then as an owner password (spec §6).
	Password string

	// BranchReadWindow is the size of the single branch-read window
	// locate-definition parses an object envelope from (spec §4.5.2). The
	// window is not enlarged when a parse runs out of bytes, so an object
	// whose header and definition do not fit in it fails to parse.
	BranchReadWindow int `validate:"min=16"`

	// MaxBranchReadWindow is validated against BranchReadWindow but is not
	// consulted by the branch reads.
	MaxBranchReadWindow int `validate:"gtefield=BranchReadWindow"`

	// ReverseScanLoops is validated but not consulted: the reverse hunt
	// for startxref is bounded by scanner.MaxReverseScanLoops, the value
	// this field defaults to.
	ReverseScanLoops int `validate:"min=1"`

	// OffsetSlack is how many bytes of surrounding whitespace the engine
	// tolerates between a master XREF offset and the object header
	// actually found there (spec §4.5.3).
	OffsetSlack int `validate:"min=0,max=8"`

	// Logger receives the engine's notice that a linearized document was
	// detected, matching the teacher's reliance on log.Printf in
	// reader/file/streams.go for the same kind of heuristic notice.
	// Chained-filter warnings from package filters go to the standard log
	// package instead. Defaults to log.Default() when nil.
	Logger *log.Logger
}

// NewDefaultConfiguration returns the configuration a plain pass-through
// or mutation run should use absent caller overrides.
func NewDefaultConfiguration() *Configuration {
	return &Configuration{
		BranchReadWindow:    4096,
		MaxBranchReadWindow: 64 * 1024,
		ReverseScanLoops:    scanner.MaxReverseScanLoops,
		OffsetSlack:         1,
	}
}

// Validate rejects a configuration spec §7 would otherwise let surface as
// a confusing downstream failure: a branch-read ceiling narrower than its
// floor, a non-positive loop cap, excessive offset slack.
func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("engine: invalid configuration: %w", err)
	}
	return nil
}

func (c *Configuration) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}
