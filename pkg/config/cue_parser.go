package config

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/format"
	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/stattweaks/pkg/resolve"
)

// ParseResult is the outcome of parsing a profile source.
type ParseResult struct {
	// Profile is the effective profile: the stock profile with the source applied.
	Profile *Profile `json:"profile,omitempty"`

	// SourceFile is the parsed file, or "inline".
	SourceFile string `json:"source_file"`

	// ParsedAt is when the source was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors holds schema and validation errors. Profile is nil when non-empty.
	Errors []ValidationError `json:"errors,omitempty"`
}

// HasErrors reports whether parsing produced errors.
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// ProfileParser parses CUE profile files against the embedded schema.
type ProfileParser struct {
	ctx       *cue.Context
	schema    cue.Value
	schemaErr error
	validator *validator.Validate
}

// NewProfileParser creates a parser with the built-in profile schema.
func NewProfileParser() *ProfileParser {
	ctx := cuecontext.New()
	pp := &ProfileParser{
		ctx:       ctx,
		validator: validator.New(),
	}

	schema := ctx.CompileString(profileSchema, cue.Filename("profile_schema.cue"))
	if err := schema.Err(); err != nil {
		pp.schemaErr = fmt.Errorf("failed to compile profile schema: %w", err)
		return pp
	}
	pp.schema = schema.LookupPath(cue.ParsePath("#Profile"))
	return pp
}

// ParseFile parses a profile file. Schema and validation problems are
// returned in the result; the error is reserved for I/O failures.
func (pp *ProfileParser) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return pp.parse(ctx, string(content), path)
}

// ParseInline parses profile content held in memory.
func (pp *ProfileParser) ParseInline(ctx context.Context, content string) (*ParseResult, error) {
	return pp.parse(ctx, content, "inline")
}

func (pp *ProfileParser) parse(ctx context.Context, content, filename string) (*ParseResult, error) {
	if pp.schemaErr != nil {
		return nil, pp.schemaErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ParseResult{
		SourceFile: filename,
		ParsedAt:   time.Now(),
	}

	val := pp.ctx.CompileString(content, cue.Filename(filename))
	if err := val.Err(); err != nil {
		result.Errors = pp.convertCUEErrors(err)
		return result, nil
	}

	// Unify with the closed schema (validates field names and bounds)
	unified := pp.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		result.Errors = pp.convertCUEErrors(err)
		return result, nil
	}

	var overrides map[string]interface{}
	if err := val.Decode(&overrides); err != nil {
		result.Errors = pp.convertCUEErrors(err)
		return result, nil
	}

	profile, err := applyOverrides(DefaultProfile(), overrides)
	if err != nil {
		return nil, err
	}

	if errs := pp.Validate(profile); len(errs) > 0 {
		for i := range errs {
			errs[i].File = filename
		}
		result.Errors = errs
		return result, nil
	}

	result.Profile = profile
	return result, nil
}

// applyOverrides merges decoded overrides onto base through its JSON form.
func applyOverrides(base *Profile, overrides map[string]interface{}) (*Profile, error) {
	if len(overrides) == 0 {
		return base, nil
	}
	data, err := json.Marshal(overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to encode overrides: %w", err)
	}
	if err := json.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("failed to apply overrides: %w", err)
	}
	return base, nil
}

// Validate checks struct constraints and cross references of a profile.
func (pp *ProfileParser) Validate(profile *Profile) []ValidationError {
	var out []ValidationError

	if err := pp.validator.Struct(profile); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				out = append(out, ValidationError{
					Path:     fe.Namespace(),
					Message:  fmt.Sprintf("failed %q constraint (value %v)", fe.Tag(), fe.Value()),
					Severity: "error",
				})
			}
		} else {
			out = append(out, ValidationError{Message: err.Error(), Severity: "error"})
		}
	}

	return append(out, crossReferences(profile)...)
}

// crossReferences checks that every entity name a profile mentions is defined
// and that patch lookups are usable.
func crossReferences(p *Profile) []ValidationError {
	var out []ValidationError
	fail := func(path, format string, args ...interface{}) {
		out = append(out, ValidationError{Path: path, Message: fmt.Sprintf(format, args...), Severity: "error"})
	}

	entities := make(map[string]bool, len(p.Entities))
	for i, e := range p.Entities {
		if entities[e.Name] {
			fail(fmt.Sprintf("entities[%d].name", i), "duplicate entity %q", e.Name)
		}
		entities[e.Name] = true
	}
	refersTo := func(path, name string) {
		if name != "" && !entities[name] {
			fail(path, "unknown entity %q", name)
		}
	}

	ids := make(map[string]bool, len(p.Patches))
	for i, pc := range p.Patches {
		path := fmt.Sprintf("patches[%d]", i)
		if ids[pc.ID] {
			fail(path+".id", "duplicate patch id %q", pc.ID)
		}
		ids[pc.ID] = true

		refersTo(path+".entity", pc.Entity)
		refersTo(path+".component", pc.Component)
		if pc.Chain != "" && resolve.ParseChain(pc.Chain) == nil {
			fail(path+".chain", "malformed chain %q", pc.Chain)
		}
		if err := pc.Spec().Validate(); err != nil {
			fail(path, "%v", err)
		}
	}

	refersTo("compensation.entity", p.Compensation.Entity)
	if p.Inventory.Enabled {
		refersTo("inventory.entity", p.Inventory.Entity)
	}
	return out
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (pp *ProfileParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// ExportCUE renders a profile as formatted CUE source.
func (pp *ProfileParser) ExportCUE(profile *Profile) ([]byte, error) {
	val := pp.ctx.Encode(profile)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	out, err := format.Node(val.Syntax(cue.Concrete(true)))
	if err != nil {
		return nil, fmt.Errorf("failed to format profile: %w", err)
	}
	return out, nil
}
