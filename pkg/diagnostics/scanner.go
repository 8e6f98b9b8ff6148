package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
	"github.com/openfroyo/stattweaks/pkg/stores"
)

// DefaultPrefix starts every report line.
const DefaultPrefix = "[StatScanner]"

// memberIndent follows the separating space, so member rows sit three
// spaces after the prefix.
const memberIndent = "  "

// Group selects types whose name contains Keyword, and of those types the
// members whose name contains any of MemberTokens. Both matches ignore case.
type Group struct {
	Keyword      string
	MemberTokens []string
}

// Options configures a Scanner.
type Options struct {
	// Prefix starts every line and, without brackets, names the log file.
	Prefix string

	// TargetModules are reported when loaded. Matching ignores case.
	TargetModules []string

	Groups []Group

	// Dir receives the log file. Empty disables the file.
	Dir string

	// RunID links scan records to a journaled run.
	RunID string

	// Now is the clock used for the file name; time.Now when nil.
	Now func() time.Time
}

// RecordSink stores scan rows. stores.Store satisfies it.
type RecordSink interface {
	AppendScanRecords(ctx context.Context, records []*stores.ScanRecord) error
}

// Report is the result of a scan.
type Report struct {
	ScanID  string
	Path    string
	Lines   []string
	Records []*stores.ScanRecord
}

// Scanner runs the diagnostic scan at most once.
type Scanner struct {
	host   objmodel.Host
	opts   Options
	sink   RecordSink
	logger zerolog.Logger

	once      sync.Once
	attempted bool
}

// NewScanner creates a scanner over host. sink may be nil.
func NewScanner(host objmodel.Host, opts Options, sink RecordSink, logger zerolog.Logger) *Scanner {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scanner{
		host:   host,
		opts:   opts,
		sink:   sink,
		logger: logger.With().Str("component", "diagnostics").Logger(),
	}
}

// Attempted reports whether Run has been called.
func (s *Scanner) Attempted() bool {
	return s.attempted
}

// Run performs the scan. Only the first call does any work; later calls
// return nil, nil. Output failures are logged and returned joined, and the
// report is still returned so callers can continue.
func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	var (
		report *Report
		err    error
	)
	s.once.Do(func() {
		s.attempted = true
		report, err = s.run(ctx)
	})
	return report, err
}

func (s *Scanner) run(ctx context.Context) (*Report, error) {
	b := &builder{
		prefix: s.opts.Prefix,
		scanID: uuid.New().String(),
	}
	if s.opts.RunID != "" {
		runID := s.opts.RunID
		b.runID = &runID
	}

	b.line(stores.ScanRecordModule, "stattweaks runtime scanner engaged.")
	b.line(stores.ScanRecordModule, "Output dir = "+s.opts.Dir)

	modules := s.modules(b)
	for _, m := range modules {
		if containsFold(s.opts.TargetModules, m.Name) {
			b.add(&stores.ScanRecord{Kind: stores.ScanRecordModule, Module: m.Name}, "Loaded module => "+m.Name)
		}
	}

	for _, g := range s.opts.Groups {
		s.scanGroup(b, modules, g)
	}

	report := &Report{ScanID: b.scanID, Lines: b.lines, Records: b.records}

	var errs []error
	if s.opts.Dir != "" {
		path, err := s.writeFile(b.lines)
		if err != nil {
			s.logger.Warn().Err(err).Msg(s.opts.Prefix + " Scan failed")
			errs = append(errs, err)
		} else {
			report.Path = path
			s.logger.Info().Str("path", path).Msg(s.opts.Prefix + " Wrote diagnostic log")
		}
	}

	if s.sink != nil {
		if err := s.sink.AppendScanRecords(ctx, b.records); err != nil {
			s.logger.Warn().Err(err).Msg(s.opts.Prefix + " Failed to journal scan records")
			errs = append(errs, fmt.Errorf("journal scan records: %w", err))
		}
	}

	s.logger.Debug().
		Str("scan_id", report.ScanID).
		Int("lines", len(report.Lines)).
		Msg("Diagnostic scan finished")

	return report, errors.Join(errs...)
}

// modules enumerates the host. A host that panics while enumerating yields
// an error line and no modules.
func (s *Scanner) modules(b *builder) (modules []objmodel.Module) {
	defer func() {
		if r := recover(); r != nil {
			b.line(stores.ScanRecordModule, fmt.Sprintf("Scan error: %v", r))
			s.logger.Warn().Interface("panic", r).Msg("Host module enumeration failed")
			modules = nil
		}
	}()
	return s.host.Modules()
}

// scanGroup appends the hits of one keyword group.
func (s *Scanner) scanGroup(b *builder, modules []objmodel.Module, g Group) {
	for _, m := range modules {
		for _, t := range m.Types {
			if !containsToken(t.Name, []string{g.Keyword}) {
				continue
			}
			b.add(&stores.ScanRecord{
				Kind:     stores.ScanRecordType,
				Group:    g.Keyword,
				Module:   m.Name,
				TypeName: t.FullName,
			}, "Type hit => "+t.FullName)

			for _, member := range t.Members {
				if !containsToken(member.Name, g.MemberTokens) {
					continue
				}
				kind, valueType := memberLabel(member)
				b.add(&stores.ScanRecord{
					Kind:       stores.ScanRecordMember,
					Group:      g.Keyword,
					Module:     m.Name,
					TypeName:   t.FullName,
					Member:     member.Name,
					MemberKind: kind,
					ValueType:  valueType,
				}, memberIndent+MemberSummary(member))
			}
		}
	}
}

func (s *Scanner) writeFile(lines []string) (string, error) {
	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create scan dir: %w", err)
	}
	path := filepath.Join(s.opts.Dir, LogFileName(s.opts.Prefix, s.opts.Now()))
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", fmt.Errorf("write scan log: %w", err)
	}
	return path, nil
}

// LogFileName returns <name>_YYYYMMDD_HHMMSS.log, where name is prefix
// without its brackets.
func LogFileName(prefix string, at time.Time) string {
	name := strings.Trim(prefix, "[] ")
	if name == "" {
		name = strings.Trim(DefaultPrefix, "[]")
	}
	return fmt.Sprintf("%s_%s.log", name, at.Format("20060102_150405"))
}

// MemberSummary renders a member as KIND Type Name, with parameter types
// for methods.
func MemberSummary(m objmodel.Member) string {
	kind, valueType := memberLabel(m)
	if m.Kind == objmodel.MemberMethod {
		return fmt.Sprintf("%s %s %s(%s)", kind, valueType, m.Name, strings.Join(m.Params, ","))
	}
	return fmt.Sprintf("%s %s %s", kind, valueType, m.Name)
}

func memberLabel(m objmodel.Member) (kind, valueType string) {
	valueType = m.ValueType
	if valueType == "" {
		valueType = "?"
	}
	switch m.Kind {
	case objmodel.MemberField:
		kind = "FIELD"
	case objmodel.MemberProperty:
		kind = "PROP"
	case objmodel.MemberEvent:
		kind = "EVENT"
	case objmodel.MemberMethod:
		kind = "METHOD"
	default:
		kind = strings.ToUpper(string(m.Kind))
	}
	return kind, valueType
}

func containsToken(name string, tokens []string) bool {
	lower := strings.ToLower(name)
	for _, tok := range tokens {
		if tok != "" && strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

func containsFold(list []string, name string) bool {
	for _, s := range list {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// builder accumulates report lines and their records side by side.
type builder struct {
	prefix  string
	scanID  string
	runID   *string
	lines   []string
	records []*stores.ScanRecord
}

func (b *builder) line(kind stores.ScanRecordKind, text string) {
	b.add(&stores.ScanRecord{Kind: kind}, text)
}

func (b *builder) add(rec *stores.ScanRecord, text string) {
	full := b.prefix + " " + text
	rec.ScanID = b.scanID
	rec.RunID = b.runID
	rec.Line = full
	b.lines = append(b.lines, full)
	b.records = append(b.records, rec)
}
