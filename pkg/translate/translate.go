// Package translate drives the pipeline for one header: seed the macro
// table, expand, parse, resolve, and populate the canonical model. All
// counters and tables are scoped to a single run; nothing here is global.
package translate

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/raymyers/cbind/pkg/cpp"
	"github.com/raymyers/cbind/pkg/ctypes"
	"github.com/raymyers/cbind/pkg/model"
	"github.com/raymyers/cbind/pkg/parser"
	"github.com/raymyers/cbind/pkg/platform"
	"github.com/raymyers/cbind/pkg/resolve"
)

// Options configures one translation run.
type Options struct {
	// Profile is the target ABI; nil means the LP64 default.
	Profile *platform.Profile
	// Defines are extra predefined macros, seeded after the profile's.
	Defines map[string]string
	// Logger receives skipped-directive and dropped-declaration
	// diagnostics. Nil discards them, which keeps tests quiet.
	Logger *log.Logger
}

// Result is the output of a successful run. The model is complete even
// when Warnings is non-empty; a warning means an input region was skipped
// or recorded with a diagnostic, never silently lost.
type Result struct {
	Model    *model.Model
	Macros   *cpp.MacroTable
	Resolver *resolve.Resolver
	Warnings []string
}

// Header translates one pre-include-expanded header into the canonical
// model. The returned error is run-fatal: corrupt macro table state that
// makes further tokenization ambiguous. Node-local problems surface as
// entry diagnostics and warnings instead.
func Header(source, filename string, opts Options) (*Result, error) {
	profile := opts.Profile
	if profile == nil {
		profile = platform.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	macros := cpp.NewMacroTable()
	macros.Seed(profile.Defines)
	macros.Seed(opts.Defines)

	proc := cpp.NewProcessor(macros)
	tokens, err := proc.Process(source, filename)
	if err != nil {
		return nil, fmt.Errorf("preprocessing %s: %w", filename, err)
	}
	warnings := append([]string(nil), proc.Warnings()...)
	for _, w := range proc.Warnings() {
		logger.Warn("directive skipped", "detail", w)
	}

	p := parser.New(tokens, parser.NewTagCounter())
	decls := p.ParseHeader()

	res := resolve.New(profile)
	res.AddDecls(decls)

	// Entries merge by source line so records come out in the order the
	// header declared them, macros included.
	type item struct {
		line  int
		entry model.Entry
	}
	var items []item
	add := func(line int, e model.Entry) {
		items = append(items, item{line: line, entry: e})
	}

	for _, d := range decls {
		switch d := d.(type) {
		case *parser.StructDecl:
			add(d.Src.Line, model.Entry{
				Kind:   model.KindStruct,
				Name:   d.Def.Tag,
				Type:   d.Def,
				Src:    d.Src,
				Errors: combineErrors(d.ErrorList(), d.Def.ErrorList()),
			})
		case *parser.EnumDecl:
			add(d.Src.Line, model.Entry{
				Kind:   model.KindEnum,
				Name:   d.Def.Tag,
				Type:   d.Def,
				Src:    d.Src,
				Errors: combineErrors(d.ErrorList(), d.Def.ErrorList()),
			})
			// Each enumerator is also visible as a top-level constant.
			for _, e := range d.Def.Enumerators {
				add(d.Src.Line, model.Entry{
					Kind:  model.KindConstant,
					Name:  e.Name,
					Value: e.Value,
					Src:   d.Src,
				})
			}
		case *parser.TypedefDecl:
			add(d.Src.Line, model.Entry{
				Kind:   model.KindTypedef,
				Name:   d.Name,
				Type:   d.Type,
				Src:    d.Src,
				Errors: d.ErrorList(),
			})
		case *parser.FunctionDecl:
			add(d.Src.Line, model.Entry{
				Kind:   model.KindFunction,
				Name:   d.Name,
				Type:   d.Type,
				Src:    d.Src,
				Errors: d.ErrorList(),
			})
		case *parser.VariableDecl:
			// The record set has no variable kind; a top-level variable
			// surfaces as a constant carrying its type and initializer.
			add(d.Src.Line, model.Entry{
				Kind:   model.KindConstant,
				Name:   d.Name,
				Value:  d.Init,
				Type:   d.Type,
				Src:    d.Src,
				Errors: d.ErrorList(),
			})
		case *parser.BadDecl:
			for _, msg := range d.ErrorList() {
				w := fmt.Sprintf("%s:%d: %s", d.Src.File, d.Src.Line, msg)
				warnings = append(warnings, w)
				logger.Error("declaration dropped", "detail", w)
			}
		}
	}

	for _, name := range macros.Names() {
		mac := macros.Lookup(name)
		if mac.Loc.File == "<predefined>" {
			continue
		}
		entry := macroEntry(mac)
		add(mac.Loc.Line, entry)
		for _, msg := range entry.Errors {
			logger.Warn("macro diagnostic", "macro", name, "detail", msg)
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].line < items[j].line })

	m := model.New()
	for _, it := range items {
		m.Add(it.entry)
	}

	return &Result{
		Model:    m,
		Macros:   macros,
		Resolver: res,
		Warnings: warnings,
	}, nil
}

// macroEntry normalizes one macro into a model entry. A body that is not a
// constant expression keeps its raw text and a diagnostic instead of being
// dropped.
func macroEntry(mac *cpp.Macro) model.Entry {
	entry := model.Entry{
		Name:   mac.Name,
		Src:    ctypesLoc(mac.Loc),
		Errors: append([]string(nil), mac.Errors...),
	}
	if mac.Kind == cpp.MacroFunction {
		entry.Kind = model.KindMacroFunction
		entry.Args = append([]string(nil), mac.Params...)
		if mac.IsVariadic {
			entry.Args = append(entry.Args, "...")
		}
	} else {
		entry.Kind = model.KindMacro
	}

	raw := strings.TrimSpace(mac.Body())
	if raw == "" {
		// Bare flag macro, e.g. "#define FLAG".
		return entry
	}

	node, err := parser.ParseMacroExpression(mac.Replacement)
	if err != nil {
		entry.Raw = raw
		entry.Errors = append(entry.Errors, err.Error())
		return entry
	}
	if entry.Kind == model.KindMacroFunction {
		entry.Body = node
	} else {
		entry.Value = node
	}
	return entry
}

func combineErrors(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func ctypesLoc(loc cpp.SourceLoc) ctypes.SourceLoc {
	return ctypes.SourceLoc{File: loc.File, Line: loc.Line}
}
