package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/pkg/errors"

	"github.com/chazu/dlvdb"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites script source into something zygomys accepts:
//
//   - :grid becomes the string "__kw_grid", so keywords need no globals.
//   - vdb-bbox becomes vdb_bbox. zygomys reads a hyphen as subtraction, so
//     only hyphens between identifier characters are rewritten.
//   - ; and ;; line comments become //.
//
// String literals, in double quotes or backticks, pass through untouched.
func preprocessSource(source string) string {
	src := []byte(source)
	out := make([]byte, 0, len(src)+len(src)/4)
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '`':
			n := quotedLen(src[i:])
			out = append(out, src[i:i+n]...)
			i += n
		case c == ';':
			for i < len(src) && src[i] == ';' {
				i++
			}
			out = append(out, '/', '/')
			for i < len(src) && src[i] != '\n' {
				out = append(out, src[i])
				i++
			}
		case c == ':' && i+1 < len(src) && src[i+1] == '=':
			out = append(out, ':', '=')
			i += 2
		case c == ':' && i+1 < len(src) && isLetter(src[i+1]):
			j := i + 1
			for j < len(src) && isKWChar(src[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			out = append(out, src[i+1:j]...)
			out = append(out, '"')
			i = j
		case c == '-' && i > 0 && i+1 < len(src) && isIdentChar(src[i-1]) && isLetter(src[i+1]):
			out = append(out, '_')
			i++
		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

// quotedLen returns the length of the string literal at the start of b,
// including both quotes. An unterminated literal runs to the end of b.
// Backslash escapes apply to double-quoted literals only.
func quotedLen(b []byte) int {
	quote := b[0]
	i := 1
	for i < len(b) && b[i] != quote {
		if quote == '"' && b[i] == '\\' && i+1 < len(b) {
			i++
		}
		i++
	}
	if i < len(b) {
		i++
	}
	return i
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpPoints carries a point set between builtins without converting every
// sample to a Lisp value.
type sexpPoints struct {
	grid   string
	points dlvdb.Points
}

func (p *sexpPoints) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(points %q %d)", p.grid, p.points.Len())
}
func (p *sexpPoints) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Argument helpers
// ---------------------------------------------------------------------------

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword arguments, marked by preprocessSource, from
// positional ones. A trailing keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", errors.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if n, ok := s.(*zygo.SexpInt); ok {
		return int(n.Val), nil
	}
	return 0, errors.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toPoints(s zygo.Sexp) (*sexpPoints, error) {
	if p, ok := s.(*sexpPoints); ok {
		return p, nil
	}
	return nil, errors.Errorf("expected points, got %T (%s)", s, s.SexpString(nil))
}

// fileArg opens the file named by the first positional argument.
func (e *Engine) fileArg(builtin string, pa kwArgs) (*dlvdb.Query, error) {
	if len(pa.positional) < 1 {
		return nil, errors.Errorf("%s requires a file argument", builtin)
	}
	path, err := toString(pa.positional[0])
	if err != nil {
		return nil, errors.Wrapf(err, "%s: file", builtin)
	}
	q, err := dlvdb.Open(path, e.opts...)
	if err != nil {
		return nil, errors.Wrap(err, builtin)
	}
	return q, nil
}

func floatList(vals []float64) zygo.Sexp {
	items := make([]zygo.Sexp, len(vals))
	for i, v := range vals {
		items[i] = &zygo.SexpFloat{Val: v}
	}
	return zygo.MakeList(items)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the query builtins into env. Names are
// registered in underscore form, matching preprocessed source.
func (e *Engine) registerBuiltins(env *zygo.Zlisp) {

	// -----------------------------------------------------------------------
	// (vdb-bbox "file") -> (xmin ymin zmin xmax ymax zmax)
	// -----------------------------------------------------------------------
	env.AddFunction("vdb_bbox", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		q, err := e.fileArg("vdb-bbox", parseArgs(args))
		if err != nil {
			return zygo.SexpNull, err
		}
		b, err := q.BoundingBox()
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "vdb-bbox")
		}
		return floatList(b[:]), nil
	})

	// -----------------------------------------------------------------------
	// (vdb-grids "file") -> ("name" ...)
	// -----------------------------------------------------------------------
	env.AddFunction("vdb_grids", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		q, err := e.fileArg("vdb-grids", parseArgs(args))
		if err != nil {
			return zygo.SexpNull, err
		}
		names, err := q.GridNames()
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "vdb-grids")
		}
		items := make([]zygo.Sexp, len(names))
		for i, n := range names {
			items[i] = &zygo.SexpStr{S: n}
		}
		return zygo.MakeList(items), nil
	})

	// -----------------------------------------------------------------------
	// (vdb-points "file" "grid") or (vdb-points "file" :grid "grid")
	// -----------------------------------------------------------------------
	env.AddFunction("vdb_points", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		q, err := e.fileArg("vdb-points", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		gridArg, ok := pa.kw["grid"]
		if !ok {
			if len(pa.positional) < 2 {
				return zygo.SexpNull, errors.New("vdb-points requires a grid argument")
			}
			gridArg = pa.positional[1]
		}
		grid, err := toString(gridArg)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "vdb-points: grid")
		}
		pts, err := q.DensityToPoints(grid)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "vdb-points")
		}
		return &sexpPoints{grid: grid, points: pts}, nil
	})

	// -----------------------------------------------------------------------
	// (point-count pts) -> n
	// -----------------------------------------------------------------------
	env.AddFunction("point_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("point-count requires one argument")
		}
		p, err := toPoints(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "point-count")
		}
		return &zygo.SexpInt{Val: int64(p.points.Len())}, nil
	})

	// -----------------------------------------------------------------------
	// (point-at pts i) -> (x y z)
	// -----------------------------------------------------------------------
	env.AddFunction("point_at", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, errors.New("point-at requires points and an index")
		}
		p, err := toPoints(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "point-at")
		}
		i, err := toInt(args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "point-at: index")
		}
		if i < 0 || i >= p.points.Len() {
			return zygo.SexpNull, errors.Errorf("point-at: index %d out of range [0, %d)", i, p.points.Len())
		}
		v := p.points.At(i)
		return floatList([]float64{v.X, v.Y, v.Z}), nil
	})
}
