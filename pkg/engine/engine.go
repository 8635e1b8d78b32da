// Package engine evaluates query scripts. It wraps zygomys in a sandboxed
// environment and exposes the dlvdb queries as Lisp builtins:
//
//	(vdb-bbox "file")            ; (xmin ymin zmin xmax ymax zmax)
//	(vdb-grids "file")           ; ("name" ...)
//	(vdb-points "file" "grid")   ; opaque point set
//	(point-count pts)            ; integer
//	(point-at pts i)             ; (x y z)
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/pkg/errors"

	"github.com/chazu/dlvdb"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code or a failed query.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result is the output of a successful evaluation.
type Result struct {
	// Value is the printed form of the last expression, or "" for an
	// empty script.
	Value string
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use; each
// call to Evaluate creates a fresh sandboxed environment.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	opts       []dlvdb.Option
}

// NewEngine creates an Engine. opts are passed to dlvdb.Open for every file
// a script queries.
func NewEngine(opts ...dlvdb.Option) *Engine {
	return &Engine{opts: opts}
}

// Evaluate runs source in a fresh sandbox.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval/query failure: returns nil result + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
//
// A timed out evaluation keeps running in the background until it returns;
// a native call in progress cannot be interrupted.
func (e *Engine) Evaluate(source string) (*Result, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: errors.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res, evalErrs, err := e.evaluate(source)
		ch <- evalResult{result: res, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, EvalTimeout)
}

func (e *Engine) evaluate(source string) (*Result, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return &Result{}, nil, nil
	}

	// Sandbox mode keeps scripts away from the filesystem and syscalls; the
	// builtins are the only way out.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	e.registerBuiltins(env)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}

	v, err := env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}
	return &Result{Value: v.SexpString(nil)}, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?is)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?is)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalErrors, extracting a
// line number when the message carries one. Text around the location is
// kept as the message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, p := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := p.FindStringSubmatchIndex(msg); m != nil {
			line, _ := strconv.Atoi(msg[m[2]:m[3]])
			detail := strings.TrimSpace(msg[:m[0]]) + " " + strings.TrimSpace(msg[m[4]:m[5]])
			return []EvalError{{Line: line, Message: strings.TrimSpace(detail)}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
