package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

var functions = map[string]func() string{
	"uuid":      func() string { return uuid.NewString() },
	"timestamp": func() string { return fmt.Sprintf("%d", time.Now().Unix()) },
	"now":       func() string { return time.Now().UTC().Format(time.RFC3339) },
}

// Resolver substitutes {{...}} expressions. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  map[string]any
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		captures:  make(map[string]any),
	}
}

// SetWarnFunc sets a function to be called for unresolved expressions
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

// SetStringVariables is SetVariables for string maps such as .env contents.
func (r *Resolver) SetStringVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture stores a value captured by step, reachable as {{step.name}} and
// as {{name}}; later captures of the same bare name win.
func (r *Resolver) SetCapture(step, name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if step != "" {
		r.captures[step+"."+name] = value
	}
	r.captures[name] = value
}

func (r *Resolver) lookup(expr string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[expr]; ok {
		return v, true
	}
	if v, ok := r.variables[expr]; ok {
		return v, true
	}
	return nil, false
}

// GetVariable returns a captured or declared value.
func (r *Resolver) GetVariable(name string) (any, bool) {
	return r.lookup(name)
}

func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		if strings.HasPrefix(expr, "$") {
			if val, ok := os.LookupEnv(expr[1:]); ok {
				return val
			}
			r.warn("unresolved environment variable: %s", expr)
			return match
		}

		if name, ok := strings.CutSuffix(expr, "()"); ok {
			if fn, found := functions[name]; found {
				return fn()
			}
			r.warn("unknown function: %s", expr)
			return match
		}

		if val, ok := r.lookup(expr); ok {
			return fmt.Sprintf("%v", val)
		}

		r.warn("unresolved variable: %s", expr)
		return match
	})
}

// GetUnresolvedVariables lists the expressions in input that Resolve would
// leave untouched, in order of appearance.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var unresolved []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(expr, "$"):
			if _, ok := os.LookupEnv(expr[1:]); ok {
				continue
			}
		case strings.HasSuffix(expr, "()"):
			if _, ok := functions[strings.TrimSuffix(expr, "()")]; ok {
				continue
			}
		default:
			if _, ok := r.lookup(expr); ok {
				continue
			}
		}
		unresolved = append(unresolved, expr)
	}
	return unresolved
}

func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}
