package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DefaultMaxSteps bounds the Starlark work done by one on_tick call.
const DefaultMaxSteps = 1_000_000

// Tick is the frame information passed to on_tick.
type Tick struct {
	Frame   int
	Elapsed time.Duration
	Phase   string
}

// Scenario drives a fixture from a Starlark script.
type Scenario struct {
	name     string
	fixture  *Fixture
	globals  starlark.StringDict
	onTick   starlark.Callable
	maxSteps uint64
	logger   zerolog.Logger
}

// LoadScenario reads a scenario script from disk.
func LoadScenario(path string, fx *Fixture, logger zerolog.Logger) (*Scenario, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return NewScenario(path, string(src), fx, logger)
}

// NewScenario executes the script once and keeps its on_tick function.
func NewScenario(name, src string, fx *Fixture, logger zerolog.Logger) (*Scenario, error) {
	sc := &Scenario{
		name:     name,
		fixture:  fx,
		maxSteps: DefaultMaxSteps,
		logger:   logger.With().Str("component", "sandbox.scenario").Str("scenario", name).Logger(),
	}

	thread := sc.thread()
	globals, err := starlark.ExecFile(thread, name, src, sc.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}

	fn, ok := globals["on_tick"]
	if !ok {
		return nil, fmt.Errorf("scenario %s does not define on_tick", name)
	}
	callable, ok := fn.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("scenario %s: on_tick is a %s, not a function", name, fn.Type())
	}
	sc.globals = globals
	sc.onTick = callable
	return sc, nil
}

// Step calls on_tick and returns the mutations it produced.
func (sc *Scenario) Step(ctx context.Context, tick Tick) ([]Mutation, error) {
	thread := sc.thread()
	thread.SetMaxExecutionSteps(sc.maxSteps)
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(ctx.Err().Error())
	})
	defer stop()

	arg := starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"frame":   starlark.MakeInt(tick.Frame),
		"seconds": starlark.Float(tick.Elapsed.Seconds()),
		"phase":   starlark.String(tick.Phase),
	})
	ret, err := starlark.Call(thread, sc.onTick, starlark.Tuple{arg}, nil)
	if err != nil {
		return nil, fmt.Errorf("on_tick frame %d: %w", tick.Frame, err)
	}
	return toMutations(ret)
}

// Run calls on_tick and applies its mutations. Individual mutation failures
// are logged and skipped.
func (sc *Scenario) Run(ctx context.Context, tick Tick) (int, error) {
	muts, err := sc.Step(ctx, tick)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, m := range muts {
		if err := sc.fixture.Apply(m); err != nil {
			sc.logger.Warn().Err(err).Int("frame", tick.Frame).Str("mutation", m.String()).Msg("Mutation skipped")
			continue
		}
		sc.logger.Debug().Int("frame", tick.Frame).Str("mutation", m.String()).Msg("Mutation applied")
		applied++
	}
	return applied, nil
}

func (sc *Scenario) thread() *starlark.Thread {
	return &starlark.Thread{
		Name: "stattweaks-scenario",
		Print: func(_ *starlark.Thread, msg string) {
			sc.logger.Info().Msg(msg)
		},
	}
}

func (sc *Scenario) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"get":    starlark.NewBuiltin("get", sc.builtinGet),
		"alive":  starlark.NewBuiltin("alive", sc.builtinAlive),
	}
}

// builtinGet implements get(object, attribute), returning None when the
// attribute cannot be read.
func (sc *Scenario) builtinGet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var object, attribute string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "object", &object, "attribute", &attribute); err != nil {
		return nil, err
	}
	v, err := sc.fixture.Number(object, attribute)
	if err != nil {
		return starlark.None, nil
	}
	return starlark.Float(v), nil
}

// builtinAlive implements alive(object).
func (sc *Scenario) builtinAlive(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var object string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "object", &object); err != nil {
		return nil, err
	}
	return starlark.Bool(sc.fixture.Alive(object)), nil
}

// toMutations converts the on_tick return value. None means no change.
func toMutations(v starlark.Value) ([]Mutation, error) {
	if v == starlark.None {
		return nil, nil
	}
	list, ok := v.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("on_tick must return a list, got %s", v.Type())
	}

	muts := make([]Mutation, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		goVal, err := fromStarlarkValue(list.Index(i))
		if err != nil {
			return nil, fmt.Errorf("mutation %d: %w", i, err)
		}
		if _, ok := goVal.(map[string]interface{}); !ok {
			return nil, fmt.Errorf("mutation %d: expected a dict or struct, got %s", i, list.Index(i).Type())
		}
		// JSON is the shortest path from the generic map to the typed form.
		data, err := json.Marshal(goVal)
		if err != nil {
			return nil, fmt.Errorf("mutation %d: %w", i, err)
		}
		var m Mutation
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("mutation %d: %w", i, err)
		}
		muts = append(muts, m)
	}
	return muts, nil
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
