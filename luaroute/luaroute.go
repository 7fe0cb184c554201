// Package luaroute compiles Lua scripts into route transforms, so the
// event-to-request wiring can be changed without recompiling firmware
// glue.
//
// A script defines a global transform function taking the event name and
// payload and returning the outgoing request pattern and payload:
//
//	function transform(event, payload)
//	    if event == "short_press" then
//	        return "led.toggle", ""
//	    end
//	    -- returning nothing skips the route
//	end
//
// Script state is owned by a single Lua VM that only ever runs on the
// bus dispatcher goroutine, which is where transforms execute.
package luaroute

import (
	"context"
	"errors"
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
)

// ErrNoTransform is returned when a script does not define a global
// transform function.
var ErrNoTransform = errors.New("luaroute: script defines no transform function")

// Script is a compiled Lua transform. It is not safe for concurrent use;
// the bus only invokes transforms on its dispatcher goroutine, which
// satisfies that constraint as long as the Script is wired to a single
// bus.
type Script struct {
	state *lua.LState
	fn    lua.LValue
}

// New compiles a transform script from source.
func New(src string) (*Script, error) {
	state := lua.NewState()
	if err := state.DoString(src); err != nil {
		state.Close()
		return nil, fmt.Errorf("luaroute: loading script: %w", err)
	}

	fn := state.GetGlobal("transform")
	if fn.Type() != lua.LTFunction {
		state.Close()
		return nil, ErrNoTransform
	}

	return &Script{state: state, fn: fn}, nil
}

// NewFile compiles a transform script from a file.
func NewFile(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("luaroute: reading %s: %w", path, err)
	}
	return New(string(src))
}

// Close releases the Lua VM. The script must not be wired to any active
// route afterwards.
func (s *Script) Close() {
	s.state.Close()
}

// Transform implements wirebus.Transform. A script error or a nil return
// skips the route for the event; the event path has no return channel
// to report failures on.
func (s *Script) Transform(_ context.Context, event string, payload []byte) (string, []byte) {
	err := s.state.CallByParam(lua.P{
		Fn:      s.fn,
		NRet:    2,
		Protect: true,
	}, lua.LString(event), lua.LString(payload))
	if err != nil {
		return "", nil
	}

	out := s.state.Get(-2)
	data := s.state.Get(-1)
	s.state.Pop(2)

	pat, ok := out.(lua.LString)
	if !ok {
		return "", nil
	}

	var body []byte
	if str, ok := data.(lua.LString); ok && len(str) > 0 {
		body = []byte(str)
	}
	return string(pat), body
}
