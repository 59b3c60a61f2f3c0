// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package plugin runs sandboxed Lua scripts that extract structured handler
// parameters from a request.
//
// A script is a file named <name>.lua in the extractors directory. It defines
// a global function extract(request), or returns a table holding one. The
// request table carries text, language, handler and the default params; the
// returned table is merged over those defaults.
package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// ExtractFunction is the entry point every script provides.
const ExtractFunction = "extract"

var scriptName = regexp.MustCompile(`^[a-z0-9_]+$`)

// luaDate converts the strftime directives scripts commonly use.
var luaDate = strings.NewReplacer(
	"%c", "Mon Jan _2 15:04:05 2006",
	"%Y", "2006", "%m", "01", "%d", "02",
	"%H", "15", "%M", "04", "%S", "05",
	"%A", "Monday", "%B", "January",
)

// Config controls the Lua engine.
type Config struct {
	// Enabled determines if scripts are loaded and run.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Dir holds the <name>.lua scripts.
	Dir string `yaml:"dir" json:"dir"`
	// Timeout bounds a single script run. Zero means 250ms.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// LuaEngine compiles scripts once and runs them on pooled interpreter states.
type LuaEngine struct {
	pool      sync.Pool
	dir       string
	timeout   time.Duration
	scripts   map[string]*lua.FunctionProto
	scriptsMu sync.RWMutex
	enabled   bool
}

// NewLuaEngine creates a new Lua engine and loads every script in cfg.Dir.
func NewLuaEngine(cfg Config) *LuaEngine {
	if !cfg.Enabled {
		return &LuaEngine{enabled: false}
	}

	engine := &LuaEngine{
		dir:     cfg.Dir,
		timeout: cfg.Timeout,
		scripts: make(map[string]*lua.FunctionProto),
		enabled: true,
	}
	if engine.timeout <= 0 {
		engine.timeout = 250 * time.Millisecond
	}

	engine.pool = sync.Pool{
		New: func() interface{} {
			// Only the side-effect free libraries are opened.
			L := lua.NewState(lua.Options{
				SkipOpenLibs: true,
			})
			lua.OpenBase(L)
			lua.OpenTable(L)
			lua.OpenString(L)
			lua.OpenMath(L)

			osTbl := L.NewTable()
			L.SetField(osTbl, "date", L.NewFunction(func(L *lua.LState) int {
				format := L.OptString(1, "%c")
				t := time.Now()
				if L.GetTop() >= 2 {
					t = time.Unix(int64(L.CheckNumber(2)), 0)
				}
				L.Push(lua.LString(t.Format(luaDate.Replace(format))))
				return 1
			}))
			L.SetField(osTbl, "time", L.NewFunction(func(L *lua.LState) int {
				L.Push(lua.LNumber(time.Now().Unix()))
				return 1
			}))
			L.SetGlobal("os", osTbl)

			L.SetGlobal("dofile", lua.LNil)
			L.SetGlobal("loadfile", lua.LNil)
			L.SetGlobal("require", lua.LNil)

			engine.registerBhashaModule(L)
			return L
		},
	}

	if cfg.Dir != "" {
		if err := engine.LoadScripts(); err != nil {
			log.Warnf("failed to load extractor scripts from %s: %v", cfg.Dir, err)
		}
	}
	return engine
}

// IsEnabled returns whether the engine is enabled.
func (e *LuaEngine) IsEnabled() bool {
	return e != nil && e.enabled
}

func (e *LuaEngine) getState() *lua.LState {
	return e.pool.Get().(*lua.LState)
}

func (e *LuaEngine) putState(L *lua.LState) {
	L.SetTop(0)
	L.RemoveContext()
	e.pool.Put(L)
}

// LoadScripts compiles every <name>.lua file in the script directory. A script
// that fails to compile is skipped with a warning.
func (e *LuaEngine) LoadScripts() error {
	if !e.IsEnabled() || e.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("extractor directory %s does not exist, skipping", e.dir)
			return nil
		}
		return fmt.Errorf("failed to read extractor directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".lua")
		if !scriptName.MatchString(name) {
			log.Warnf("skipping extractor %s: invalid name", entry.Name())
			continue
		}
		if err := e.loadScript(name, filepath.Join(e.dir, entry.Name())); err != nil {
			log.Warnf("skipping extractor %s: %v", entry.Name(), err)
		}
	}
	return nil
}

func (e *LuaEngine) loadScript(name, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return e.LoadString(name, string(content))
}

// LoadString compiles source and registers it under name.
func (e *LuaEngine) LoadString(name, source string) error {
	if !e.IsEnabled() {
		return fmt.Errorf("lua engine disabled")
	}
	L := e.getState()
	defer e.putState(L)

	fn, err := L.LoadString(source)
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", name, err)
	}

	e.scriptsMu.Lock()
	defer e.scriptsMu.Unlock()
	e.scripts[name] = fn.Proto
	log.Debugf("loaded extractor script %s", name)
	return nil
}

// Has reports whether a script is registered under name.
func (e *LuaEngine) Has(name string) bool {
	if !e.IsEnabled() {
		return false
	}
	e.scriptsMu.RLock()
	defer e.scriptsMu.RUnlock()
	_, ok := e.scripts[name]
	return ok
}

// Scripts lists the registered script names in sorted order.
func (e *LuaEngine) Scripts() []string {
	if !e.IsEnabled() {
		return nil
	}
	e.scriptsMu.RLock()
	defer e.scriptsMu.RUnlock()
	names := make([]string, 0, len(e.scripts))
	for name := range e.scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run calls extract(request) in the named script. It returns nil when the
// script does not exist or returns nothing.
func (e *LuaEngine) Run(ctx context.Context, name string, request map[string]any) (map[string]any, error) {
	if !e.IsEnabled() {
		return nil, nil
	}
	e.scriptsMu.RLock()
	proto, ok := e.scripts[name]
	e.scriptsMu.RUnlock()
	if !ok {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	L := e.getState()
	defer e.putState(L)
	L.SetContext(ctx)
	// pooled states may hold the entry point of a previously run script
	L.SetGlobal(ExtractFunction, lua.LNil)

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	module := L.Get(-1)
	L.Pop(1)

	var extractFn lua.LValue = lua.LNil
	if tbl, ok := module.(*lua.LTable); ok {
		extractFn = L.GetField(tbl, ExtractFunction)
	}
	if extractFn.Type() != lua.LTFunction {
		extractFn = L.GetGlobal(ExtractFunction)
	}
	if extractFn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%s does not define %s()", name, ExtractFunction)
	}

	L.Push(extractFn)
	L.Push(e.goMapToLuaTable(L, request))
	if err := L.PCall(1, 1, nil); err != nil {
		return nil, fmt.Errorf("%s.%s failed: %w", name, ExtractFunction, err)
	}
	result := L.Get(-1)
	L.Pop(1)

	if tbl, ok := result.(*lua.LTable); ok {
		return e.luaTableToGoMap(tbl), nil
	}
	return nil, nil
}

// goMapToLuaTable converts a Go map to a Lua table.
func (e *LuaEngine) goMapToLuaTable(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range m {
		L.SetField(tbl, k, e.goValueToLua(L, v))
	}
	return tbl
}

// goValueToLua converts a Go value to a Lua value.
func (e *LuaEngine) goValueToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []string:
		tbl := L.NewTable()
		for i, item := range val {
			L.RawSetInt(tbl, i+1, lua.LString(item))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for i, item := range val {
			L.RawSetInt(tbl, i+1, e.goValueToLua(L, item))
		}
		return tbl
	case map[string]any:
		return e.goMapToLuaTable(L, val)
	default:
		if b, err := json.Marshal(val); err == nil {
			return lua.LString(string(b))
		}
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// luaTableToGoMap converts a Lua table to a Go map.
func (e *LuaEngine) luaTableToGoMap(tbl *lua.LTable) map[string]any {
	result := make(map[string]any)
	tbl.ForEach(func(key lua.LValue, value lua.LValue) {
		if keyStr, ok := key.(lua.LString); ok {
			result[string(keyStr)] = e.luaValueToGo(value)
		}
	})
	return result
}

// luaValueToGo converts a Lua value to a Go value.
func (e *LuaEngine) luaValueToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		isArray := true
		maxIdx := 0
		val.ForEach(func(k, _ lua.LValue) {
			if num, ok := k.(lua.LNumber); ok {
				idx := int(num)
				if idx > maxIdx {
					maxIdx = idx
				}
			} else {
				isArray = false
			}
		})

		if isArray && maxIdx > 0 {
			arr := make([]any, maxIdx)
			val.ForEach(func(k, v lua.LValue) {
				if num, ok := k.(lua.LNumber); ok {
					idx := int(num) - 1
					if idx >= 0 && idx < len(arr) {
						arr[idx] = e.luaValueToGo(v)
					}
				}
			})
			return arr
		}
		return e.luaTableToGoMap(val)
	default:
		return nil
	}
}

// registerBhashaModule exposes text helpers as the global table "bhasha".
func (e *LuaEngine) registerBhashaModule(L *lua.LState) {
	mod := L.NewTable()

	// bhasha.contains(text, word...) reports whether any word occurs in text,
	// ignoring case.
	L.SetField(mod, "contains", L.NewFunction(func(L *lua.LState) int {
		text := strings.ToLower(L.CheckString(1))
		for i := 2; i <= L.GetTop(); i++ {
			if strings.Contains(text, strings.ToLower(L.CheckString(i))) {
				L.Push(lua.LTrue)
				return 1
			}
		}
		L.Push(lua.LFalse)
		return 1
	}))

	// bhasha.words(text) splits text into lower-cased words.
	L.SetField(mod, "words", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		for i, w := range strings.Fields(strings.ToLower(L.CheckString(1))) {
			L.RawSetInt(tbl, i+1, lua.LString(strings.Trim(w, ".,!?;:\"'()")))
		}
		L.Push(tbl)
		return 1
	}))

	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		log.WithField("component", "lua").Debug(L.CheckString(1))
		return 0
	}))

	L.SetGlobal("bhasha", mod)
}

// Close releases the compiled scripts.
func (e *LuaEngine) Close() {
	if e == nil {
		return
	}
	e.scriptsMu.Lock()
	e.scripts = nil
	e.scriptsMu.Unlock()
	e.enabled = false
}
