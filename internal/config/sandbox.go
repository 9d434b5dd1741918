package config

import (
	lua "github.com/yuin/gopher-lua"
)

// blockedGlobals are removed before user code runs: process control,
// filesystem access, code loading and metatable escapes.
var blockedGlobals = []string{
	"os", "io", "debug", "package",
	"require", "dofile", "loadfile", "load", "loadstring",
	"getmetatable", "setmetatable", "rawget", "rawset", "rawequal",
	"collectgarbage", "module", "newproxy",
}

// newSandboxedVM creates a Lua VM with only string, table, math and the
// basic value functions available.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{
		CallStackSize: 256,
		RegistrySize:  8 * 1024,
	})
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
