package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// LuaGlobal is the name under which ExposeToLua publishes Info.
const LuaGlobal = "platform"

// ExposeToLua publishes info to L as a read-only global table:
//
//	platform.os, platform.arch, platform.arch_raw
//	platform.linux, platform.gnu, platform.musl
//	platform.libc  = {name, version} or nil
//	platform.distro = {id, family, version} or nil
//	platform.pick(cond, a, b)
//
// It must run before the configuration chunk is loaded.
func ExposeToLua(L *lua.LState, info *Info) {
	if info == nil {
		info = &Info{}
	}
	t := L.NewTable()
	for k, v := range map[string]lua.LValue{
		"os":       lua.LString(info.OS),
		"arch":     lua.LString(info.Arch),
		"arch_raw": lua.LString(info.ArchRaw),
		"linux":    lua.LBool(info.IsLinux()),
		"gnu":      lua.LBool(info.Libc.Name == LibcGNU),
		"musl":     lua.LBool(info.Libc.Name == LibcMusl),
		"libc":     optTable(L, info.Libc.Known(), "name", info.Libc.Name, "version", info.Libc.Version),
		"distro": optTable(L, info.IsLinux() && info.Platform != "",
			"id", info.Platform, "family", info.Family, "version", info.Version),
		"pick": L.NewFunction(luaPick),
	} {
		t.RawSetString(k, v)
	}
	L.SetGlobal(LuaGlobal, readOnly(L, t))
}

// optTable builds a string table from key/value pairs, or nil when !present.
func optTable(L *lua.LState, present bool, kv ...string) lua.LValue {
	if !present {
		return lua.LNil
	}
	t := L.NewTable()
	for i := 0; i+1 < len(kv); i += 2 {
		t.RawSetString(kv[i], lua.LString(kv[i+1]))
	}
	return t
}

// luaPick implements pick(cond, a, b): a when cond is truthy, else b.
func luaPick(L *lua.LState) int {
	if lua.LVAsBool(L.Get(1)) {
		L.Push(L.Get(2))
	} else {
		L.Push(L.Get(3))
	}
	return 1
}

func readOnly(L *lua.LState, t *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	mt.RawSetString("__index", t)
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s is read-only", LuaGlobal)
		return 0
	}))
	mt.RawSetString("__metatable", lua.LString("locked"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
