// Package config loads the launcher's sync and install settings.
//
// Settings come from three layers, later layers winning:
//
//  1. env-style files (KEY=VALUE): /etc/codex-sync.env,
//     /usr/local/etc/codex-sync.env and ~/.codex/sync.env, or the single
//     file named by CODEX_SYNC_CONFIG_PATH
//  2. an optional Lua file, ~/.codex/cdx.lua (or CDX_LUA_CONFIG), evaluated
//     in a sandboxed gopher-lua VM with a read-only platform table
//  3. the CODEX_SYNC_ALLOW_INSECURE and CODEX_SYNC_OPTIONAL toggles
//
// A Lua config looks like:
//
//	cdx = {
//	  sync = {
//	    base_url = "https://codex-auth.example.com",
//	    api_key  = "…",
//	    optional = platform.is_macos,
//	  },
//	  install = {
//	    managers          = { "deploy" },
//	    cache_ttl_minutes = 60,
//	  },
//	}
package config
