package host

import _ "embed"

//go:embed core.lua
var coreLua string
