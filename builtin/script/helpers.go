package script

import (
	"sort"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/ohler55/ojg/oj"
)

// blocked lists the globals and os functions scripts may not reach.
var (
	blockedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require"}
	blockedOS      = []string{"execute", "exit", "getenv", "remove", "rename", "setlocale", "tmpname"}
)

// utilities are the helper functions every script can call.
var utilities = map[string]lua.Function{
	"json_encode":  jsonEncode,
	"json_decode":  jsonDecode,
	"str_trim":     strTrim,
	"str_split":    strSplit,
	"str_contains": strContains,
	"str_replace":  strReplace,
	"type_of":      typeOf,
}

// newSandbox returns a Lua state with only the safe standard libraries and
// the script utilities loaded.
func newSandbox() *lua.State {
	l := lua.NewState()
	for _, lib := range []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "table", Function: lua.TableOpen},
		{Name: "math", Function: lua.MathOpen},
		{Name: "os", Function: lua.OSOpen},
	} {
		lua.Require(l, lib.Name, lib.Function, true)
		l.Pop(1)
	}

	l.Global("os")
	for _, name := range blockedOS {
		l.PushNil()
		l.SetField(-2, name)
	}
	l.Pop(1)
	for _, name := range blockedGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}

	for name, fn := range utilities {
		l.Register(name, fn)
	}
	return l
}

// push converts a Go value to Lua and leaves it on the stack.
func push(l *lua.State, v any) {
	switch val := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(val)
	case int:
		l.PushInteger(val)
	case int64:
		l.PushInteger(int(val))
	case float64:
		l.PushNumber(val)
	case string:
		l.PushString(val)
	case []any:
		l.CreateTable(len(val), 0)
		for i, item := range val {
			push(l, item)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.CreateTable(0, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			push(l, val[k])
			l.SetField(-2, k)
		}
	default:
		l.PushString(oj.JSON(val))
	}
}

// pull converts the Lua value at idx to Go. Numbers become float64, tables
// with only positive integer keys become []any, other tables map[string]any.
func pull(l *lua.State, idx int) any {
	switch l.TypeOf(idx) {
	case lua.TypeBoolean:
		return l.ToBoolean(idx)
	case lua.TypeNumber:
		n, _ := l.ToNumber(idx)
		return n
	case lua.TypeString:
		s, _ := l.ToString(idx)
		return s
	case lua.TypeTable:
		return pullTable(l, l.AbsIndex(idx))
	default:
		return nil
	}
}

func pullTable(l *lua.State, idx int) any {
	n := 0
	array := true
	l.PushNil()
	for l.Next(idx) {
		if l.TypeOf(-2) != lua.TypeNumber {
			array = false
			l.Pop(2)
			break
		}
		k, _ := l.ToNumber(-2)
		n = max(n, int(k))
		l.Pop(1)
	}

	if array && n > 0 {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			l.RawGetInt(idx, i)
			out[i-1] = pull(l, -1)
			l.Pop(1)
		}
		return out
	}

	out := make(map[string]any)
	l.PushNil()
	for l.Next(idx) {
		// ToString would turn a numeric key into a string in place and break Next.
		l.PushValue(-2)
		key, _ := l.ToString(-1)
		l.Pop(1)
		out[key] = pull(l, -1)
		l.Pop(1)
	}
	return out
}

func jsonEncode(l *lua.State) int {
	l.PushString(oj.JSON(pull(l, 1), &oj.Options{Sort: true}))
	return 1
}

func jsonDecode(l *lua.State) int {
	v, err := oj.ParseString(lua.CheckString(l, 1))
	if err != nil {
		l.PushNil()
		l.PushString(err.Error())
		return 2
	}
	push(l, v)
	return 1
}

func strTrim(l *lua.State) int {
	l.PushString(strings.TrimSpace(lua.CheckString(l, 1)))
	return 1
}

func strSplit(l *lua.State) int {
	parts := strings.Split(lua.CheckString(l, 1), lua.CheckString(l, 2))
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	push(l, out)
	return 1
}

func strContains(l *lua.State) int {
	l.PushBoolean(strings.Contains(lua.CheckString(l, 1), lua.CheckString(l, 2)))
	return 1
}

func strReplace(l *lua.State) int {
	n := lua.OptInteger(l, 4, -1)
	l.PushString(strings.Replace(lua.CheckString(l, 1), lua.CheckString(l, 2), lua.CheckString(l, 3), n))
	return 1
}

func typeOf(l *lua.State) int {
	l.PushString(lua.TypeNameOf(l, 1))
	return 1
}
