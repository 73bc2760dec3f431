package registry

import (
	"fmt"
	"path"

	"github.com/edgegate-io/edgegate/internal/connector/cnccloud"
	"github.com/edgegate-io/edgegate/internal/connector/httpconn"
	"github.com/edgegate-io/edgegate/internal/connector/tempsensor"
)

// builtins is the compiled-in constructor table. Module references resolve
// by exact key first, then by final path element, so both "CncCloud" and
// "plugins/CncCloud" load the same type.
var builtins = map[string]Constructor{
	"CncCloud":   cnccloud.New,
	"Http":       httpconn.New,
	"TempSensor": tempsensor.New,
}

// BuiltinLoader resolves module references against the compiled-in types.
func BuiltinLoader(ref string) (Constructor, error) {
	if construct, ok := builtins[ref]; ok {
		return construct, nil
	}
	if construct, ok := builtins[path.Base(ref)]; ok {
		return construct, nil
	}
	return nil, fmt.Errorf("no builtin connector for module %q", ref)
}
