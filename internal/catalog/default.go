package catalog

import (
	_ "embed"
	"sync"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry built from the embedded catalog.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load(defaultCatalog)
		if err != nil {
			// The embedded catalog is part of the build; failing to parse
			// it is a programming error, not a runtime condition.
			panic("catalog: " + err.Error())
		}
		defaultReg = reg
	})
	return defaultReg
}
