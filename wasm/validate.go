package wasm

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/firefly-zero/firefly-cli/rom"
)

// Validate compiles bin with the interpreter engine and checks the compiled
// module's function imports against allowed.
//
// Compilation performs full structural and type validation of function
// bodies, which Postprocess itself never looks at.
func Validate(ctx context.Context, bin []byte, allowed []string) error {
	cfg := wazero.NewRuntimeConfigInterpreter().WithCoreFeatures(api.CoreFeaturesV2)
	r := wazero.NewRuntimeWithConfig(ctx, cfg)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		return rom.Wrap(rom.KindInvalidModule, "", "compile module", err)
	}
	defer compiled.Close(ctx)

	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}
	for _, fn := range compiled.ImportedFunctions() {
		moduleName, name, isImport := fn.Import()
		if !isImport {
			continue
		}
		full := moduleName + "." + name
		if !set[full] {
			return rom.Errorf(rom.KindInvalidImport, full, "host function is not in the allow-list")
		}
	}
	return nil
}
