package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/axifabric/decl"
	"github.com/sarchlab/axifabric/driver"
	"github.com/sarchlab/axifabric/fabric"
	"github.com/sarchlab/axifabric/fabric/adapter"
	"github.com/sarchlab/axifabric/hooking"
)

var errNoSource = errors.New("give exactly one of --file and --preset")

func readDeclaration(cmd *cobra.Command) (*decl.File, error) {
	file, _ := cmd.Flags().GetString("file")
	preset, _ := cmd.Flags().GetString("preset")

	switch {
	case file != "" && preset == "":
		return decl.Load(file)
	case preset != "" && file == "":
		return decl.Preset(preset)
	default:
		return nil, errNoSource
	}
}

func fabricSpec() fabric.Spec {
	spec := fabric.DefaultSpec()

	if cfg.AddressWidth != 0 {
		spec.AddressWidth = cfg.AddressWidth
	}

	if cfg.AllocBase != 0 {
		spec.AllocBase = uint64(cfg.AllocBase)
	}

	return spec
}

func logHook(cmd *cobra.Command) hooking.Hook {
	if !cfg.Verbose {
		return nil
	}

	return hooking.NewLogHook(log.New(cmd.ErrOrStderr(), "", 0))
}

// buildFabric reads the declaration and builds a finalized descriptor.
func buildFabric(cmd *cobra.Command) (*fabric.Descriptor, error) {
	f, err := readDeclaration(cmd)
	if err != nil {
		return nil, err
	}

	b := decl.MakeBuilder().WithSpec(fabricSpec())
	if hook := logHook(cmd); hook != nil {
		b = b.WithHook(hook)
	}

	return b.Build(f)
}

func makeDriver(cmd *cobra.Command, d *fabric.Descriptor) driver.Driver {
	resolver := adapter.NewResolver(d.Spec())
	if hook := logHook(cmd); hook != nil {
		resolver.AcceptHook(hook)
	}

	return driver.MakeDriver(resolver)
}
