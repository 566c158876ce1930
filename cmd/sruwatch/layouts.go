package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sruwatch/layout"
)

func layoutsCmd() *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "layouts",
		Short: "List registered layout versions, optionally validating extra files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayouts(cmd.OutOrStdout(), files)
		},
	}
	cmd.Flags().StringSliceVar(&files, "file", nil, "Layout YAML file to load on top of the builtins")
	return cmd
}

func runLayouts(out io.Writer, files []string) error {
	registry := layout.Builtin()
	for _, path := range files {
		descs, err := layout.LoadFile(path)
		if err != nil {
			return err
		}
		if registry, err = registry.With(descs...); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(out, "loaded %d descriptors from %s\n", len(descs), path)
	}
	for _, kind := range []layout.Kind{layout.KindUnit, layout.KindEconomy, layout.KindMarket} {
		for _, v := range registry.Versions(kind) {
			d, err := registry.Resolve(kind, v)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-8s %-10s size 0x%04X fields %d\n", kind, v, d.Size, len(d.Fields))
		}
	}
	return nil
}
