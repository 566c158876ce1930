package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sruwatch/config"
	"sruwatch/decoder"
	"sruwatch/layout"
	"sruwatch/memory"
	"sruwatch/session"
)

func dumpCmd() *cobra.Command {
	var (
		slot    string
		raw     bool
		version string
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Read one slot once and print its bytes and decoded fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if version != "" {
				cfg.Layout = version
			}
			return runDump(cmd.OutOrStdout(), cfg, strings.ToUpper(slot), raw)
		},
	}
	cmd.Flags().StringVar(&slot, "slot", "A", "Slot to dump: A, B, E or M")
	cmd.Flags().BoolVar(&raw, "raw", false, "Also print a hex dump")
	cmd.Flags().StringVar(&version, "layout", "", "Layout version (defaults to config)")
	return cmd
}

func slotRegion(cfg config.Config, slot string) (config.Region, layout.Kind, error) {
	switch slot {
	case "A":
		return cfg.Slots.A, layout.KindUnit, nil
	case "B":
		return cfg.Slots.B, layout.KindUnit, nil
	case "E":
		return cfg.Economy, layout.KindEconomy, nil
	case "M":
		return cfg.Market, layout.KindMarket, nil
	}
	return config.Region{}, "", fmt.Errorf("unknown slot %q", slot)
}

func runDump(out io.Writer, cfg config.Config, slot string, raw bool) error {
	src, kind, err := slotRegion(cfg, slot)
	if err != nil {
		return err
	}
	if !src.Enabled() {
		return fmt.Errorf("slot %s is disabled", slot)
	}
	registry := layout.Builtin()
	for _, path := range cfg.LayoutFiles {
		descs, err := layout.LoadFile(path)
		if err != nil {
			return err
		}
		if registry, err = registry.With(descs...); err != nil {
			return err
		}
	}
	desc, err := registry.Resolve(kind, cfg.Layout)
	if err != nil {
		return err
	}

	target, err := session.Attach(cfg)
	if err != nil {
		return err
	}
	defer target.Reader.Close()
	fmt.Fprintf(out, "[OK] pid %d, %s base 0x%X\n", target.PID, cfg.ModuleName(), target.Base)

	region, err := session.ResolveRegion(target.Reader, target.Base, slot, src)
	if err != nil {
		return err
	}
	return dumpRegion(out, target.Reader, region, desc, raw)
}

func dumpRegion(out io.Writer, r *memory.Reader, region memory.Region, desc layout.Descriptor, raw bool) error {
	snap, err := r.Capture(region, 1)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%s %s)\n", region, desc.Kind, desc.Version)
	if raw {
		fmt.Fprint(out, hex.Dump(snap.Bytes))
	}
	e, err := decoder.Decode(snap, desc)
	if err != nil {
		return err
	}
	for _, f := range e.Fields() {
		fd, _ := desc.Field(f.Name)
		fmt.Fprintf(out, "  +0x%04X %-32s %s\n", fd.Offset, f.Name, f.Value)
	}
	return nil
}
