package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"sruwatch/catalog"
	"sruwatch/entity"
	"sruwatch/layout"
	"sruwatch/rules"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the static unit and tech databases",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "units <query>",
		Short: "Search units by id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			return printUnits(cmd.OutOrStdout(), cat.Search(args[0]))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "tech <id>",
		Short: "Show a tech, its effects and the units it grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("tech id: %w", err)
			}
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			return printTech(cmd.OutOrStdout(), cat, id)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <unit-id>",
		Short: "Apply the configured research to a unit's baseline stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("unit id: %w", err)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Catalog)
			if err != nil {
				return err
			}
			set, err := cat.RuleSet(cfg.Research)
			if err != nil {
				return err
			}
			return printResolved(cmd.OutOrStdout(), cat, set, id)
		},
	})
	return cmd
}

func loadCatalog() (*catalog.Catalog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

func printUnits(out io.Writer, units []catalog.UnitStats) error {
	if len(units) == 0 {
		fmt.Fprintln(out, "No units found.")
		return nil
	}
	for _, u := range units {
		fmt.Fprintf(out, "%6d %-32s class %2d year %d tech %d/%d\n", u.ID, u.Name, u.Class, u.Year, u.TechReq1, u.TechReq2)
	}
	return nil
}

func printTech(out io.Writer, cat *catalog.Catalog, id int) error {
	raw, ok := cat.RawTech(id)
	if !ok {
		return fmt.Errorf("tech %d not found", id)
	}
	rule, _ := cat.Tech(id)
	fmt.Fprintf(out, "%d %s (level %d, category %d)\n", raw.ID, raw.Title, raw.Level, raw.Category)
	if len(rule.Prereqs) > 0 {
		fmt.Fprintf(out, "  prereqs: %v\n", rule.Prereqs)
	}
	for _, e := range rule.Effects {
		fmt.Fprintf(out, "  %s %s %g\n", e.Field, e.Op, e.Value)
	}
	if len(rule.Grants) > 0 {
		fmt.Fprintf(out, "  grants: %v\n", rule.Grants)
	}
	return nil
}

func printResolved(out io.Writer, cat *catalog.Catalog, set *rules.RuleSet, id int) error {
	u, ok := cat.Unit(id)
	if !ok {
		return fmt.Errorf("unit %d not found", id)
	}
	// entidade sintética só com identidade; o resto vem do baseline
	e := entity.New(layout.KindUnit, "catalog", 0, []entity.Field{
		{Name: entity.FieldUnitID, Value: entity.Value{Type: layout.Int32, Num: float64(u.ID)}},
		{Name: entity.FieldName, Value: entity.Value{Type: layout.String, Str: u.Name}},
		{Name: entity.FieldClass, Value: entity.Value{Type: layout.Bitfield, Num: float64(u.Class)}},
	})
	d := rules.Resolve(e, set, cat)
	fmt.Fprintf(out, "%d %s: %s", u.ID, u.Name, d.Unlock.Status)
	if len(d.Unlock.Missing) > 0 {
		fmt.Fprintf(out, " (missing %v)", d.Unlock.Missing)
	}
	fmt.Fprintln(out)
	if len(d.Applied) > 0 {
		fmt.Fprintf(out, "  applied techs: %v\n", d.Applied)
	}
	names := make([]string, 0, len(d.Effective))
	for name := range d.Effective {
		names = append(names, name)
	}
	sort.Strings(names)
	base, _ := cat.Baseline(id)
	for _, name := range names {
		fmt.Fprintf(out, "  %-16s %10.2f -> %10.2f\n", name, base[name], d.Effective[name])
	}
	return nil
}
