// cmd/tools/catalog-tool/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	querycatalog "care-assistant/internal/workers/data-access/query-catalog"
	"care-assistant/pkg/registry"
)

var catalogPath string

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)
	bumpCmd := flag.NewFlagSet("bump", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{validateCmd, listCmd, showCmd, bumpCmd} {
		fs.StringVar(&catalogPath, "path", "configs/queries.yaml", "Path to catalog file")
	}
	tag := listCmd.String("tag", "", "Only list queries with this tag")
	name := showCmd.String("name", "", "Query name (e.g., get_customer_history)")
	asJSON := showCmd.Bool("json", false, "Print the descriptor as JSON")
	version := bumpCmd.String("version", "", "New catalog version (e.g., 2.4.0)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateCatalog(); err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listQueries(*tag); err != nil {
			fmt.Printf("Error listing queries: %v\n", err)
			os.Exit(1)
		}

	case "show":
		showCmd.Parse(os.Args[2:])
		if *name == "" {
			fmt.Println("Error: name is required for show.")
			showCmd.Usage()
			os.Exit(1)
		}
		if err := showQuery(*name, *asJSON); err != nil {
			fmt.Printf("Error showing query: %v\n", err)
			os.Exit(1)
		}

	case "bump":
		bumpCmd.Parse(os.Args[2:])
		if *version == "" {
			fmt.Println("Error: version is required for bump.")
			bumpCmd.Usage()
			os.Exit(1)
		}
		if err := bumpVersion(*version); err != nil {
			fmt.Printf("Error bumping version: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog version set to %s\n", *version)

	case "help":
		fallthrough
	default:
		help()
	}
}

// validateCatalog runs the load-time checks plus the seller scoping rule.
func validateCatalog() error {
	file, err := registry.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if len(file.Queries) == 0 {
		return fmt.Errorf("catalog contains no queries")
	}
	cat, err := querycatalog.FromRegistry(file)
	if err != nil {
		return err
	}

	var unscoped []string
	for _, name := range cat.Names() {
		d, _ := cat.Get(name)
		if !d.IsRequired("seller_id") || !strings.Contains(d.SQLTemplate, "@seller_id") {
			unscoped = append(unscoped, name)
		}
	}
	if len(unscoped) > 0 {
		return fmt.Errorf("queries not scoped to the seller: %s", strings.Join(unscoped, ", "))
	}

	fmt.Printf("Catalog validation passed. Version %s, %d queries.\n", cat.Version(), cat.Len())
	return nil
}

func listQueries(tag string) error {
	file, err := registry.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tREQUIRED\tTAGS\tDESCRIPTION")
	for _, q := range file.Queries {
		if tag != "" && !hasTag(q.Tags, tag) {
			continue
		}
		var required []string
		for p, spec := range q.Params {
			if spec.Required && p != "seller_id" {
				required = append(required, p)
			}
		}
		sort.Strings(required)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", q.Name, strings.Join(required, ","), strings.Join(q.Tags, ","), q.Description)
	}
	return w.Flush()
}

func showQuery(name string, asJSON bool) error {
	cat, err := querycatalog.Load(&querycatalog.Config{Path: catalogPath})
	if err != nil {
		return err
	}
	d, ok := cat.Get(name)
	if !ok {
		return fmt.Errorf("query %s not found", name)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	fmt.Printf("%s\n  %s\n\n", d.Name, d.Description)
	fmt.Println("Parameters:")
	for _, p := range querycatalog.Placeholders(d.SQLTemplate) {
		flags := "optional"
		if d.IsRequired(p) {
			flags = "required"
		}
		if d.IsNullable(p) {
			flags += ", nullable"
		}
		if def, ok := d.Defaults[p]; ok {
			flags += fmt.Sprintf(", default %v", def)
		}
		fmt.Printf("  @%-16s %-10s %s\n", p, d.TypeOf(p), flags)
	}
	if len(d.UseCases) > 0 {
		fmt.Println("\nUse cases:")
		for _, u := range d.UseCases {
			fmt.Printf("  - %s\n", u)
		}
	}
	fmt.Printf("\nSQL:\n%s\n", d.SQLTemplate)
	return nil
}

func bumpVersion(version string) error {
	file, err := registry.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if _, err := querycatalog.FromRegistry(file); err != nil {
		return fmt.Errorf("refusing to bump an invalid catalog: %w", err)
	}
	file.Version = version
	file.LastUpdated = time.Now().Format("2006-01-02")
	return registry.SaveCatalog(catalogPath, file)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func help() {
	fmt.Print(`
Usage: catalog-tool <command> [flags]

Commands:
  validate  Check the catalog file the way the server does at startup
  list      List queries with their required parameters
  show      Show one query with parameters and SQL
  bump      Set a new catalog version
  help      Show this help message

Examples:
  catalog-tool validate -path configs/queries.yaml
  catalog-tool list -tag customers
  catalog-tool show -name get_customer_history
  catalog-tool bump -version 2.4.0

Use 'catalog-tool <command> -h' for more information about a command.
` + "\n")
}
