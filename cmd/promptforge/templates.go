package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"promptforge/internal/instruction"
	"promptforge/internal/store"
)

// templatesCmd groups template library maintenance commands
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect and maintain the template library",
}

// templatesListCmd lists every template ID in the configured source
var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all template IDs",
	RunE:  runTemplatesList,
}

// templatesValidateCmd parses every template file and reports errors
var templatesValidateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate every template file in a directory",
	Long: `Parses each .xml template under the directory and reports files that
fail to parse. Exits non-zero when any file is invalid.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTemplatesValidate,
}

// templatesImportCmd loads a directory of templates into a SQLite library
var templatesImportCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Import template files into the SQLite library",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesImport,
}

func init() {
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesValidateCmd)
	templatesCmd.AddCommand(templatesImportCmd)
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	if cfg.TemplateDB != "" {
		st, err := store.OpenSQLite(cfg.TemplateDB, cfg.CacheSize)
		if err != nil {
			return fmt.Errorf("failed to open template database: %w", err)
		}
		defer st.Close()
		ids, err := st.IDs()
		if err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	st := store.NewMemoryStore()
	defer st.Close()
	if _, err := st.LoadDirectory(cfg.TemplateDir); err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	for _, id := range st.IDs() {
		fmt.Println(id)
	}
	return nil
}

func runTemplatesValidate(cmd *cobra.Command, args []string) error {
	dir := cfg.TemplateDir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no template directory configured")
	}

	var checked, failed int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".xml") {
			return nil
		}
		checked++
		data, err := os.ReadFile(path)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, err)
			return nil
		}
		if _, err := instruction.UnmarshalTemplate(data); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, err)
			return nil
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	fmt.Printf("checked %d templates, %d invalid\n", checked, failed)
	if failed > 0 {
		return fmt.Errorf("%d invalid templates", failed)
	}
	return nil
}

func runTemplatesImport(cmd *cobra.Command, args []string) error {
	if cfg.TemplateDB == "" {
		return fmt.Errorf("no template database configured")
	}

	mem := store.NewMemoryStore()
	defer mem.Close()
	n, err := mem.LoadDirectory(args[0])
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	st, err := store.OpenSQLite(cfg.TemplateDB, cfg.CacheSize)
	if err != nil {
		return fmt.Errorf("failed to open template database: %w", err)
	}
	defer st.Close()

	for _, id := range mem.IDs() {
		tmpl, ok := mem.Lookup(id)
		if !ok {
			continue
		}
		if err := st.Put(tmpl); err != nil {
			return fmt.Errorf("failed to store template %s: %w", id, err)
		}
	}

	fmt.Printf("imported %d templates into %s\n", n, cfg.TemplateDB)
	return nil
}
