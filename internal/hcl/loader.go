package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/sweptgrid/internal/config"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file under paths, merges their blocks and
// translates the result into the format-agnostic model. A run may be split
// across files, but singleton blocks such as `solver` must appear once in
// total.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	const op = "load"
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, nil, runerr.Wrap(runerr.Configuration, op, err)
	}
	if len(hclFiles) == 0 {
		return nil, nil, runerr.New(runerr.Configuration, op, "no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	var merged fileRoot
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, runerr.Wrap(runerr.Configuration, op, fmt.Errorf("failed to parse HCL file %s: %w", file, diags))
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, nil, runerr.Wrap(runerr.Configuration, op, fmt.Errorf("failed to decode HCL file %s: %w", file, diags))
		}
		merged.Solvers = append(merged.Solvers, root.Solvers...)
		merged.Domains = append(merged.Domains, root.Domains...)
		merged.Equations = append(merged.Equations, root.Equations...)
		merged.Initials = append(merged.Initials, root.Initials...)
		merged.Nodes = append(merged.Nodes, root.Nodes...)
		merged.Clusters = append(merged.Clusters, root.Clusters...)
		merged.Outputs = append(merged.Outputs, root.Outputs...)
	}

	conv := NewConverter()
	model, err := translate(ctx, conv, &merged)
	if err != nil {
		return nil, nil, runerr.Wrap(runerr.Configuration, op, err)
	}
	logger.Debug("HCL loading complete.",
		"mode", model.Solver.Mode,
		"equation", model.Equation.Name,
		"initial", model.Initial.Name,
		"nodes", len(model.Nodes),
	)
	return model, conv, nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl
// files found. Missing paths are skipped.
func findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return allFiles, nil
}
