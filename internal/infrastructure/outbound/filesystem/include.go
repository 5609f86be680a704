package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 8

// IncludeResolver replaces !include tagged YAML nodes with the referenced
// file. YAML files are spliced in as nodes; other files become a scalar
// holding their trimmed content, which suits long patterns kept apart.
type IncludeResolver struct {
	baseDir string
}

// NewIncludeResolver creates a resolver that refuses files outside baseDir.
func NewIncludeResolver(baseDir string) *IncludeResolver {
	return &IncludeResolver{baseDir: baseDir}
}

// Resolve expands the includes of node, a document read from file.
func (r *IncludeResolver) Resolve(node *yaml.Node, file string) error {
	return r.walk(node, filepath.Dir(file), []string{file})
}

func (r *IncludeResolver) walk(node *yaml.Node, dir string, chain []string) error {
	if node == nil {
		return nil
	}
	if node.Tag == "!include" {
		return r.include(node, dir, chain)
	}
	for _, child := range node.Content {
		if err := r.walk(child, dir, chain); err != nil {
			return err
		}
	}
	return nil
}

func (r *IncludeResolver) include(node *yaml.Node, dir string, chain []string) error {
	if len(chain) > maxIncludeDepth {
		return fmt.Errorf("line %d: !include nesting exceeds %d", node.Line, maxIncludeDepth)
	}
	ref := strings.TrimSpace(node.Value)
	if ref == "" {
		return fmt.Errorf("line %d: !include has no path", node.Line)
	}
	if filepath.IsAbs(ref) {
		return fmt.Errorf("line %d: !include %q: absolute paths are not allowed", node.Line, ref)
	}

	target := filepath.Join(dir, ref)
	if err := r.within(target); err != nil {
		return fmt.Errorf("line %d: !include %q: %w", node.Line, ref, err)
	}
	if slices.Contains(chain, target) {
		return fmt.Errorf("line %d: !include %q: include cycle", node.Line, ref)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("line %d: failed to read included file: %w", node.Line, err)
	}

	if !isYAMLFile(target) {
		*node = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: strings.TrimSpace(string(data)), Line: node.Line}
		return nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse included YAML %s: %w", target, err)
	}
	if err := r.walk(&doc, filepath.Dir(target), append(chain, target)); err != nil {
		return err
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		*node = *doc.Content[0]
	}
	return nil
}

// within rejects paths that resolve, through symlinks, outside baseDir.
func (r *IncludeResolver) within(path string) error {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	base, err := filepath.EvalSymlinks(r.baseDir)
	if err != nil {
		base = r.baseDir
	}
	rel, err := filepath.Rel(base, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes %s", r.baseDir)
	}
	return nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
