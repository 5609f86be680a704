package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sophialabs/lsvstats/internal/domain/rule"
	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
)

// ErrUnsupportedFormat is returned for a rules format that is neither the
// line format nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported rules format")

// Rules file formats.
const (
	FormatAuto  = ""
	FormatLines = "conf"
	FormatYAML  = "yaml"
)

var _ rule.Repository = (*RuleRepository)(nil)

var (
	ruleLine    = regexp.MustCompile(`^\s*([[:alnum:]_-]+)\s+:\s+(\S+)`)
	commentLine = regexp.MustCompile(`^\s*[#;]`)
)

// RuleRepository reads rule definitions from a single file.
type RuleRepository struct {
	path     string
	format   string
	logger   ports.Logger
	resolver *IncludeResolver
}

// NewRuleRepository creates a repository for path. An empty format picks YAML
// for .yaml and .yml files and the line format otherwise.
func NewRuleRepository(path, format string, logger ports.Logger) (*RuleRepository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rules path: %w", err)
	}

	switch format {
	case FormatAuto:
		format = FormatLines
		if isYAMLFile(abs) {
			format = FormatYAML
		}
	case FormatLines, FormatYAML:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return &RuleRepository{
		path:     abs,
		format:   format,
		logger:   logger,
		resolver: NewIncludeResolver(filepath.Dir(abs)),
	}, nil
}

// Path returns the absolute path of the rules file.
func (r *RuleRepository) Path() string {
	return r.path
}

// Load reads and parses the rules file. The line format always uses the
// built-in class table.
func (r *RuleRepository) Load(_ context.Context) (*rule.Set, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	if r.format == FormatYAML {
		return r.parseYAML(data)
	}
	return &rule.Set{
		Classes: rule.DefaultClasses(),
		Rules:   r.parseLines(data),
	}, nil
}

// parseLines reads "name : pattern" lines. Comments start with '#' or ';'.
// Anything else that is not blank is reported and skipped.
func (r *RuleRepository) parseLines(data []byte) []rule.Definition {
	var defs []rule.Definition

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || commentLine.MatchString(line) {
			continue
		}

		m := ruleLine.FindStringSubmatch(line)
		if m == nil {
			r.logger.Warn("skipping malformed rule line", "file", r.path, "line", lineNo)
			continue
		}
		defs = append(defs, rule.Definition{
			Name:    m[1],
			Class:   rule.ClassFromName(m[1]),
			Pattern: m[2],
			Source:  fmt.Sprintf("%s:%d", r.path, lineNo),
		})
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("stopped reading rules file", "file", r.path, "line", lineNo, "error", err)
	}
	return defs
}

func (r *RuleRepository) parseYAML(data []byte) (*rule.Set, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := r.resolver.Resolve(&doc, r.path); err != nil {
		return nil, fmt.Errorf("failed to resolve includes: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return &rule.Set{Classes: rule.DefaultClasses()}, nil
	}

	// Accept either a bare list of rules or a mapping with rules and classes.
	content := doc.Content[0]
	var ruleNodes []*yaml.Node
	set := &rule.Set{}

	switch content.Kind {
	case yaml.SequenceNode:
		ruleNodes = content.Content
	case yaml.MappingNode:
		var file yamlRuleFile
		if err := content.Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to decode rules file: %w", err)
		}
		for _, c := range file.Classes {
			set.Classes = append(set.Classes, rule.ClassDefinition(c))
		}
		switch file.Rules.Kind {
		case 0:
		case yaml.SequenceNode:
			ruleNodes = file.Rules.Content
		default:
			return nil, fmt.Errorf("line %d: rules must be a list", file.Rules.Line)
		}
	default:
		return nil, fmt.Errorf("line %d: unexpected YAML structure", content.Line)
	}

	if len(set.Classes) == 0 {
		set.Classes = rule.DefaultClasses()
	}

	for _, n := range ruleNodes {
		var yr yamlRule
		if err := n.Decode(&yr); err != nil {
			r.logger.Warn("skipping malformed rule", "file", r.path, "line", n.Line, "error", err)
			continue
		}
		set.Rules = append(set.Rules, toDefinition(yr, fmt.Sprintf("%s:%d", r.path, n.Line)))
	}
	return set, nil
}

func toDefinition(yr yamlRule, source string) rule.Definition {
	class := yr.Class
	if class == "" {
		class = rule.ClassFromName(yr.Name)
	}
	return rule.Definition{
		Name:          yr.Name,
		Class:         class,
		Pattern:       yr.Pattern,
		Exclude:       yr.Exclude,
		CaseSensitive: yr.CaseSensitive,
		Source:        source,
	}
}
