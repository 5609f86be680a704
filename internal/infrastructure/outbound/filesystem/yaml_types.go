package filesystem

import "gopkg.in/yaml.v3"

// yamlRuleFile is the YAML deserialization target for rules files.
type yamlRuleFile struct {
	Classes []yamlClass `yaml:"classes,omitempty"`
	// Rules stays a node so each entry keeps its line for diagnostics.
	Rules yaml.Node `yaml:"rules"`
}

type yamlClass struct {
	Name   string `yaml:"name"`
	Policy string `yaml:"policy"`
	Field  string `yaml:"field,omitempty"`
	When   string `yaml:"when,omitempty"`
}

type yamlRule struct {
	Name          string `yaml:"name"`
	Class         string `yaml:"class,omitempty"`
	Pattern       string `yaml:"pattern"`
	Exclude       string `yaml:"exclude,omitempty"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty"`
}
