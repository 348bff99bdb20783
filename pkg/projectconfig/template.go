package projectconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Section is one command block in a rendered project file.
type Section struct {
	Command string
	Values  map[string]any
}

const templateHeader = `pspace project config.
Each top-level key is a command; values are defaults for that command's options.
Command-line arguments override these; these override the last-run state.`

// Render produces a project file from sections, preserving section order.
func Render(sections []Section) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range sections {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.Command}
		val := &yaml.Node{}
		if err := val.Encode(s.Values); err != nil {
			return nil, fmt.Errorf("encode section %s: %w", s.Command, err)
		}
		root.Content = append(root.Content, key, val)
	}
	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: templateHeader,
		Content:     []*yaml.Node{root},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("render project config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteNew renders sections into workDir/FileName. It refuses to overwrite an
// existing file unless force is set.
func WriteNew(workDir string, sections []Section, force bool) (string, error) {
	path := filepath.Join(workDir, FileName)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	data, err := Render(sections)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
