// Package seed loads YAML inputs: the base-code manifest that initializes a
// store, and amendment act files delivered to the inbox.
package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/consolex/pkg/amend"
	"github.com/coolbeans/consolex/pkg/types"
)

// Manifest is the YAML shape of a base-code seed file.
type Manifest struct {
	Code struct {
		ID           string `yaml:"id"`
		Title        string `yaml:"title"`
		Jurisdiction string `yaml:"jurisdiction"`
		Adopted      string `yaml:"adopted"`
	} `yaml:"code"`

	// Articles maps article number to initial text.
	Articles map[string]string `yaml:"articles"`
}

// LoadManifest reads and validates a base-code manifest.
func LoadManifest(path string) (types.LegalCode, map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.LegalCode{}, nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return types.LegalCode{}, nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Code.ID == "" {
		return types.LegalCode{}, nil, fmt.Errorf("manifest: code id is required")
	}
	if len(m.Articles) == 0 {
		return types.LegalCode{}, nil, fmt.Errorf("manifest: at least one article is required")
	}
	adopted, err := types.ParseDate(m.Code.Adopted)
	if err != nil {
		return types.LegalCode{}, nil, fmt.Errorf("manifest: adopted date: %w", err)
	}

	code := types.LegalCode{
		ID:           m.Code.ID,
		Title:        m.Code.Title,
		Jurisdiction: m.Code.Jurisdiction,
		Adopted:      adopted,
	}
	return code, m.Articles, nil
}

// ActFile is the YAML shape of one delivered amendment act.
type ActFile struct {
	ID        string `yaml:"id"`
	Published string `yaml:"published"`
	Effective string `yaml:"effective"`
	Sequence  int    `yaml:"sequence"`

	// Text is the raw act text handed to the parser.
	Text string `yaml:"text"`
}

// LoadAct reads one act file into parser inputs.
func LoadAct(path string) (amend.ActMeta, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return amend.ActMeta{}, "", fmt.Errorf("read act file: %w", err)
	}

	var f ActFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return amend.ActMeta{}, "", fmt.Errorf("parse act file: %w", err)
	}
	if f.ID == "" {
		return amend.ActMeta{}, "", fmt.Errorf("act file %s: id is required", path)
	}
	if f.Text == "" {
		return amend.ActMeta{}, "", fmt.Errorf("act file %s: text is required", path)
	}
	effective, err := types.ParseDate(f.Effective)
	if err != nil {
		return amend.ActMeta{}, "", fmt.Errorf("act file %s: effective date: %w", path, err)
	}

	meta := amend.ActMeta{ID: f.ID, Effective: effective, Sequence: f.Sequence}
	if f.Published != "" {
		if meta.Published, err = types.ParseDate(f.Published); err != nil {
			return amend.ActMeta{}, "", fmt.Errorf("act file %s: published date: %w", path, err)
		}
	}
	return meta, f.Text, nil
}
