package engine

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"
)

//go:embed templates/transaction-analysis/*.yaml
var embeddedTransactionTemplates embed.FS

const transactionTemplatesDir = "templates/transaction-analysis"

// LoadEmbeddedTransactionTemplates parses the catalogue shipped inside
// the binary. It is the default catalogue source; an operator-supplied
// directory can be loaded instead via LoadTransactionTemplatesFromDir
// for sites that want to customize rules without a rebuild.
func LoadEmbeddedTransactionTemplates() ([]Template, error) {
	entries, err := fs.ReadDir(embeddedTransactionTemplates, transactionTemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("engine: reading embedded template directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	templates := make([]Template, 0, len(names))
	for _, name := range names {
		data, err := embeddedTransactionTemplates.ReadFile(transactionTemplatesDir + "/" + name)
		if err != nil {
			return nil, fmt.Errorf("engine: reading embedded template %s: %w", name, err)
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("engine: parsing embedded template %s: %w", name, err)
		}
		if err := validateTransactionTemplate(t); err != nil {
			return nil, fmt.Errorf("engine: invalid embedded template %s: %w", name, err)
		}
		templates = append(templates, t)
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("engine: embedded transaction-analysis catalogue is empty")
	}

	return templates, nil
}

// LoadTransactionTemplatesFromDir reads an operator-supplied catalogue
// directory instead of the embedded default, for sites that want to
// tune or extend the rule set without a rebuild.
func LoadTransactionTemplatesFromDir(dir string) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("engine: reading template directory %s: %w", dir, err)
	}

	var templates []Template
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("engine: reading template %s: %w", e.Name(), err)
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("engine: parsing template %s: %w", e.Name(), err)
		}
		if err := validateTransactionTemplate(t); err != nil {
			return nil, fmt.Errorf("engine: invalid template %s: %w", e.Name(), err)
		}
		templates = append(templates, t)
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("engine: no transaction templates found in %s", dir)
	}

	return templates, nil
}

func validateTransactionTemplate(t Template) error {
	if t.ID == "" {
		return fmt.Errorf("template missing id")
	}
	if t.TemplateType != "" && t.TemplateType != TemplateTypeTransactionAnalysis {
		return fmt.Errorf("template %s: wrong template type %q", t.ID, t.TemplateType)
	}
	if len(t.Conditions) == 0 && len(t.ConditionGroups) == 0 && t.Builtin == nil {
		return fmt.Errorf("template %s: must declare conditions, condition-groups, or builtin", t.ID)
	}
	return nil
}
