package generate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/parser"
)

// Markdown reads Q:/A:/C: cards from a .md file or every .md file below a
// directory.
type Markdown struct {
	Path string
	// Name overrides the deck name derived from Path.
	Name string
}

// DeckName implements Source.
func (m *Markdown) DeckName() string {
	if m.Name != "" {
		return m.Name
	}
	base := filepath.Base(filepath.Clean(m.Path))
	return "📝 " + strings.TrimSuffix(base, filepath.Ext(base))
}

// Generate implements Source. Files that fail to parse are reported in the
// returned error while the pairs of the other files are still returned.
func (m *Markdown) Generate(ctx context.Context) ([]domain.Pair, error) {
	var pairs []domain.Pair
	var parseErrors []error

	walkErr := filepath.WalkDir(m.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		entries, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			parseErrors = append(parseErrors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		for _, e := range entries {
			pairs = append(pairs, e.Pair())
		}
		return nil
	})

	if walkErr != nil {
		if errors.Is(walkErr, os.ErrNotExist) {
			return nil, generationError("markdown", fmt.Errorf("%s does not exist", m.Path))
		}
		parseErrors = append(parseErrors, walkErr)
	}
	if len(parseErrors) > 0 {
		return pairs, generationError("markdown", errors.Join(parseErrors...))
	}
	return pairs, nil
}
