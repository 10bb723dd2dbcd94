// Package generate holds the adapters that turn an external content source
// into front/back pairs. Adapters never touch the Store; they only return
// pairs, and may return some pairs together with an error.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// Source produces card candidates for one new deck.
type Source interface {
	// DeckName is the name of the deck the pairs are imported into.
	DeckName() string
	Generate(ctx context.Context) ([]domain.Pair, error)
}

func generationError(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrGeneration, source, err)
}

// within fails unless path is base or lies below it.
func within(base, path string) error {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s is outside %s", path, base)
	}
	return nil
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
