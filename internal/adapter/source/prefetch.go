package source

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Getter is the subset of Loader used by FetchAll.
type Getter interface {
	Load(ctx context.Context, location string) ([]byte, error)
}

// FetchAll loads every named dataset concurrently and returns only after all
// of them completed. Any failure cancels the rest and is returned.
func FetchAll(ctx context.Context, g Getter, locations map[string]string) (map[string][]byte, error) {
	var mu sync.Mutex
	out := make(map[string][]byte, len(locations))

	eg, egCtx := errgroup.WithContext(ctx)
	for name, location := range locations {
		eg.Go(func() error {
			data, err := g.Load(egCtx, location)
			if err != nil {
				return fmt.Errorf("load %s dataset: %w", name, err)
			}
			mu.Lock()
			out[name] = data
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
