package photo

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Categories []CreateCategoryRequest `yaml:"categories"`
}

// LoadCategorySeed reads a YAML list of categories:
//
//	categories:
//	  - slug: aligner-fit
//	    name: Aligner fit
//	    sort_order: 110
func LoadCategorySeed(path string) ([]CreateCategoryRequest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse category seed: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("category seed %s lists no categories", path)
	}
	return f.Categories, nil
}

// SeedResult counts what SeedCategories did.
type SeedResult struct {
	Created int
	Skipped int
}

// SeedCategories creates each category whose slug is not taken yet.
// Existing categories are left untouched.
func (s *Service) SeedCategories(ctx context.Context, reqs []CreateCategoryRequest) (SeedResult, error) {
	var res SeedResult
	for _, req := range reqs {
		_, err := s.CreateCategory(ctx, req)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, ErrDuplicateSlug):
			res.Skipped++
		default:
			return res, fmt.Errorf("seed category %q: %w", req.Slug, err)
		}
	}
	s.logger.Info().Int("created", res.Created).Int("skipped", res.Skipped).Msg("photo categories seeded")
	return res, nil
}
