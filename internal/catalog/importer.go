package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/catalogsearch/internal/corpus"
	"github.com/Aman-CERP/catalogsearch/internal/errors"
)

// seedFile is the YAML layout accepted by ImportYAML.
//
//	products:
//	  - id: 1
//	    name: Blue mug
//	    description: Ceramic, 350ml
//	    category: Mugs
//	    is_active: true
//	    stock: 12
type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	ID          int64  `yaml:"id"`
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Stock       int    `yaml:"stock"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"is_active"`
}

// ParseSeed decodes a YAML product list.
func ParseSeed(data []byte) ([]corpus.Product, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.ValidationError("parse product YAML", err)
	}

	out := make([]corpus.Product, 0, len(f.Products))
	for i, sp := range f.Products {
		p := corpus.Product{
			ID:          sp.ID,
			Slug:        sp.Slug,
			Name:        sp.Name,
			Description: sp.Description,
			Category:    sp.Category,
			IsActive:    sp.Active == nil || *sp.Active,
			Stock:       sp.Stock,
		}
		if strings.TrimSpace(p.Name) == "" {
			return nil, errors.ValidationError(fmt.Sprintf("product #%d has no name", i+1), nil)
		}
		out = append(out, p)
	}
	return out, nil
}

// ImportYAML upserts every product of the YAML file at path.
func (s *Store) ImportYAML(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.New(errors.ErrCodeFileNotFound, "read product file", err).WithDetail("path", path)
	}
	products, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	if err := s.Upsert(ctx, products...); err != nil {
		return 0, err
	}
	return len(products), nil
}

// Slugify derives a URL slug from a product name.
func Slugify(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
