package config

import (
	_ "embed"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}
