// Package catalog holds the fixed vocabularies of the event: the menu item,
// removable ingredients, payment methods, cell groups and pickup location.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type MenuItem struct {
	Name string `yaml:"name" json:"name"`
}

type PaymentMethod struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

type Location struct {
	Name      string  `yaml:"name" json:"name"`
	Address   string  `yaml:"address" json:"address"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

type Catalog struct {
	Item           MenuItem        `yaml:"item" json:"item"`
	Ingredients    []string        `yaml:"ingredients" json:"ingredients"`
	PaymentMethods []PaymentMethod `yaml:"payment_methods" json:"payment_methods"`
	CellGroups     []string        `yaml:"cell_groups" json:"cell_groups"`
	PickupLocation Location        `yaml:"pickup_location" json:"pickup_location"`

	ingredients map[string]string
	cellGroups  map[string]string
	payments    map[string]PaymentMethod
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog file, falling back to the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if c.Item.Name == "" {
		return nil, fmt.Errorf("parse catalog: item name is required")
	}
	if len(c.PaymentMethods) == 0 {
		return nil, fmt.Errorf("parse catalog: at least one payment method is required")
	}
	c.ingredients = indexNames(c.Ingredients)
	c.cellGroups = indexNames(c.CellGroups)
	c.payments = make(map[string]PaymentMethod, len(c.PaymentMethods))
	for _, pm := range c.PaymentMethods {
		c.payments[pm.Value] = pm
	}
	return &c, nil
}

func (c *Catalog) PaymentMethod(value string) (PaymentMethod, bool) {
	pm, ok := c.payments[value]
	return pm, ok
}

// Ingredient resolves a loosely typed ingredient name ("molho-4-queijos",
// "Molho 4 queijos") to its canonical spelling.
func (c *Catalog) Ingredient(name string) (string, bool) {
	canonical, ok := c.ingredients[slug.Make(name)]
	return canonical, ok
}

func (c *Catalog) CellGroup(name string) (string, bool) {
	canonical, ok := c.cellGroups[slug.Make(name)]
	return canonical, ok
}

func indexNames(names []string) map[string]string {
	index := make(map[string]string, len(names))
	for _, name := range names {
		index[slug.Make(name)] = name
	}
	return index
}
