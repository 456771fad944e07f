// Package reference serves the static directory data shown next to search
// results: Seoul districts, a small library directory and curated children's
// book collections. None of it flows through a search.
package reference

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// AllBrands selects every collection
const AllBrands = "전체"

//go:embed reference.yaml
var raw []byte

// District is a Seoul district. Order is its 1-based position in the picker and
// follows the order of the embedded list.
type District struct {
	Code  string `yaml:"code" json:"code"`
	Name  string `yaml:"name" json:"name"`
	Order int    `yaml:"-" json:"order"`
}

type LibraryInfo struct {
	District string `yaml:"district" json:"district"`
	Name     string `yaml:"name" json:"name"`
	Address  string `yaml:"address" json:"address"`
}

type Collection struct {
	ID          string   `yaml:"id" json:"id"`
	Brand       string   `yaml:"brand" json:"brand"`
	Title       string   `yaml:"title" json:"title"`
	Category    string   `yaml:"category" json:"category"`
	AgeGroup    string   `yaml:"ageGroup" json:"ageGroup"`
	Description string   `yaml:"description" json:"description"`
	Books       []string `yaml:"books" json:"books"`
}

// Data is the full reference set
type Data struct {
	Districts   []District    `yaml:"districts"`
	Libraries   []LibraryInfo `yaml:"libraries"`
	Brands      []string      `yaml:"brands"`
	Collections []Collection  `yaml:"collections"`
}

var (
	loadOnce sync.Once
	data     Data
	loadErr  error
)

// Load parses the embedded reference data once
func Load() (*Data, error) {
	loadOnce.Do(func() {
		data, loadErr = Parse(raw)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return &data, nil
}

// Parse decodes reference data from YAML
func Parse(b []byte) (Data, error) {
	var d Data
	if err := yaml.Unmarshal(b, &d); err != nil {
		return Data{}, fmt.Errorf("parse reference data: %w", err)
	}
	if len(d.Districts) == 0 {
		return Data{}, fmt.Errorf("parse reference data: no districts")
	}
	for i := range d.Districts {
		d.Districts[i].Order = i + 1
	}
	return d, nil
}

// DistrictName returns the name for a district code
func (d *Data) DistrictName(code string) (string, bool) {
	for _, dist := range d.Districts {
		if dist.Code == code {
			return dist.Name, true
		}
	}
	return "", false
}

// IsDistrict reports whether code is a known Seoul district
func (d *Data) IsDistrict(code string) bool {
	_, ok := d.DistrictName(code)
	return ok
}

// LibrariesIn returns the libraries of a district given by code or name.
// An empty filter returns every library; an unknown one returns none.
func (d *Data) LibrariesIn(district string) []LibraryInfo {
	district = strings.TrimSpace(district)
	if district == "" {
		return d.Libraries
	}
	if name, ok := d.DistrictName(district); ok {
		district = name
	}

	out := []LibraryInfo{}
	for _, lib := range d.Libraries {
		if lib.District == district {
			out = append(out, lib)
		}
	}
	return out
}

// CollectionsFor returns the collections of a brand; empty or AllBrands returns all
func (d *Data) CollectionsFor(brand string) []Collection {
	brand = strings.TrimSpace(brand)
	if brand == "" || brand == AllBrands {
		return d.Collections
	}

	out := []Collection{}
	for _, c := range d.Collections {
		if c.Brand == brand {
			out = append(out, c)
		}
	}
	return out
}

// Collection looks up a collection by id
func (d *Data) Collection(id string) (Collection, bool) {
	for _, c := range d.Collections {
		if c.ID == id {
			return c, true
		}
	}
	return Collection{}, false
}
