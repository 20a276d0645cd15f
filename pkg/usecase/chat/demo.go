package chat

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoYAML []byte

// DemoModel is reported as the model of canned analyses
const DemoModel = "demo"

type DemoCompany struct {
	Key     string               `yaml:"key"`
	Company model.Company        `yaml:"company"`
	Profile model.CompanyProfile `yaml:"profile"`
}

type DemoAnalysis struct {
	Key        string                   `yaml:"key"`
	FilingDate string                   `yaml:"filing_date"`
	Analysis   model.StructuredAnalysis `yaml:"analysis"`
}

// DemoData is the illustrative directory used when no model is configured
type DemoData struct {
	Companies []DemoCompany  `yaml:"companies"`
	Analyses  []DemoAnalysis `yaml:"analyses"`
}

// LoadDemoData decodes the embedded demo fixtures
func LoadDemoData() (*DemoData, error) {
	var data DemoData
	if err := yaml.Unmarshal(demoYAML, &data); err != nil {
		return nil, goerr.Wrap(err, "failed to decode demo data")
	}
	return &data, nil
}

// demoKeyMatch reports whether a fixture key and an extracted name refer to
// each other, in either direction.
func demoKeyMatch(key, name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, key) || strings.Contains(key, name)
}

func (d *DemoData) company(name string) *DemoCompany {
	if name == "" {
		return nil
	}
	for i := range d.Companies {
		if demoKeyMatch(d.Companies[i].Key, name) {
			return &d.Companies[i]
		}
	}
	return nil
}

func (d *DemoData) analysis(name string) (*DemoCompany, *DemoAnalysis) {
	if name == "" {
		return nil, nil
	}
	for i := range d.Analyses {
		a := &d.Analyses[i]
		if !demoKeyMatch(a.Key, name) {
			continue
		}
		for j := range d.Companies {
			if d.Companies[j].Key == a.Key {
				return &d.Companies[j], a
			}
		}
	}
	return nil, nil
}

// companyList renders "Name (Ticker)" bullets for every demo company
func (d *DemoData) companyList() string {
	var b strings.Builder
	for _, c := range d.Companies {
		fmt.Fprintf(&b, "• %s (%s)\n", c.Company.Name, c.Company.Ticker)
	}
	return b.String()
}

func (d *DemoData) analysisNames() []string {
	var names []string
	for _, a := range d.Analyses {
		for _, c := range d.Companies {
			if c.Key == a.Key {
				names = append(names, c.Company.Name)
			}
		}
	}
	return names
}
