package contact

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one line of the contact directory as operators write it. Phones
// are free text: "03-822-7171 #423", "地價稅 #182-187", ...
type Entry struct {
	Label   string   `yaml:"label" json:"label"`
	Phones  []string `yaml:"phones" json:"-"`
	Note    string   `yaml:"note,omitempty" json:"note,omitempty"`
	Address string   `yaml:"address,omitempty" json:"address,omitempty"`
	Hours   string   `yaml:"hours,omitempty" json:"hours,omitempty"`
}

type Category struct {
	Title   string  `yaml:"title" json:"title"`
	Entries []Entry `yaml:"entries" json:"-"`
}

// Phone is a directory phone string with everything a client needs to show
// and dial it.
type Phone struct {
	Raw     string   `json:"raw"`
	Numbers []string `json:"numbers"`
	Display []string `json:"display"`
	Tel     string   `json:"tel,omitempty"`
}

type RenderedEntry struct {
	Entry
	Phones []Phone `json:"phones"`
}

type RenderedCategory struct {
	Title   string          `json:"title"`
	Entries []RenderedEntry `json:"entries"`
}

// Directory is the static contact directory.
type Directory struct {
	Categories []Category `yaml:"categories"`
}

// LoadDirectory reads a YAML directory file. A missing path yields an empty
// directory.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		return &Directory{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open contact directory: %w", err)
	}
	defer f.Close()

	var d Directory
	if err := yaml.NewDecoder(f).Decode(&d); err != nil {
		return nil, fmt.Errorf("parse contact directory %s: %w", path, err)
	}
	return &d, nil
}

// RenderPhone parses one raw phone string. Short service numbers such as
// "1925" are below the parser's minimum length; they keep their raw text and
// still get a tel: link.
func RenderPhone(raw string) Phone {
	p := Phone{Raw: raw, Numbers: ParseNumbers(raw)}
	p.Display = make([]string, 0, len(p.Numbers))
	for _, n := range p.Numbers {
		p.Display = append(p.Display, FormatDisplay(n))
	}
	if len(p.Numbers) > 0 || isServiceNumber(raw) {
		p.Tel = DialURI(raw)
	}
	return p
}

func isServiceNumber(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw != "" && isASCIIDigit(rune(raw[0])) && digitCount(raw) < minDigits
}

// Render parses every phone in the directory.
func (d *Directory) Render() []RenderedCategory {
	out := make([]RenderedCategory, 0, len(d.Categories))
	for _, c := range d.Categories {
		rc := RenderedCategory{Title: c.Title, Entries: make([]RenderedEntry, 0, len(c.Entries))}
		for _, e := range c.Entries {
			re := RenderedEntry{Entry: e, Phones: make([]Phone, 0, len(e.Phones))}
			for _, raw := range e.Phones {
				re.Phones = append(re.Phones, RenderPhone(raw))
			}
			rc.Entries = append(rc.Entries, re)
		}
		out = append(out, rc)
	}
	return out
}
