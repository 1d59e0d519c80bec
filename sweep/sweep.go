package sweep

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/weiihann/pirbench/table"
)

// Group is a named run of configurations, usually varying one field.
type Group struct {
	Name string    `yaml:"name"`
	Rows [][]int64 `yaml:"rows"`
}

// Sweep is the ordered list of configurations for one variant.
type Sweep struct {
	Variant string  `yaml:"variant"`
	Engine  string  `yaml:"engine,omitempty"`
	Groups  []Group `yaml:"groups"`
}

// Rows flattens the groups into parameter rows in declaration order.
func (s *Sweep) Rows() [][]string {
	var out [][]string

	for _, g := range s.Groups {
		for _, r := range g.Rows {
			row := make([]string, len(r))
			for i, v := range r {
				row[i] = strconv.FormatInt(v, 10)
			}

			out = append(out, row)
		}
	}

	return out
}

// Validate checks every row against the variant's parameter schema.
func (s *Sweep) Validate(schema table.Schema) error {
	for _, g := range s.Groups {
		for i, r := range g.Rows {
			if len(r) != len(schema) {
				return fmt.Errorf(
					"%w: group %q row %d has %d fields, want %d",
					table.ErrSchemaMismatch, g.Name, i, len(r), len(schema),
				)
			}
		}
	}

	return nil
}

// Load reads a YAML sweep file and validates it against its variant.
func Load(path string) (*Sweep, Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Variant{}, fmt.Errorf("read sweep %s: %w", path, err)
	}

	var s Sweep
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, Variant{}, fmt.Errorf("parse sweep %s: %w", path, err)
	}

	v, err := Lookup(s.Variant)
	if err != nil {
		return nil, Variant{}, fmt.Errorf("sweep %s: %w", path, err)
	}

	if err := s.Validate(v.Params); err != nil {
		return nil, Variant{}, fmt.Errorf("sweep %s: %w", path, err)
	}

	return &s, v, nil
}

// Default returns the built-in sweep for the named variant.
func Default(variant string) (*Sweep, error) {
	switch variant {
	case "batch-query":
		return &Sweep{
			Variant: variant,
			Groups: []Group{
				{
					Name: "dim_of_items_number",
					Rows: [][]int64{
						{10, 512, 500, 80, 4096},
						{12, 512, 500, 80, 4096},
						{14, 512, 500, 80, 4096},
						{16, 512, 500, 80, 4096},
						{18, 512, 500, 80, 4096},
					},
				},
				{
					Name: "size_per_item",
					Rows: [][]int64{
						{14, 128, 1000, 70, 4096},
						{14, 256, 1000, 70, 4096},
						{14, 512, 1000, 70, 4096},
						{14, 1024, 1000, 70, 4096},
						{14, 2048, 1000, 70, 4096},
					},
				},
				{
					Name: "batch_num",
					Rows: [][]int64{
						{13, 1024, 2000, 75, 4096},
						{13, 1024, 4000, 75, 4096},
						{13, 1024, 6000, 75, 4096},
						{13, 1024, 8000, 75, 4096},
						{13, 1024, 10000, 75, 4096},
					},
				},
				{
					Name: "constant_index_rate",
					Rows: [][]int64{
						{16, 512, 1000, 25, 4096},
						{16, 512, 1000, 45, 4096},
						{16, 512, 1000, 65, 4096},
						{16, 512, 1000, 85, 4096},
						{16, 512, 1000, 100, 4096},
					},
				},
			},
		}, nil

	case "mpc":
		return &Sweep{
			Variant: variant,
			Groups: []Group{
				{
					Name: "slot_count 4096",
					Rows: [][]int64{
						{10, 512, 4096},
						{11, 512, 4096},
						{12, 512, 4096},
						{13, 512, 4096},
						{14, 512, 4096},
						{10, 1024, 4096},
						{11, 1024, 4096},
						{12, 1024, 4096},
						{13, 1024, 4096},
						{14, 1024, 4096},
					},
				},
				{
					Name: "slot_count 8192",
					Rows: [][]int64{
						{15, 512, 8192},
						{16, 512, 8192},
						{15, 1024, 8192},
						{16, 1024, 8192},
					},
				},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
}
