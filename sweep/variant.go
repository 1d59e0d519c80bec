// Package sweep defines the engine variants pirbench knows how to drive and
// the parameter grids swept through them.
package sweep

import (
	"fmt"
	"slices"

	"github.com/weiihann/pirbench/table"
)

// Variant describes one engine binary and the schemas of its parameter and
// result stores.
type Variant struct {
	Name         string
	Target       string
	Params       table.Schema
	Results      table.Schema
	ParamFile    string
	ResultFile   string
	CombinedFile string
}

var variants = []Variant{
	{
		Name:   "batch-query",
		Target: "batch_query_test",
		Params: table.Schema{
			"dim_of_items_number", "size_per_item", "batch_num",
			"constant_index_rate", "slot_count",
		},
		Results: table.Schema{
			"pre_process_time(/ms)", "query_gen_time(/ms)",
			"query_seri_time(/ms)", "query_deseri_time(/us)",
			"reply_gen_time(/ms)", "answer_dec_time(/ms)",
			"query_size(/kb)", "compressed_query_num", "reply_size(/kb)",
		},
		ParamFile:    "batch_test_para.csv",
		ResultFile:   "batch_test_res.csv",
		CombinedFile: "batch_test.csv",
	},
	{
		Name:   "mpc",
		Target: "multi_party_comput_test",
		Params: table.Schema{
			"dim_of_items_number", "size_per_item", "slot_count",
		},
		Results: table.Schema{
			"pre_process_time(/ms)", "query_gen_time(/us)",
			"query_seri_time(/us)", "query_deseri_time(/us)",
			"reply_gen_time(/ms)", "answer_dec_time(/us)",
			"query_size(/kb)", "reply_ciphertexts_num", "reply_size(/kb)",
		},
		ParamFile:    "mpc_test_para.csv",
		ResultFile:   "mpc_test_res.csv",
		CombinedFile: "mpc_test.csv",
	},
}

// Variants returns the built-in variants.
func Variants() []Variant {
	return slices.Clone(variants)
}

// Lookup returns the built-in variant with the given name.
func Lookup(name string) (Variant, error) {
	for _, v := range variants {
		if v.Name == name {
			return v, nil
		}
	}

	return Variant{}, fmt.Errorf("unknown variant %q", name)
}
