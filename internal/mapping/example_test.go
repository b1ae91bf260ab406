package mapping_test

import (
	"context"
	"fmt"

	"github.com/gauravpcu/vendor-statements-sub000/internal/fields"
	"github.com/gauravpcu/vendor-statements-sub000/internal/mapping"
	"github.com/gauravpcu/vendor-statements-sub000/internal/overlay"
)

func ExampleMapper_MapHeaders() {
	registry, err := fields.Default()
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	store := overlay.NewMemoryStore()
	_ = store.SavePreference(ctx, "acme", "Ref", "po_number")

	mapper, err := mapping.NewMapper(mapping.DefaultConfig(), registry, store, nil)
	if err != nil {
		panic(err)
	}

	headers := []string{"Invoice #", "Ref", "Amount", ""}
	for _, res := range mapper.MapHeaders(ctx, mapping.Requests(headers, "acme", "", false)) {
		fmt.Printf("%q -> %s (%s, %.0f)\n",
			res.Mapping.OriginalHeader, res.Mapping.MappedField, res.Mapping.Method, res.Mapping.ConfidenceScore)
	}

	// Output:
	// "Invoice #" -> invoice_number (exact_alias, 100)
	// "Ref" -> po_number (user_confirmed, 100)
	// "Amount" -> total_amount (exact_alias, 100)
	// "" -> unmapped (unmapped, 0)
}
