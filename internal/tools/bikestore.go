package tools

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

// BikeStoreLabel is the server label of the Contoso bike store tools
const BikeStoreLabel = "contoso_store"

type bike struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

var inventory = []bike{
	{ID: 1, Name: "Trail Blazer", Type: "Mountain", Price: 1299.99, Stock: 4},
	{ID: 2, Name: "City Cruiser", Type: "Hybrid", Price: 649.00, Stock: 12},
	{ID: 3, Name: "Road Runner", Type: "Road", Price: 1899.50, Stock: 2},
	{ID: 4, Name: "Little Rider", Type: "Kids", Price: 249.99, Stock: 0},
}

func pretty(v any) string {
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

// BikeStore returns mocked product inventory tools backed by a fixed in-memory inventory
func BikeStore(seed int64) *Catalog {
	return NewCatalog(BikeStoreLabel, seed,
		Tool{
			Name:        "get_available_bikes",
			Description: "Get all available bikes from the Contoso bike store.",
			render: func(_ *rand.Rand, _ map[string]any) string {
				return pretty(inventory)
			},
		},
		Tool{
			Name:        "get_bike_by_id",
			Description: "Get details for a specific bike by its ID.",
			Params:      []string{"bikeId"},
			render: func(_ *rand.Rand, args map[string]any) string {
				id := arg(args, "bikeId")
				for _, b := range inventory {
					if fmt.Sprint(b.ID) == id {
						return pretty(b)
					}
				}
				return fmt.Sprintf("Failed to get bike with ID %s: Not Found", id)
			},
		},
		Tool{
			Name:        "get_bike_id_by_name",
			Description: "Get bike ID by its name.",
			Params:      []string{"bikeName"},
			render: func(_ *rand.Rand, args map[string]any) string {
				name := arg(args, "bikeName")
				for _, b := range inventory {
					if strings.EqualFold(b.Name, name) {
						return fmt.Sprintf(`{"id": %d, "name": %q}`, b.ID, name)
					}
				}
				return fmt.Sprintf(`{"error": "No bike found with name '%s'"}`, name)
			},
		},
	)
}
