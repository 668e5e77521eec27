package product

// Product is the catalog entry a cart line refers to. Price is in minor
// currency units (øre).
type Product struct {
	UID   string `json:"productUid"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}
