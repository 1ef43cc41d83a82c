package domain

type Product struct {
	Id     int64  `json:"id"`
	Name   string `json:"name"`
	Brand  string `json:"brand"`
	Amount int64  `json:"amount"`
}

// NewProduct carries the mutable product fields. It is the create payload
// and the update patch; an update replaces all three fields.
type NewProduct struct {
	Name   string `json:"name"`
	Brand  string `json:"brand"`
	Amount int64  `json:"amount"`
}

// WithFields returns a copy of p with name, brand and amount taken from f.
func (p Product) WithFields(f NewProduct) Product {
	return Product{
		Id:     p.Id,
		Name:   f.Name,
		Brand:  f.Brand,
		Amount: f.Amount,
	}
}
