package cart

// addItemRequest adds cantidad units of a product. Quantity rules are enforced by the
// cart service so the client sees its messages verbatim.
type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Cantidad  int    `json:"cantidad"`
}

// updateItemRequest sets the line quantity; zero or less removes the line.
type updateItemRequest struct {
	Cantidad int `json:"cantidad"`
}
