package domain

type StockLevel struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Available int    `json:"available"`
}
