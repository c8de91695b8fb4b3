package dolarapi

import "github.com/shopspring/decimal"

// QuoteResponse - body of GET /v1/dolares/{casa}
type QuoteResponse struct {
	Moneda             string              `json:"moneda"`
	Casa               string              `json:"casa"`
	Nombre             string              `json:"nombre"`
	Compra             decimal.NullDecimal `json:"compra"`
	Venta              decimal.NullDecimal `json:"venta"`
	FechaActualizacion string              `json:"fechaActualizacion"`
}
