package domain

// ErrorResponse é a forma padronizada com que a camada de apresentação exibe um erro.
type ErrorResponse struct {
	Category string `json:"category" example:"INSUFFICIENT_STOCK"`
	Message  string `json:"message" example:"Estoque insuficiente: disponível 40, solicitado 60."`
}
