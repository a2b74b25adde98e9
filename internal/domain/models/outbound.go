package models

// OutboundMessageRequest represents requests to send a message manually via the API.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}

// StockReportRequest asks for the stock report of Date (dd/mm/yyyy, today when
// empty) to be sent to a WhatsApp number.
type StockReportRequest struct {
	To   string `json:"to" binding:"required"`
	Date string `json:"date"`
}
