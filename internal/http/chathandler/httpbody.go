package chathandler

import "chatrelaygo/internal/store"

type HistoryQuery struct {
	Limit int `form:"limit,default=50" binding:"gte=1,lte=100"`
}

type HistoryResponse struct {
	Messages []store.Message `json:"messages"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
