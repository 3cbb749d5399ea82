package models

// ErrorResponse is the body returned for every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// QueryResponse is the paginated envelope returned by list queries
type QueryResponse[T any] struct {
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	PrevOffset *int `json:"prev_offset"`
	NextOffset *int `json:"next_offset"`
	Items      []T  `json:"items"`
}

// NewQueryResponse builds the envelope and derives the neighbouring offsets.
func NewQueryResponse[T any](total, limit, offset int, items []T) QueryResponse[T] {
	if items == nil {
		items = []T{}
	}
	resp := QueryResponse[T]{
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Items:  items,
	}
	if offset > 0 {
		prev := max(offset-limit, 0)
		resp.PrevOffset = &prev
	}
	if offset+limit < total {
		next := offset + limit
		resp.NextOffset = &next
	}
	return resp
}
