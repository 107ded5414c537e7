package embedding

type VectorResponse struct {
	Success bool      `json:"success"`
	ID      string    `json:"id"`
	Vector  []float64 `json:"vector"`
}
