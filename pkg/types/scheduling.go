package types

// Visit is a clinical visit booked between a patient and a physician
type Visit struct {
	ID          uint64 `json:"id"`
	Patient     string `json:"patient"`
	Physician   string `json:"physician"`
	CreatedAt   uint64 `json:"created_at"`
	SummaryHash string `json:"summary_hash"`
}

// FrequencyCounter tracks how many visits a physician accepted in the
// current window
type FrequencyCounter struct {
	Physician   string `json:"physician"`
	WindowStart uint64 `json:"window_start"`
	Count       uint64 `json:"count"`
}
