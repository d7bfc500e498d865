package types

// AccessGrant is a patient-authorized permission for a viewer to read the
// patient's health record reference
type AccessGrant struct {
	Patient   string `json:"patient"`
	Viewer    string `json:"viewer"`
	Approved  bool   `json:"approved"`
	GrantedAt uint64 `json:"granted_at"`
}

// HealthRecord is the current off-chain record reference of a patient
type HealthRecord struct {
	Patient    string `json:"patient"`
	RecordHash string `json:"record_hash"`
	UpdatedAt  uint64 `json:"updated_at"`
}

// OrderState is the derived lifecycle state of a medication order
type OrderState string

const (
	OrderCreated         OrderState = "created"
	OrderDispenserChosen OrderState = "dispenser_chosen"
	OrderFulfilled       OrderState = "fulfilled"
)

// MedicationOrder is a physician-issued order for a patient, filled by a
// dispenser the patient chooses
type MedicationOrder struct {
	ID         uint64  `json:"id"`
	Patient    string  `json:"patient"`
	Physician  string  `json:"physician"`
	Dispenser  *string `json:"dispenser,omitempty"`
	Medication string  `json:"medication"`
	Dosage     uint64  `json:"dosage"`
	CreatedAt  uint64  `json:"created_at"`
	Fulfilled  bool    `json:"fulfilled"`
}

// State derives the lifecycle state from the stored fields
func (o *MedicationOrder) State() OrderState {
	switch {
	case o.Fulfilled:
		return OrderFulfilled
	case o.Dispenser != nil:
		return OrderDispenserChosen
	default:
		return OrderCreated
	}
}

// Expired reports whether the dispenser-selection window has elapsed at tick now
func (o *MedicationOrder) Expired(now, validity uint64) bool {
	return now >= o.CreatedAt && now-o.CreatedAt >= validity
}

// AssignedTo reports whether the order's dispenser is id
func (o *MedicationOrder) AssignedTo(id string) bool {
	return o.Dispenser != nil && *o.Dispenser == id
}
