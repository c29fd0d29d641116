package funding

// TopUpRequest is the body of POST /balance/topup.
type TopUpRequest struct {
	CardNumber string `json:"card_number" validate:"required"`
	Amount     string `json:"amount" validate:"required,numeric"`
}

// TopUpResponse is returned after a successful top-up.
type TopUpResponse struct {
	Balance           string `json:"balance"`
	AcquirerReference string `json:"acquirer_reference"`
}

// EntryView is one journal line in GET /balance.
type EntryView struct {
	ID        string `json:"id"`
	Delta     string `json:"delta"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

// BalanceResponse is the body of GET /balance.
type BalanceResponse struct {
	Balance string      `json:"balance"`
	Entries []EntryView `json:"entries"`
}
