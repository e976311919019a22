package dto

type TokenResponse struct {
	Token string `json:"token"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type DailyBudgetResponse struct {
	CampaignID  string  `json:"campaign_id"`
	DailyBudget float64 `json:"daily_budget"`
}
