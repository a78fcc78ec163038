package domain

type DepositAddress struct {
	Success      bool   `json:"success"`
	Currency     string `json:"currency"`
	Address      string `json:"address"`
	CurrencyName string `json:"currency_name"`
	Error        string `json:"error,omitempty"`
}

type WithdrawalRequest struct {
	AmountSol     float64 `json:"amount_sol"`
	WalletAddress string  `json:"wallet_address"`
}

type WithdrawalResult struct {
	Success          bool     `json:"success"`
	WithdrawalID     TxID     `json:"withdrawal_id"`
	TransactionID    TxID     `json:"transaction_id"`
	AmountSol        float64  `json:"amount_sol"`
	AmountRub        float64  `json:"amount_rub"`
	WalletAddress    string   `json:"wallet_address"`
	FrozenBalance    *float64 `json:"frozen_balance,omitempty"`
	AvailableBalance *float64 `json:"available_balance,omitempty"`
	Status           string   `json:"status"`
	Message          string   `json:"message,omitempty"`
	Error            string   `json:"error,omitempty"`
}
