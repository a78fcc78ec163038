package domain

type BalanceSnapshot struct {
	SolBalance    float64 `json:"sol_balance"`
	RubBalance    float64 `json:"rub_balance"`
	IsTestBalance bool    `json:"is_test_balance"`
}

type UserInfo struct {
	ID            int64   `json:"id"`
	TelegramID    int64   `json:"telegram_id"`
	Username      string  `json:"username"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	BalanceSol    float64 `json:"balance_sol"`
	BalanceRub    float64 `json:"balance_rub"`
	WalletAddress string  `json:"wallet_address"`
	IsTestBalance bool    `json:"is_test_balance"`
}

func (u *UserInfo) Snapshot() BalanceSnapshot {
	return BalanceSnapshot{
		SolBalance:    u.BalanceSol,
		RubBalance:    u.BalanceRub,
		IsTestBalance: u.IsTestBalance,
	}
}

// DisplayName prefers the first name, then the username.
func (u *UserInfo) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "Пользователь"
}

type RefreshBalanceResponse struct {
	Success    bool    `json:"success"`
	BalanceSol float64 `json:"balance_sol"`
	Message    string  `json:"message,omitempty"`
	Error      string  `json:"error,omitempty"`
}
