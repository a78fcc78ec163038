package domain

type ExchangeRates struct {
	SOL              float64 `json:"SOL"`
	CommissionMarkup float64 `json:"commission_markup"`
}

type HomeText struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// DefaultWelcomeText is shown when the server has no home page text.
const DefaultWelcomeText = "Добро пожаловать в CryptoPay! Пополняйте баланс Solana и оплачивайте покупки по QR-коду."
