package models

// Credit is a single append-only ledger entry. Positive credits are grants,
// negative are debits; the store rejects inserts that would take an account's
// sum below zero.
type Credit struct {
	Account     string `json:"account"`
	Credits     int64  `json:"credits"`
	Description string `json:"description"`
	Date        int64  `json:"date"`
}

// PromoCode is a single-use credit grant redeemable by one account.
type PromoCode struct {
	Code        string  `json:"code"`
	Credits     int64   `json:"credits"`
	Description string  `json:"description"`
	RedeemedBy  *string `json:"redeemed_by,omitempty"`
}
