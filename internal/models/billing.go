// ABOUTME: Billing request/response models
// ABOUTME: Credit purchases, ad rewards and per-store subscriptions

package models

// CreditPurchaseRequest buys a credit package
type CreditPurchaseRequest struct {
	PackageID string `json:"package_id"`
	Credits   int    `json:"credits"`
	Amount    int    `json:"amount"`
}

// AdRewardRequest claims credits for a watched ad
type AdRewardRequest struct {
	AdID string `json:"ad_id,omitempty"`
}

// SubscribeStoreRequest subscribes a store to a plan
type SubscribeStoreRequest struct {
	StoreID string `json:"store_id"`
	Plan    string `json:"plan"`
}

// BillingResult is the backend's acknowledgement of a billing call
type BillingResult struct {
	Success bool   `json:"success"`
	Credits int    `json:"credits"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message,omitempty"`
}
