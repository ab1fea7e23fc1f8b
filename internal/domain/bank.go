package domain

// BankResult is the outcome of an authorization attempt at the acquirer.
// How the attempt was made is the caller's concern; the gateway only
// records the outcome and moves the payment accordingly.
type BankResult struct {
	Approved bool
	Code     string
	Message  string
	AuthRef  string
}
