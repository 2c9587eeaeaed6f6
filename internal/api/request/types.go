package request

// ChallengeRequest asks for a sign-in challenge
type ChallengeRequest struct {
	Address string `json:"address"`
}

// VerifyRequest exchanges a signed challenge for a session
type VerifyRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// FuseRequest names the three elements to fuse
type FuseRequest struct {
	ElementIDs []string `json:"element_ids"`
}

// SubmitQuoteRequest is the request body for submitting a quote
type SubmitQuoteRequest struct {
	Content    string `json:"content"`
	Category   string `json:"category"`
	IsOwnQuote bool   `json:"isOwnQuote"`
}

// ModerateQuoteRequest sets a pending quote's status
type ModerateQuoteRequest struct {
	Status string `json:"status"`
}

// BulkDeleteRequest lists quotes to delete together
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}
