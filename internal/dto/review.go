package dto

// ReviewDecisionRequest captures a single clinician sign-off decision.
type ReviewDecisionRequest struct {
	Approve *bool   `json:"approve"`
	Notes   *string `json:"notes,omitempty"`
}

// BatchReviewRequest applies one decision to several pending reviews.
type BatchReviewRequest struct {
	ReviewIDs []string `json:"reviewIds"`
	Approve   *bool    `json:"approve"`
	Notes     *string  `json:"notes,omitempty"`
}
