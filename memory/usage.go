package memory

// Usage accumulates token consumption across the turns of a run. The field
// layout mirrors what chat completion APIs report so provider adapters can
// copy values over directly.
type Usage struct {
	CompletionTokens        int64                   `json:"completion_tokens"`
	PromptTokens            int64                   `json:"prompt_tokens"`
	TotalTokens             int64                   `json:"total_tokens"`
	CompletionTokensDetails CompletionTokensDetails `json:"completion_tokens_details"`
	PromptTokensDetails     PromptTokensDetails     `json:"prompt_tokens_details"`
}

// AddUsage adds the counters of other into u.
func (u *Usage) AddUsage(other *Usage) {
	if other == nil {
		return
	}
	u.CompletionTokens += other.CompletionTokens
	u.PromptTokens += other.PromptTokens
	u.TotalTokens += other.TotalTokens
	u.CompletionTokensDetails.AddUsage(&other.CompletionTokensDetails)
	u.PromptTokensDetails.AddUsage(&other.PromptTokensDetails)
}

type CompletionTokensDetails struct {
	AcceptedPredictionTokens int64 `json:"accepted_prediction_tokens"`
	AudioTokens              int64 `json:"audio_tokens"`
	ReasoningTokens          int64 `json:"reasoning_tokens"`
	RejectedPredictionTokens int64 `json:"rejected_prediction_tokens"`
}

func (c *CompletionTokensDetails) AddUsage(other *CompletionTokensDetails) {
	if other == nil {
		return
	}
	c.AcceptedPredictionTokens += other.AcceptedPredictionTokens
	c.AudioTokens += other.AudioTokens
	c.ReasoningTokens += other.ReasoningTokens
	c.RejectedPredictionTokens += other.RejectedPredictionTokens
}

type PromptTokensDetails struct {
	AudioTokens  int64 `json:"audio_tokens"`
	CachedTokens int64 `json:"cached_tokens"`
}

func (p *PromptTokensDetails) AddUsage(other *PromptTokensDetails) {
	if other == nil {
		return
	}
	p.AudioTokens += other.AudioTokens
	p.CachedTokens += other.CachedTokens
}
