package model

// ConversationContext is the rolling state carried across turns. Each
// successful response payload is merged into it field by field.
type ConversationContext struct {
	Company   *Company
	Profile   *CompanyProfile
	Companies []*Company
	Filing    *Filing
	Analysis  AnalysisResult
	Content   string
	Question  string
	Answer    string
	Summary   string
	DemoMode  bool
}

// Merge copies every non-zero field of p into the context. Fields absent from
// p keep their previous value.
func (c *ConversationContext) Merge(p *Payload) {
	if p == nil {
		return
	}
	if p.Company != nil {
		c.Company = p.Company
	}
	if p.Profile != nil {
		c.Profile = p.Profile
	}
	if len(p.Companies) > 0 {
		c.Companies = p.Companies
	}
	if p.Filing != nil {
		c.Filing = p.Filing
	}
	if p.Analysis != nil {
		c.Analysis = p.Analysis
	}
	if p.Content != "" {
		c.Content = p.Content
	}
	if p.Question != "" {
		c.Question = p.Question
	}
	if p.Answer != "" {
		c.Answer = p.Answer
	}
	if p.Summary != "" {
		c.Summary = p.Summary
	}
	if p.DemoMode {
		c.DemoMode = true
	}
}

// Clear resets the context to empty
func (c *ConversationContext) Clear() {
	*c = ConversationContext{}
}

// IsEmpty reports whether nothing has been merged since creation or Clear
func (c *ConversationContext) IsEmpty() bool {
	return c == nil || (c.Company == nil &&
		c.Profile == nil &&
		len(c.Companies) == 0 &&
		c.Filing == nil &&
		c.Analysis == nil &&
		c.Content == "" &&
		c.Question == "" &&
		c.Answer == "" &&
		c.Summary == "" &&
		!c.DemoMode)
}

// Clone returns a shallow copy. Referenced values are immutable.
func (c *ConversationContext) Clone() *ConversationContext {
	if c == nil {
		return &ConversationContext{}
	}
	cp := *c
	if c.Companies != nil {
		cp.Companies = append([]*Company(nil), c.Companies...)
	}
	return &cp
}

// HasContent reports whether a filing excerpt is available for follow-ups
func (c *ConversationContext) HasContent() bool {
	return c != nil && c.Content != ""
}
