package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ErrorMarker prefixes the response text of every failed envelope
const ErrorMarker = "❌"

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// CompanyProfile is descriptive data shown for demo companies
type CompanyProfile struct {
	Description string `json:"description,omitempty" yaml:"description"`
	MarketCap   string `json:"market_cap,omitempty" yaml:"market_cap"`
	Employees   string `json:"employees,omitempty" yaml:"employees"`
	Founded     string `json:"founded,omitempty" yaml:"founded"`
}

// Payload is the structured part of a response. Zero fields are omitted and
// never merged into the conversation context.
type Payload struct {
	Company   *Company        `json:"company,omitempty"`
	Profile   *CompanyProfile `json:"profile,omitempty"`
	Companies []*Company      `json:"companies,omitempty"`
	Filing    *Filing         `json:"filing,omitempty"`
	Analysis  AnalysisResult  `json:"-"`
	Content   string          `json:"content,omitempty"`
	Question  string          `json:"question,omitempty"`
	Answer    string          `json:"answer,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	DemoMode  bool            `json:"demo_mode,omitempty"`
}

// IsEmpty reports whether the payload carries nothing
func (p *Payload) IsEmpty() bool {
	return p == nil || (p.Company == nil &&
		p.Profile == nil &&
		len(p.Companies) == 0 &&
		p.Filing == nil &&
		p.Analysis == nil &&
		p.Content == "" &&
		p.Question == "" &&
		p.Answer == "" &&
		p.Summary == "" &&
		!p.DemoMode)
}

type payloadJSON Payload

func (p Payload) MarshalJSON() ([]byte, error) {
	out := struct {
		payloadJSON
		Analysis json.RawMessage `json:"analysis,omitempty"`
	}{payloadJSON: payloadJSON(p)}

	if p.Analysis != nil {
		raw, err := MarshalAnalysis(p.Analysis)
		if err != nil {
			return nil, err
		}
		out.Analysis = raw
	}
	return json.Marshal(out)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var in struct {
		payloadJSON
		Analysis json.RawMessage `json:"analysis,omitempty"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return goerr.Wrap(err, "failed to decode payload")
	}
	*p = Payload(in.payloadJSON)

	if len(in.Analysis) > 0 && string(in.Analysis) != "null" {
		r, err := UnmarshalAnalysis(in.Analysis)
		if err != nil {
			return err
		}
		p.Analysis = r
	}
	return nil
}

// Envelope is the outcome of one query. It is appended to history and not
// modified afterwards.
type Envelope struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
	Intent    Intent    `json:"intent"`
	Response  string    `json:"response"`
	Data      *Payload  `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Failed reports whether the envelope carries an error
func (e *Envelope) Failed() bool {
	return e.Error != ""
}

// NewErrorEnvelope builds a failed envelope: error set, no data, and a
// marked human readable response.
func NewErrorEnvelope(q Query, intent Intent, err error) *Envelope {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Envelope{
		Query:     q.Text,
		Timestamp: q.Timestamp,
		Intent:    intent,
		Response:  ErrorMarker + " I encountered an error: " + msg,
		Error:     msg,
	}
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a display line derived from history
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// MessagesFrom expands envelopes into alternating user/assistant messages
func MessagesFrom(history []*Envelope) []Message {
	msgs := make([]Message, 0, len(history)*2)
	for _, env := range history {
		msgs = append(msgs,
			Message{Role: RoleUser, Content: env.Query, Timestamp: env.Timestamp},
			Message{Role: RoleAssistant, Content: env.Response, Timestamp: env.Timestamp},
		)
	}
	return msgs
}

// HasErrorMarker reports whether text starts with ErrorMarker
func HasErrorMarker(text string) bool {
	return strings.HasPrefix(text, ErrorMarker)
}
