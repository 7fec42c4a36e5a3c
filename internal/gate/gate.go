// Package gate decides whether a request may reach the executor. The check is
// a textual heuristic for catching user mistakes and is not a security
// boundary.
package gate

import "strings"

const RefusalMessage = "Please confirm destructive operation by starting query with 'YES'"

const ReadOnlyRefusalMessage = "Modifying statements are disabled in read-only mode"

var DefaultTriggers = []string{"delete", "drop", "truncate", "update", "insert"}

type State string

const (
	StateReceivedText        State = "RECEIVED_TEXT"
	StateExtractedStatement  State = "EXTRACTED_STATEMENT"
	StateReadOnly            State = "READ_ONLY"
	StateMutatingUnconfirmed State = "MUTATING_UNCONFIRMED"
	StateMutatingConfirmed   State = "MUTATING_CONFIRMED"
)

// Allowed reports whether the executor may run a statement in state s.
func (s State) Allowed() bool {
	return s == StateReadOnly || s == StateMutatingConfirmed
}

// Classifier flags text containing any trigger word as a case-insensitive
// substring. Identifiers and literals that contain a trigger are flagged too.
type Classifier struct {
	triggers []string
}

func NewClassifier(triggers []string) Classifier {
	if len(triggers) == 0 {
		triggers = DefaultTriggers
	}
	normalized := make([]string, 0, len(triggers))
	for _, trigger := range triggers {
		trigger = strings.ToLower(strings.TrimSpace(trigger))
		if trigger != "" {
			normalized = append(normalized, trigger)
		}
	}
	return Classifier{triggers: normalized}
}

// Match returns the first trigger found in text.
func (c Classifier) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, trigger := range c.triggers {
		if strings.Contains(lower, trigger) {
			return trigger, true
		}
	}
	return "", false
}

func (c Classifier) IsMutating(text string) bool {
	_, ok := c.Match(text)
	return ok
}

func (c Classifier) Triggers() []string {
	return append([]string(nil), c.triggers...)
}

type Options struct {
	Triggers     []string
	ConfirmToken string
	ReadOnly     bool
}

type Gate struct {
	classifier Classifier
	token      string
	readOnly   bool
}

func New(opts Options) *Gate {
	token := strings.TrimSpace(opts.ConfirmToken)
	if token == "" {
		token = "YES"
	}
	return &Gate{
		classifier: NewClassifier(opts.Triggers),
		token:      token,
		readOnly:   opts.ReadOnly,
	}
}

func (g *Gate) ReadOnly() bool { return g.readOnly }

func (g *Gate) Classifier() Classifier { return g.classifier }

// Confirmation is the parsed form of a raw user message.
type Confirmation struct {
	Raw       string
	Request   string
	Confirmed bool
}

// ParseConfirmation checks for the confirm token at the start of input and
// strips it, plus any separator, from the request forwarded to the model.
func (g *Gate) ParseConfirmation(input string) Confirmation {
	trimmed := strings.TrimSpace(input)
	out := Confirmation{Raw: input, Request: trimmed}
	if len(trimmed) < len(g.token) || !strings.EqualFold(trimmed[:len(g.token)], g.token) {
		return out
	}
	out.Confirmed = true
	out.Request = strings.TrimLeft(trimmed[len(g.token):], " \t,:")
	return out
}

// Decision is the gate's verdict for one piece of text. Path lists the states
// the text passed through, ending in State.
type Decision struct {
	State   State   `json:"state"`
	Path    []State `json:"path"`
	Trigger string  `json:"trigger,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Check classifies the user's own text against the confirmation parsed from
// it. Read-only mode refuses any mutating text regardless of confirmation.
func (g *Gate) Check(text string, confirmation Confirmation) Decision {
	return g.decide(text, confirmation, StateReceivedText)
}

// CheckStatement classifies SQL produced for the request.
func (g *Gate) CheckStatement(statement string, confirmation Confirmation) Decision {
	return g.decide(statement, confirmation, StateReceivedText, StateExtractedStatement)
}

func (g *Gate) decide(text string, confirmation Confirmation, path ...State) Decision {
	trigger, mutating := g.classifier.Match(text)
	var d Decision
	switch {
	case !mutating:
		d = Decision{State: StateReadOnly}
	case g.readOnly:
		d = Decision{State: StateMutatingUnconfirmed, Trigger: trigger, Message: ReadOnlyRefusalMessage}
	case !confirmation.Confirmed:
		d = Decision{State: StateMutatingUnconfirmed, Trigger: trigger, Message: RefusalMessage}
	default:
		d = Decision{State: StateMutatingConfirmed, Trigger: trigger}
	}
	d.Path = append(path, d.State)
	return d
}
