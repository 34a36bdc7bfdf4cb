package lifecycle

import "sync"

// Script hands out canned assistant replies round-robin, one counter per
// conversation. Counters live only as long as the Script.
type Script struct {
	responses []string

	mu       sync.Mutex
	counters map[string]int
}

// NewScript creates a script over responses, which must not be empty.
func NewScript(responses []string) *Script {
	if len(responses) == 0 {
		panic("lifecycle: empty script")
	}
	return &Script{
		responses: append([]string(nil), responses...),
		counters:  make(map[string]int),
	}
}

// DefaultScript returns the stock GST walkthrough.
func DefaultScript() *Script {
	return NewScript(defaultResponses)
}

// Greeting is the reply a fresh chat is seeded with. It does not advance any
// counter, so the first Next for a conversation repeats it.
func (s *Script) Greeting() string {
	return s.responses[0]
}

// Next returns the reply for the next turn of conversationID.
func (s *Script) Next(conversationID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.counters[conversationID]
	s.counters[conversationID] = i + 1
	return s.responses[i%len(s.responses)]
}

var defaultResponses = []string{
	"Sure. I'll help you with that. Just to confirm, is this for a monthly GST return (GSTR-1 and GSTR-3B)?",
	"Thanks. I have identified this as **GST Monthly Return - April 2025**. I'll now guide you step by step. " +
		"Creating a Checklist and task for you to upload all the required documents needed to file the GST.",
	"Please upload the following documents for April 2025:\n\n" +
		"1. **Sales Register** (Excel or PDF)\n" +
		"2. **Purchase Register** (Excel or PDF)\n" +
		"3. **Expense Bills** (images or PDFs)\n" +
		"4. **Bank Statement** (PDF preferred, all pages)\n\n" +
		"**Optional:** credit or debit notes issued or received in April 2025.",
	"I've received your documents. Let me review them and get back to you shortly.",
	"Your documents look good! I'll prepare your GSTR-3B return and share the draft for your approval. " +
		"This should take approximately 2-3 business days.",
}
