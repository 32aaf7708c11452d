package domain

// Method names the branch an action-routing submission took.
type Method string

const (
	MethodConnectionRequest Method = "connection_request"
	MethodDirectMessage     Method = "direct_message"
	MethodSkip              Method = "skip"
)

// Job is one extracted search result.
type Job struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description"`
}

// Person is one extracted member of a people listing.
type Person struct {
	Name       string `json:"name"`
	Title      string `json:"title,omitempty"`
	ProfileURL string `json:"profile_url"`
}

// SubmissionResult is the outcome of a single connect-or-message submission.
type SubmissionResult struct {
	Identifier string `json:"identifier"`
	Sent       bool   `json:"sent"`
	Method     Method `json:"method"`
	Error      string `json:"error,omitempty"`
}

// SearchResult wraps extracted jobs together with the non-fatal problems met on the way.
type SearchResult struct {
	Jobs   []Job    `json:"jobs"`
	Pages  int      `json:"pages"`
	Errors []string `json:"errors,omitempty"`
}

// PeopleResult wraps extracted people together with the non-fatal problems met on the way.
type PeopleResult struct {
	People []Person `json:"people"`
	Errors []string `json:"errors,omitempty"`
}

// LoginStatus is the host-visible phase of an authentication run.
type LoginStatus string

const (
	LoginAuthenticated LoginStatus = "authenticated"
	LoginAwaiting      LoginStatus = "awaiting_confirmation"
	LoginFailed        LoginStatus = "failed"
)

// LoginResult reports the state of an authentication run.
type LoginResult struct {
	RunID         string      `json:"run_id"`
	Status        LoginStatus `json:"status"`
	Authenticated bool        `json:"authenticated"`
	Prompt        string      `json:"prompt,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// ApplyResult reports the outcome of an application form submission.
type ApplyResult struct {
	JobURL    string            `json:"job_url"`
	Submitted bool              `json:"submitted"`
	Steps     int               `json:"steps"`
	Answers   map[string]string `json:"answers,omitempty"`
	Error     string            `json:"error,omitempty"`
}
