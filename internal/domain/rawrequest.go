package domain

// RawRequest is the transport-agnostic request metadata bundle handed to the
// core at the HTTP boundary. Header keys are lower-cased; multi-valued
// headers keep their first value. The bundle travels inside click jobs, so
// it must stay JSON-serializable.
type RawRequest struct {
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	IP      string            `json:"ip"`
	IPs     []string          `json:"ips,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    map[string]string `json:"body,omitempty"`
	Cookies map[string]string `json:"cookies,omitempty"`
}

// Header returns the named header (lower-case key) or "".
func (r RawRequest) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[name]
}
