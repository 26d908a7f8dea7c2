// internal/workers/communication/call-webhook/models.go
package callwebhook

type Input struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	// Status is the job outcome being reported: completed, failed, cancelled.
	Status string                 `json:"status"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Output reports delivery best-effort. Webhook failures never fail the job;
// the outcome they carry has already happened.
type Output struct {
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}
