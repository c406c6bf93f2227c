package api

// TokenizeRequest is the body of POST /v1/tokenize.
type TokenizeRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	// Token authenticates hub downloads for this request.
	Token string `json:"token,omitempty"`
}

type TokenizeResponse struct {
	Object    string   `json:"object"`
	Model     string   `json:"model"`
	Tokens    []string `json:"tokens"`
	IDs       []int    `json:"ids"`
	DebugLogs []string `json:"debug_logs,omitempty"`
}

// InputTokensRequest is the body of POST /v1/responses/input_tokens. Input
// is a string or an array of strings.
type InputTokensRequest struct {
	Model string `json:"model,omitempty"`
	Input any    `json:"input"`
}

type InputTokensResponse struct {
	Object      string `json:"object"`
	InputTokens int    `json:"input_tokens"`
}

type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
