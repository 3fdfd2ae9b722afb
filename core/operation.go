package core

// OperationKind is the kind of wallet request
type OperationKind string

const (
	KindSignData        OperationKind = "sign-data"
	KindSendTransaction OperationKind = "send-transaction"
)

// OperationStatus tracks a request through its lifecycle
type OperationStatus string

const (
	OperationIdle    OperationStatus = "idle"
	OperationPending OperationStatus = "pending"
	OperationSuccess OperationStatus = "success"
	OperationError   OperationStatus = "error"
)

// Operation is the tracked record of one dispatched request
type Operation struct {
	ID       uint64
	Kind     OperationKind
	Request  any
	Status   OperationStatus
	Response any
	Err      error
}

// Phase is a point in a request lifecycle where side effects may fire
type Phase string

const (
	PhaseBefore  Phase = "before"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Action is the UI side effect requested for a phase
type Action struct {
	Name             string
	Kind             OperationKind
	Phase            Phase
	ShowNotification bool
	OpenModal        bool
}

// Message is a single outgoing message within a transaction
type Message struct {
	Address   string `json:"address"`
	Amount    string `json:"amount"` // nanotons
	StateInit string `json:"stateInit,omitempty"`
	Payload   string `json:"payload,omitempty"`
}

// Transaction is a send-transaction request
type Transaction struct {
	ValidUntil int64     `json:"validUntil"`
	Network    string    `json:"network,omitempty"`
	From       string    `json:"from,omitempty"`
	Messages   []Message `json:"messages"`
}

// TransactionResult is the wallet's answer to a send-transaction request
type TransactionResult struct {
	BOC string `json:"boc"`
}

// SignDataType selects the sign-data payload encoding
type SignDataType string

const (
	SignDataText   SignDataType = "text"
	SignDataBinary SignDataType = "binary"
	SignDataCell   SignDataType = "cell"
)

// SignDataPayload is a sign-data request
type SignDataPayload struct {
	Type   SignDataType `json:"type"`
	Text   string       `json:"text,omitempty"`
	Bytes  string       `json:"bytes,omitempty"` // base64
	Schema string       `json:"schema,omitempty"`
	Cell   string       `json:"cell,omitempty"` // base64 BOC
}

// SignDataResult is the wallet's answer to a sign-data request
type SignDataResult struct {
	Signature string          `json:"signature"` // base64
	Address   string          `json:"address"`
	Timestamp int64           `json:"timestamp"`
	Domain    string          `json:"domain"`
	Payload   SignDataPayload `json:"payload"`
}
