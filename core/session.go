package core

import "time"

// Status is the connection state of a wallet session
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Device describes the wallet application
type Device struct {
	AppName    string `json:"appName"`
	AppVersion string `json:"appVersion,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// WalletInfo is the wallet metadata persisted between page loads
type WalletInfo struct {
	Name     string `json:"name"`
	AppName  string `json:"appName"`
	ImageURL string `json:"imageUrl,omitempty"`
	AboutURL string `json:"aboutUrl,omitempty"`
}

// IsZero reports whether no metadata is present
func (w WalletInfo) IsZero() bool {
	return w == WalletInfo{}
}

// Wallet is the payload the bridge delivers on a successful connect
type Wallet struct {
	Account Account     `json:"account"`
	Device  Device      `json:"device"`
	Info    *WalletInfo `json:"info,omitempty"`
	Proof   *Proof      `json:"proof,omitempty"`
}

// ConnectRequest is sent to the bridge to open a connection
type ConnectRequest struct {
	// ProofPayload is the challenge hash; empty for a plain connect
	ProofPayload string
}

// Snapshot is a read-only copy of the session state
type Snapshot struct {
	Status       Status
	Wallet       *Wallet
	Info         WalletInfo
	AuthToken    string
	Challenge    *IssuedChallenge
	Verification *VerificationResult
}

// Connected reports whether a wallet is attached, authenticated or not
func (s Snapshot) Connected() bool {
	return s.Status == StatusConnected || s.Status == StatusAuthenticated
}

// EventType classifies a connection event
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventReconnected  EventType = "reconnected"
)

// ConnectionEvent is an immutable record of a session transition
type ConnectionEvent struct {
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WalletName string    `json:"wallet_name"`
	Address    string    `json:"address"`
}
