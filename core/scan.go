package core

// Capability is a device or platform feature the runtime may expose
type Capability string

const (
	CapabilityNFC    Capability = "nfc"
	CapabilityCamera Capability = "camera-scanner"
	CapabilityWallet Capability = "wallet-provider"
)

// NFCRecord is a single NDEF record
type NFCRecord struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// NFCScan is the result of one successful tag read
type NFCScan struct {
	SerialNumber string      `json:"serialNumber"`
	Records      []NFCRecord `json:"records"`
}

// ScanState is the state of a scan or write flow
type ScanState int

const (
	ScanIdle ScanState = iota
	ScanActive
	ScanSuccess
	ScanFailed
)

func (s ScanState) String() string {
	switch s {
	case ScanActive:
		return "active"
	case ScanSuccess:
		return "success"
	case ScanFailed:
		return "error"
	default:
		return "idle"
	}
}

// Terminal reports whether the state is success or error
func (s ScanState) Terminal() bool {
	return s == ScanSuccess || s == ScanFailed
}
