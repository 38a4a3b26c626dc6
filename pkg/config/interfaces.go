package config

// Validator interface for configurations that need validation.
type Validator interface {
	Validate() error
}

// Provider hands out the current settings as an independent copy.
type Provider interface {
	Snapshot() Settings
}
