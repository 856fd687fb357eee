package model

// Mode is the execution context of one submission: Simulated or Live.
// It is chosen once by the caller and passed by value into every executor call.
type Mode interface {
	Name() string
	isMode()
}

// Simulated orders never leave the process.
type Simulated struct{}

func (Simulated) Name() string { return "simulated" }
func (Simulated) isMode()      {}

// Live orders are signed with Credentials and sent to the exchange.
type Live struct {
	Credentials *Credentials
}

func (Live) Name() string { return "live" }
func (Live) isMode()      {}
