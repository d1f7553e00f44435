// Package config defines the value types and loader seam the core
// consumes for its two external inputs: the set of FSUIPC offsets to
// sample and the bus broker endpoint to connect to. Parsing a concrete
// format (file, flag, env) is out of scope; callers construct a Source
// however they like.
package config

// Offset declares one FSUIPC offset to sample: its address and its width
// in bytes (1, 2, or 4).
type Offset struct {
	Address uint16
	Length  uint8
}

// BrokerEndpoint names the bus transport to dial or listen on.
type BrokerEndpoint struct {
	Network string // "tcp", "unix", ...
	Address string
}

// Source supplies the core's two configuration inputs. A real loader
// (file/env/flag) implements this; none ships in this module.
type Source interface {
	Offsets() ([]Offset, error)
	Broker() (BrokerEndpoint, error)
}

// Static is a Source backed by fixed in-memory values, useful for tests
// and for embedding a small hardcoded configuration in a demo binary.
type Static struct {
	OffsetList     []Offset
	BrokerEndpoint BrokerEndpoint
}

func (s Static) Offsets() ([]Offset, error) { return s.OffsetList, nil }

func (s Static) Broker() (BrokerEndpoint, error) { return s.BrokerEndpoint, nil }
