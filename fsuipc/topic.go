package fsuipc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flightvars/flightvars/config"
)

const topicPrefix = "fsuipc/offsets/"

// minAddress and maxAddress bound the valid offset address range,
// exclusive at both ends per the FSUIPC domain's address validation rule.
const (
	minAddress = 0x0000
	maxAddress = 0xCCCC
)

func validateOffset(off config.Offset) error {
	if off.Address <= minAddress || off.Address >= maxAddress {
		return ErrInvalidOffsetAddress
	}
	switch off.Length {
	case 1, 2, 4:
	default:
		return ErrInvalidOffsetLength
	}
	return nil
}

// topicFor builds the bus topic for an offset: fsuipc/offsets/<hex>:<length>,
// address in lowercase hex without a 0x prefix.
func topicFor(off config.Offset) string {
	return fmt.Sprintf("%s%x:%d", topicPrefix, off.Address, off.Length)
}

// parseTopic parses a bus topic of the form fsuipc/offsets/<hex>:<length>.
func parseTopic(topic string) (config.Offset, error) {
	rest, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return config.Offset{}, ErrMalformedTopic
	}
	return parseAddrLength(rest, false)
}

// nameFor builds the variable name for an offset as seen by FlightVars
// clients: "0x1000:1", 0x-prefixed, distinct from topicFor's bus topic
// form.
func nameFor(off config.Offset) string {
	return fmt.Sprintf("0x%x:%d", off.Address, off.Length)
}

// parseVariableName parses a variable name of the form "0x1000:1" (used in
// subscription_request/subscription_reply), where the 0x prefix is
// optional.
func parseVariableName(name string) (config.Offset, error) {
	return parseAddrLength(name, true)
}

func parseAddrLength(s string, allowHexPrefix bool) (config.Offset, error) {
	addrPart, lenPart, ok := strings.Cut(s, ":")
	if !ok {
		return config.Offset{}, ErrMalformedTopic
	}

	if allowHexPrefix {
		addrPart = strings.TrimPrefix(strings.TrimPrefix(addrPart, "0x"), "0X")
	}

	addr, err := strconv.ParseUint(addrPart, 16, 16)
	if err != nil {
		return config.Offset{}, ErrMalformedTopic
	}

	length, err := strconv.ParseUint(lenPart, 10, 8)
	if err != nil {
		return config.Offset{}, ErrMalformedTopic
	}

	off := config.Offset{Address: uint16(addr), Length: uint8(length)}
	if err := validateOffset(off); err != nil {
		return config.Offset{}, err
	}
	return off, nil
}
