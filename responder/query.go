package responder

import (
	"net/netip"

	"github.com/mjsolti/llmnrd/answer"
	"github.com/mjsolti/llmnrd/codec"
	"github.com/mjsolti/llmnrd/link"
)

// validateQuery reports whether p deserves a response: a standard query
// (QR unset, OPCODE 0) asking exactly one question, with no answer or
// authority records of its own.
func validateQuery(p *codec.Packet) bool {
	return !p.Flags.QR &&
		p.Flags.Opcode == 0 &&
		len(p.Questions) == 1 &&
		len(p.Answers) == 0 &&
		len(p.Authorities) == 0
}

// composeAnswers builds the answer records for q against oracle. It
// returns a nil slice (not an error) when there is nothing to say,
// leaving the silent-drop-vs-empty-response decision to the caller.
func composeAnswers(oracle answer.Oracle, q codec.Question) []codec.ResourceRecord {
	name := q.Name.Lower()

	switch q.Type {
	case codec.TypeA:
		return addressAnswer(oracle, name, link.V4, codec.TypeA)
	case codec.TypeAAAA:
		return addressAnswer(oracle, name, link.V6, codec.TypeAAAA)
	case codec.TypePTR:
		return ptrAnswer(oracle, name)
	case codec.TypeANY:
		var rrs []codec.ResourceRecord
		rrs = append(rrs, addressAnswer(oracle, name, link.V4, codec.TypeA)...)
		rrs = append(rrs, addressAnswer(oracle, name, link.V6, codec.TypeAAAA)...)
		return rrs
	default:
		return nil
	}
}

func addressAnswer(oracle answer.Oracle, name codec.Name, family link.Family, rtype uint16) []codec.ResourceRecord {
	addr, ok := oracle.GetAddress(name.String(), family)
	if !ok {
		return nil
	}

	var rdata []byte
	if family == link.V4 {
		b := addr.As4()
		rdata = b[:]
	} else {
		b := addr.As16()
		rdata = b[:]
	}

	return []codec.ResourceRecord{{
		Name:  name,
		Type:  rtype,
		Class: codec.ClassIN,
		TTL:   defaultTTL,
		RData: rdata,
	}}
}

func ptrAnswer(oracle answer.Oracle, name codec.Name) []codec.ResourceRecord {
	addr, ok := parsePTRName(name)
	if !ok {
		return nil
	}

	set := oracle.Addresses()
	if !addrIn(set.V4, addr) && !addrIn(set.V6, addr) {
		return nil
	}

	hostname, ok := oracle.GetName(addr)
	if !ok {
		return nil
	}

	target, err := codec.ParseName(hostname)
	if err != nil {
		return nil
	}
	rdata, err := codec.EncodeName(target)
	if err != nil {
		return nil
	}

	return []codec.ResourceRecord{{
		Name:  name,
		Type:  codec.TypePTR,
		Class: codec.ClassIN,
		TTL:   defaultTTL,
		RData: rdata,
	}}
}

func addrIn(addrs []netip.Addr, target netip.Addr) bool {
	target = target.WithZone("")
	for _, a := range addrs {
		if a.WithZone("") == target {
			return true
		}
	}
	return false
}
