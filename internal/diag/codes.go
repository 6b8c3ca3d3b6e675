package diag

import (
	"fmt"
)

// Code identifies one diagnostic kind. The numeric blocks mirror the
// pipeline: 4000-4999 belongs to the ownership/borrow phase.
type Code uint16

const (
	// UnknownCode is the fallback for unmapped diagnostics.
	UnknownCode Code = 0

	// Ownership / borrow phase.
	OwnInfo                Code = 4000
	OwnUseAfterMove        Code = 4001
	OwnConflictingBorrow   Code = 4002
	OwnBorrowOutlivesOwner Code = 4003
	OwnLifetimeMismatch    Code = 4004
	OwnUnelidableLifetime  Code = 4005
	// OwnUnknownIdentifier is defensive: the type checker is expected to
	// have rejected unresolved names before the verifier runs.
	OwnUnknownIdentifier Code = 4006
	OwnInvalidFunction   Code = 4007
	OwnInteriorBypass    Code = 4010
)

var codeDescription = map[Code]string{
	UnknownCode:            "unknown diagnostic",
	OwnInfo:                "ownership info",
	OwnUseAfterMove:        "use of moved value",
	OwnConflictingBorrow:   "conflicting borrow",
	OwnBorrowOutlivesOwner: "borrow outlives owner",
	OwnLifetimeMismatch:    "lifetime mismatch",
	OwnUnelidableLifetime:  "cannot elide lifetime",
	OwnUnknownIdentifier:   "unknown identifier",
	OwnInvalidFunction:     "function analysis aborted",
	OwnInteriorBypass:      "interior mutability bypasses static checks",
}

// ID returns the stable short identifier, e.g. "OWN4002".
func (c Code) ID() string {
	if ic := int(c); ic >= 4000 && ic < 5000 {
		return fmt.Sprintf("OWN%04d", ic)
	}
	return "E0000"
}

// Title returns the human readable description of the code.
func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
