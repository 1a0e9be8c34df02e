package command

import (
	"fmt"
	"net/netip"
	"strings"
)

// Kind is the intent carried by a Command.
type Kind uint8

const (
	// Open becomes host-eligible by binding a socket.
	Open Kind = iota + 1
	// Connect tries to join the mesh at Command.Addr.
	Connect
	// Close leaves the session and releases the socket.
	Close
	// Debug dumps the endpoint state.
	Debug
)

func (k Kind) String() string {
	switch k {
	case Open:
		return "open"
	case Connect:
		return "connect"
	case Close:
		return "close"
	case Debug:
		return "debug"
	default:
		return "unknown"
	}
}

// Command is a user intent, independent of who issued it.
type Command struct {
	Kind Kind
	// Addr is the target of a Connect.
	Addr netip.Addr
}

func (c Command) String() string {
	if c.Kind == Connect {
		return fmt.Sprintf("connect %s", c.Addr)
	}
	return c.Kind.String()
}

// Parse reads a textual command: "open" (or "host"), "connect <ipv4>",
// "close" or "debug". Matching is case-insensitive.
func Parse(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, ErrUnknownCommand
	}

	switch fields[0] {
	case "open", "host":
		return Command{Kind: Open}, nil
	case "close":
		return Command{Kind: Close}, nil
	case "debug":
		return Command{Kind: Debug}, nil
	case "connect", "join":
		if len(fields) < 2 {
			return Command{}, ErrMissingAddress
		}
		addr, err := netip.ParseAddr(fields[1])
		if err != nil {
			return Command{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		addr = addr.Unmap()
		if !addr.Is4() {
			return Command{}, fmt.Errorf("%w: %s is not ipv4", ErrInvalidAddress, addr)
		}
		return Command{Kind: Connect, Addr: addr}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
}
