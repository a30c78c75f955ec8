package iso7816

import (
	"fmt"
)

// The Client is the high-level driver over the physical connection.
// It absorbs the ISO 7816-3 transport behaviors that T=0 cards expose
// to the application layer:
//
//  1. "61 XX" (response available): the card holds XX bytes; the
//     client sends GET RESPONSE to retrieve them.
//  2. "6C XX" (wrong length): the card suggests Le = XX; the client
//     re-sends the original command with the corrected length.
//
// Send returns a Trace of all atomic transactions it took to fulfill
// the logical request.

// Transmitter abstracts the physical card connection.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the high-level communication with the card.
type Client struct {
	Card Transmitter
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card}
}

// Send transmits a command and handles the transport logic (61xx, 6Cxx).
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return nil, err
	}

	trace := Trace{{Command: cmd, Response: resp}}

	sw1 := resp.Status.SW1()
	sw2 := resp.Status.SW2()

	// 61XX: more data available, issue GET RESPONSE on the same channel.
	if sw1 == 0x61 {
		respCls := cmd.Class
		respCls.IsChained = false

		ins, _ := NewInstruction(INS_GET_RESPONSE)
		getRespCmd := NewCommandAPDU(respCls, ins, 0x00, 0x00, nil, int(sw2))

		subTrace, err := c.Send(getRespCmd)
		if err != nil {
			return trace, err
		}
		return append(trace, subTrace...), nil
	}

	// 6CXX: wrong length, re-issue the command with the corrected Le.
	if sw1 == 0x6C {
		newCmd := *cmd
		newCmd.Ne = int(sw2)

		subTrace, err := c.Send(&newCmd)
		if err != nil {
			return trace, err
		}
		return append(trace, subTrace...), nil
	}

	return trace, nil
}
