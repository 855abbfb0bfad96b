/*
NAME
	helpers.go

DESCRIPTION
  helpers.go provides functionality for editing and reading byte slices
	directly in order to update PSI sections after encoding.

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

// SyntaxSecLenFrom takes a byte slice representation of a psi and extracts
// its syntax section length.
func SyntaxSecLenFrom(p []byte) int {
	return int(p[SyntaxSecLenIdx1]&SyntaxSecLenMask1)<<8 | int(p[SyntaxSecLenIdx2])
}

// AddPadding pads d with stuffing bytes (0xFF) to a full MPEG-TS payload
// size, for addition to the final TS packet of a PSI section.
func AddPadding(d []byte) []byte {
	t := make([]byte, PacketSize)
	copy(t, d)
	padding := t[len(d):]
	for i := range padding {
		padding[i] = 0xff
	}
	return t
}
