// Package util contains misc internal utilities.
package util

import (
	"strconv"
	"strings"
)

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// GetBit returns the value of a given bit in a byte
func GetBit(b byte, bitIndex uint) bool {
	return b&(1<<bitIndex) != 0
}

// SetBit sets the bit at bitIndex of b to on, returning the new byte
func SetBit(b byte, bitIndex uint, on bool) byte {
	if on {
		return b | (1 << bitIndex)
	}
	return b &^ (1 << bitIndex)
}

// ChannelMask converts a list of channels on an 8-channel device to a byte
// with bit n set for channel n.  Channels wrap modulo 8.
func ChannelMask(channels []int) byte {
	var b byte
	for _, ch := range channels {
		b = SetBit(b, uint(ch&0b0111), true)
	}
	return b
}

// MaskChannels is the inverse of ChannelMask, in ascending order
func MaskChannels(b byte) []int {
	out := []int{}
	for i := uint(0); i < 8; i++ {
		if GetBit(b, i) {
			out = append(out, int(i))
		}
	}
	return out
}
