package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

var colorTag = regexp.MustCompile(`\[#[0-9a-fA-F]{6}\]`)

// RGBToBGR swaps the red and blue pairs of a six digit hex colour.
func RGBToBGR(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return hex
	}
	return hex[4:6] + hex[2:4] + hex[0:2]
}

// HexToDec converts a "#rrggbb" colour to the integer the client expects.
// With bgr set the channels are reordered before conversion. Malformed input
// converts to 0.
func HexToDec(hex string, bgr bool) uint32 {
	hex = strings.TrimPrefix(hex, "#")
	if bgr {
		hex = RGBToBGR(hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// FormatHex rewrites "[#rrggbb]" colour tags into the client's
// "<color:BBGGRR>" markup. Text without tags is returned unchanged.
func FormatHex(input string) string {
	return colorTag.ReplaceAllStringFunc(input, func(tag string) string {
		hex := strings.ToUpper(tag[2 : len(tag)-1])
		return "<color:" + RGBToBGR(hex) + ">"
	})
}
