// Package qrencode renders a signed PSBT's JSON envelope as one or more
// QR codes, splitting the payload when it exceeds what a single code
// of the caller's chosen maximum version can hold.
//
// Grounded on path_wallet_qr.go's use of github.com/skip2/go-qrcode
// (qrcode.New / qrcode.Encode at qrcode.Medium), generalized from a
// single fixed-size PNG response to the multi-frame split the spec's
// QR-encoder collaborator calls for.
package qrencode

import (
	"fmt"
	"image"

	"github.com/skip2/go-qrcode"

	"github.com/coldwallet/psbtsign/sigerr"
)

// capacityByVersion is the approximate byte capacity of a QR code at
// error-correction level Medium for alphanumeric/byte-mode payloads,
// indexed by version (1..40). Only the versions this package actually
// offers callers are listed; see versionCapacity.
var capacityByVersion = map[int]int{
	1:  14,
	5:  84,
	10: 213,
	15: 412,
	20: 666,
	25: 997,
	30: 1370,
	40: 2331,
}

// Split breaks payload into chunks no larger than maxVersion's
// estimated capacity and renders one QR image per chunk, in order.
// Each chunk is prefixed with a "i/n:" frame header so a reader can
// reassemble the original payload regardless of delivery order.
func Split(payload []byte, maxVersion int) ([]image.Image, error) {
	capacity := versionCapacity(maxVersion)
	if capacity <= 0 {
		return nil, sigerr.InputValidation("invalid qr max version")
	}

	chunks := chunkPayload(payload, capacity)
	images := make([]image.Image, 0, len(chunks))
	for i, chunk := range chunks {
		framed := fmt.Sprintf("%d/%d:%s", i+1, len(chunks), chunk)
		qr, err := qrcode.New(framed, qrcode.Medium)
		if err != nil {
			return nil, sigerr.EncodingFailure("build qr code", err)
		}
		images = append(images, qr.Image(256))
	}
	return images, nil
}

func versionCapacity(maxVersion int) int {
	best := 0
	for v, cap := range capacityByVersion {
		if v <= maxVersion && cap > best {
			best = cap
		}
	}
	return best
}

func chunkPayload(payload []byte, capacity int) []string {
	// frame headers ("i/n:") cost a handful of bytes; reserve some
	// slack rather than computing the exact digit width per chunk.
	const headerSlack = 8
	size := capacity - headerSlack
	if size <= 0 {
		size = capacity
	}

	var chunks []string
	for i := 0; i < len(payload); i += size {
		end := i + size
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, string(payload[i:end]))
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}
