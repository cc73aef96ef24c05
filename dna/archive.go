package dna

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"clothdna/types"
)

// archiveEncMode uses Core Deterministic Encoding so identical records give
// identical blobs.
var archiveEncMode cbor.EncMode

var archiveDecMode cbor.DecMode

func init() {
	var err error
	archiveEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("dna: CBOR encoder initialization failed: " + err.Error())
	}
	archiveDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("dna: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeArchive renders d as a compact CBOR blob for repository storage.
// The archive form is never hashed.
func EncodeArchive(d types.DigitalDNA) ([]byte, error) {
	b, err := archiveEncMode.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("dna: encode archive: %w", err)
	}
	return b, nil
}

// DecodeArchive restores a DigitalDNA from EncodeArchive output.
func DecodeArchive(data []byte) (types.DigitalDNA, error) {
	var d types.DigitalDNA
	if err := archiveDecMode.Unmarshal(data, &d); err != nil {
		return types.DigitalDNA{}, fmt.Errorf("%w: archive: %v", ErrMalformed, err)
	}
	return d, nil
}
