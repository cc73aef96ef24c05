// Package authenticity hashes canonical DigitalDNA bytes and verifies
// candidate records against a registered hash.
package authenticity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"clothdna/dna"
	"clothdna/types"
)

// Algorithm names a 256-bit digest.
type Algorithm string

// Supported digests.
const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// Policy selects which canonical form is hashed.
type Policy string

const (
	// PolicyContent hashes the record with timestampUtc blanked.
	// Re-extracting the same pixels under the same item id gives the same
	// hash.
	PolicyContent Policy = "content"

	// PolicyAudit hashes the full record. The hash changes with every
	// extraction because the timestamp is part of it.
	PolicyAudit Policy = "audit"
)

// ParseAlgorithm maps a configuration value to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case SHA256, BLAKE3:
		return a, nil
	case "":
		return SHA256, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", s)
	}
}

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyContent, PolicyAudit:
		return p, nil
	case "":
		return PolicyContent, nil
	default:
		return "", fmt.Errorf("unsupported hash policy %q", s)
	}
}

// ComputeHash returns the lowercase hex SHA-256 of data.
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verifier hashes and verifies records under one algorithm and policy.
type Verifier struct {
	algorithm Algorithm
	policy    Policy
}

// NewVerifier validates the algorithm and policy.
func NewVerifier(algorithm Algorithm, policy Policy) (*Verifier, error) {
	switch algorithm {
	case SHA256, BLAKE3:
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
	switch policy {
	case PolicyContent, PolicyAudit:
	default:
		return nil, fmt.Errorf("unsupported hash policy %q", policy)
	}
	return &Verifier{algorithm: algorithm, policy: policy}, nil
}

// Algorithm returns the digest in use.
func (v *Verifier) Algorithm() Algorithm { return v.algorithm }

// Policy returns the hash policy in use.
func (v *Verifier) Policy() Policy { return v.policy }

// ComputeHash digests data with the verifier's algorithm.
func (v *Verifier) ComputeHash(data []byte) string {
	if v.algorithm == BLAKE3 {
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
	return ComputeHash(data)
}

// Serialize returns the canonical bytes the policy hashes.
func (v *Verifier) Serialize(d types.DigitalDNA) ([]byte, error) {
	if v.policy == PolicyAudit {
		return dna.Canonical(d)
	}
	return dna.ContentCanonical(d)
}

// Hash serializes d and digests it.
func (v *Verifier) Hash(d types.DigitalDNA) (string, error) {
	b, err := v.Serialize(d)
	if err != nil {
		return "", err
	}
	return v.ComputeHash(b), nil
}

// Verify hashes candidate and compares it to expected. The comparison is
// exact and case-sensitive. A mismatch is reported in the result; err is
// non-nil only when candidate cannot be serialized.
func (v *Verifier) Verify(candidate types.DigitalDNA, expected string) (types.VerificationResult, error) {
	computed, err := v.Hash(candidate)
	if err != nil {
		return types.VerificationResult{ExpectedHash: expected}, err
	}
	return types.VerificationResult{
		IsAuthentic:  computed == expected,
		ComputedHash: computed,
		ExpectedHash: expected,
	}, nil
}

// NewRecord builds the publishable record for d. simulated may be nil.
func (v *Verifier) NewRecord(d types.DigitalDNA, hash string, simulated []float64) types.AuthenticityRecord {
	return types.AuthenticityRecord{
		ItemID:         d.ItemID,
		HashHex:        hash,
		TimestampUTC:   d.TimestampUTC,
		HashPolicy:     string(v.policy),
		HashAlgorithm:  string(v.algorithm),
		FeatureSummary: Summarize(d, simulated),
	}
}

// Summarize aggregates d into a FeatureSummary that does not expose the
// feature vector.
func Summarize(d types.DigitalDNA, simulated []float64) types.FeatureSummary {
	values := d.Features.Values()
	var sum float64
	for _, x := range values {
		sum += x
	}
	var mean float64
	if len(values) > 0 {
		mean = sum / float64(len(values))
	}

	s := types.FeatureSummary{
		TraditionalFeatureCount: types.TraditionalFeatureCount,
		FeatureValueCount:       len(values),
		FeatureValueMean:        mean,
		KeypointCount:           d.Features.KeypointCount,
		ImageSize:               d.ImageDimensions,
	}
	if len(simulated) > 0 {
		var simSum float64
		for _, x := range simulated {
			simSum += x
		}
		s.SimulatedFeatureCount = len(simulated)
		s.SimulatedFeatureMean = simSum / float64(len(simulated))
	}
	return s
}
