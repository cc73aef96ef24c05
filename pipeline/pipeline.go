// Package pipeline registers item photographs and verifies candidates
// against registered hashes.
//
// A Processor chains preprocessing, feature extraction, DNA assembly and
// hashing. It owns the item repository; the core stages it calls are pure and
// keep no state between items, so one Processor may serve many goroutines.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"clothdna/authenticity"
	"clothdna/dna"
	"clothdna/features"
	"clothdna/imageprocessor"
	"clothdna/logging"
	"clothdna/types"
)

var (
	// ErrUnknownItem is returned when an item id is not in the repository.
	ErrUnknownItem = errors.New("unknown item")

	// ErrNoItemID is returned by Verify when no item id is given.
	ErrNoItemID = errors.New("item id required")
)

// Repository stores registered items by id.
type Repository interface {
	Get(itemID string) (types.StoredItem, bool, error)
	Put(item types.StoredItem) error
}

// DocumentWriter persists the JSON documents of a registration.
type DocumentWriter interface {
	Write(result types.ProcessingResult) error
}

// Options configures a Processor. Zero values select SHA-256, the content
// policy, no documents, no simulated features and the wall clock.
type Options struct {
	Algorithm authenticity.Algorithm
	Policy    authenticity.Policy
	Documents DocumentWriter
	Simulated *features.SimulatedSource
	Now       func() time.Time
}

// Processor runs the registration and verification pipeline.
type Processor struct {
	preprocessor *imageprocessor.Preprocessor
	extractor    *features.Extractor
	verifier     *authenticity.Verifier
	repo         Repository
	docs         DocumentWriter
	simulated    *features.SimulatedSource
	now          func() time.Time
}

// New initialises the image pipeline and returns a Processor over repo.
func New(repo Repository, opts Options) (*Processor, error) {
	if repo == nil {
		return nil, errors.New("pipeline: nil repository")
	}
	if opts.Algorithm == "" {
		opts.Algorithm = authenticity.SHA256
	}
	if opts.Policy == "" {
		opts.Policy = authenticity.PolicyContent
	}
	verifier, err := authenticity.NewVerifier(opts.Algorithm, opts.Policy)
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	imageprocessor.Init()

	return &Processor{
		preprocessor: imageprocessor.NewPreprocessor(),
		extractor:    features.NewExtractor(),
		verifier:     verifier,
		repo:         repo,
		docs:         opts.Documents,
		simulated:    opts.Simulated,
		now:          opts.Now,
	}, nil
}

// Verifier returns the hash verifier in use.
func (p *Processor) Verifier() *authenticity.Verifier { return p.verifier }

// CreateDNA preprocesses src, extracts its features and builds a DigitalDNA.
// An empty itemID is generated from the current time.
func (p *Processor) CreateDNA(src imageprocessor.Source, itemID string) (types.DigitalDNA, error) {
	return p.createDNA(src, itemID, p.now())
}

func (p *Processor) createDNA(src imageprocessor.Source, itemID string, at time.Time) (types.DigitalDNA, error) {
	buf, err := p.preprocessor.Preprocess(src)
	if err != nil {
		return types.DigitalDNA{}, err
	}
	record, err := p.extractor.Extract(buf)
	if err != nil {
		return types.DigitalDNA{}, fmt.Errorf("extract features from %s: %w", src.Name(), err)
	}
	return dna.Build(buf.Dimensions(), record, itemID, at)
}

// Register creates, hashes and stores the DNA of src.
func (p *Processor) Register(src imageprocessor.Source, itemID string) (types.ProcessingResult, error) {
	return p.RegisterRun(src, itemID, "")
}

// RegisterRun is Register with the item tagged by a batch run id.
func (p *Processor) RegisterRun(src imageprocessor.Source, itemID, runID string) (types.ProcessingResult, error) {
	result, err := p.register(src, itemID, runID)
	logging.LogItemProcessed(result.DNA.ItemID, src.Name(), err)
	return result, err
}

func (p *Processor) register(src imageprocessor.Source, itemID, runID string) (types.ProcessingResult, error) {
	d, err := p.CreateDNA(src, itemID)
	if err != nil {
		return types.ProcessingResult{}, err
	}
	hash, err := p.verifier.Hash(d)
	if err != nil {
		return types.ProcessingResult{}, fmt.Errorf("hash %s: %w", d.ItemID, err)
	}

	var simulated []float64
	if p.simulated != nil {
		simulated = p.simulated.Features()
	}
	result := types.ProcessingResult{
		DNA:    d,
		Hash:   hash,
		Record: p.verifier.NewRecord(d, hash, simulated),
	}

	// A failed document write must leave nothing in the repository.
	if p.docs != nil {
		if err := p.docs.Write(result); err != nil {
			return result, fmt.Errorf("write documents for %s: %w", d.ItemID, err)
		}
	}
	err = p.repo.Put(types.StoredItem{
		DNA:        d,
		Record:     result.Record,
		SourcePath: src.Name(),
		RunID:      runID,
	})
	if err != nil {
		return result, fmt.Errorf("store %s: %w", d.ItemID, err)
	}
	return result, nil
}

// Verify extracts a fresh DNA for itemID from src and compares its hash with
// expected, without consulting the repository. Under the audit policy the
// fresh DNA carries a new timestamp, so only VerifyItem can succeed.
func (p *Processor) Verify(src imageprocessor.Source, itemID, expected string) (types.VerificationResult, error) {
	if itemID == "" {
		return types.VerificationResult{ExpectedHash: expected}, ErrNoItemID
	}
	d, err := p.CreateDNA(src, itemID)
	if err != nil {
		return types.VerificationResult{ExpectedHash: expected}, err
	}
	return p.verifier.Verify(d, expected)
}

// VerifyItem checks src against the registered item. The candidate is bound
// to the stored id and timestamp, and hashed with the algorithm and policy
// recorded at registration. Nothing is written.
func (p *Processor) VerifyItem(src imageprocessor.Source, itemID string) (types.VerificationResult, error) {
	stored, err := p.Lookup(itemID)
	if err != nil {
		return types.VerificationResult{}, err
	}
	verifier, err := recordVerifier(stored.Record)
	if err != nil {
		return types.VerificationResult{ExpectedHash: stored.Record.HashHex}, err
	}

	at, err := dna.ParseTimestamp(stored.DNA.TimestampUTC)
	if err != nil {
		return types.VerificationResult{ExpectedHash: stored.Record.HashHex}, err
	}
	d, err := p.createDNA(src, stored.DNA.ItemID, at)
	if err != nil {
		return types.VerificationResult{ExpectedHash: stored.Record.HashHex}, err
	}

	result, err := verifier.Verify(d, stored.Record.HashHex)
	if err == nil {
		logging.DebugLog("item verified", "item_id", itemID, "authentic", result.IsAuthentic)
	}
	return result, err
}

// CheckIntegrity re-hashes the stored DNA of itemID and compares it with the
// stored hash, detecting repository corruption.
func (p *Processor) CheckIntegrity(itemID string) (types.VerificationResult, error) {
	stored, err := p.Lookup(itemID)
	if err != nil {
		return types.VerificationResult{}, err
	}
	verifier, err := recordVerifier(stored.Record)
	if err != nil {
		return types.VerificationResult{ExpectedHash: stored.Record.HashHex}, err
	}
	return verifier.Verify(stored.DNA, stored.Record.HashHex)
}

// Lookup returns the stored item or ErrUnknownItem.
func (p *Processor) Lookup(itemID string) (types.StoredItem, error) {
	stored, ok, err := p.repo.Get(itemID)
	if err != nil {
		return types.StoredItem{}, err
	}
	if !ok {
		return types.StoredItem{}, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	return stored, nil
}

func recordVerifier(rec types.AuthenticityRecord) (*authenticity.Verifier, error) {
	alg, err := authenticity.ParseAlgorithm(rec.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	policy, err := authenticity.ParsePolicy(rec.HashPolicy)
	if err != nil {
		return nil, err
	}
	return authenticity.NewVerifier(alg, policy)
}
