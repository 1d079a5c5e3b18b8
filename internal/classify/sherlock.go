package classify

import (
	"strings"

	"github.com/flowledger/ledgerd/internal/model"
)

// Filename hints. Each matched hint biases the verdict by one point.
var (
	streamHints = []string{"sales", "orders", "transactions", "ledger", "expenses", "purchases", "payments", "daily", "revenue"}
	stateHints  = []string{"menu", "items", "catalog", "catalogue", "inventory", "products", "pricelist", "price list", "stock", "master"}
)

// Column signals outweigh filename hints: files get renamed, columns don't.
const columnSignalWeight = 3

// maxKindConfidence caps the reported confidence; the verdict is a weighted
// guess and is never reported as certainty.
const maxKindConfidence = 0.95

// KindVerdict is Sherlock's determination with its transparent confidence.
type KindVerdict struct {
	Kind       model.FileKind
	Confidence float64
}

// DetectKind decides whether a file is a transactional STREAM or a snapshot
// STATE from filename hints and column signals. Strictly deterministic; the
// oracle is reserved for header ambiguity to bound latency and cost.
func DetectKind(sourceName string, mapping model.ColumnMapping) KindVerdict {
	nameStream, nameState := filenameScores(sourceName)

	// Contradictory or silent filenames fall back to column signal alone.
	if nameStream == nameState {
		nameStream, nameState = 0, 0
	}

	colStream, colState := columnScores(mapping)
	streamScore := nameStream + colStream
	stateScore := nameState + colState

	kind := model.FileKindStream
	margin := streamScore - stateScore
	if stateScore > streamScore {
		kind = model.FileKindState
		margin = stateScore - streamScore
	}

	confidence := 0.5 + 0.1*float64(margin)
	if confidence > maxKindConfidence {
		confidence = maxKindConfidence
	}

	return KindVerdict{Kind: kind, Confidence: confidence}
}

func filenameScores(sourceName string) (stream, state int) {
	name := strings.ToLower(sourceName)
	for _, hint := range streamHints {
		if strings.Contains(name, hint) {
			stream++
		}
	}
	for _, hint := range stateHints {
		if strings.Contains(name, hint) {
			state++
		}
	}
	return stream, state
}

func columnScores(mapping model.ColumnMapping) (stream, state int) {
	hasTimestamp := mapping.Has(model.FieldTimestamp)
	hasAmount := mapping.Has(model.FieldAmount)
	hasEntity := mapping.Has(model.FieldEntity)

	// A recurring transaction date column is the STREAM tell; a priced
	// entity list with no date column is the STATE tell.
	if hasTimestamp && hasAmount {
		stream += columnSignalWeight
	}
	if hasEntity && hasAmount && !hasTimestamp {
		state += columnSignalWeight
	}
	return stream, state
}
