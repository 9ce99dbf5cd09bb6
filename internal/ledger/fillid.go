// Package ledger normalizes the four raw event streams into the canonical
// signed fill ledger and deduplicates wash trades. One pure normalizer per
// source keeps source-specific logic isolated; all rows share a
// deterministic fill id so re-ingestion is idempotent.
package ledger

import (
	"encoding/hex"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// FillID derives the canonical ledger key for a fill: the keccak256 hash of
// the source tag and the source-native event id. The same source event
// always hashes to the same id, which is what makes replace-on-conflict
// writes idempotent.
func FillID(source domain.FillSource, nativeID string) string {
	h := ethcrypto.Keccak256([]byte(string(source)), []byte(":"), []byte(nativeID))
	return "0x" + hex.EncodeToString(h)
}
