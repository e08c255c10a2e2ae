package services

import (
	"strconv"

	"github.com/google/uuid"
)

// passageNamespace scopes content-derived passage ids.
var passageNamespace = uuid.MustParse("6f1c2b1e-8d4a-5c37-9b0e-3a5d7e2f4c61")

// stablePassageID derives a deterministic UUIDv5 from the passage's source,
// position in the run and text. Re-ingesting unchanged content yields the
// same ids.
func stablePassageID(sourceID string, sequenceIndex int, text string) string {
	name := sourceID + "\x00" + strconv.Itoa(sequenceIndex) + "\x00" + text
	return uuid.NewSHA1(passageNamespace, []byte(name)).String()
}
