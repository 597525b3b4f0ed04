package media

import (
	"strings"
	"time"
)

// ContentTypeWebM is the fixed content type of every recording artifact.
const ContentTypeWebM = "video/webm"

const keyPrefix = "consent-recording-"

// Object-store keys avoid ':' and '.' from the timestamp portion.
var keySanitizer = strings.NewReplacer(":", "-", ".", "-")

// Artifact is the single finalized recording object handed to the sink.
type Artifact struct {
	Key         string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// NewArtifact builds the immutable upload artifact from finalized bytes and
// the finalize timestamp.
func NewArtifact(data []byte, finalizedAt time.Time) Artifact {
	return Artifact{
		Key:         ArtifactKey(finalizedAt),
		ContentType: ContentTypeWebM,
		Data:        data,
		CreatedAt:   finalizedAt,
	}
}

// ArtifactKey derives the sink key from a finalize timestamp, e.g.
// consent-recording-2026-08-31T12-04-05-000Z.webm.
func ArtifactKey(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return keyPrefix + keySanitizer.Replace(stamp) + ".webm"
}
