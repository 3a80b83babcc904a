package montagemodule

import (
	"os"
	"strings"

	"github.com/dhowden/tag"
)

type audioTags struct {
	Title  string
	Artist string
}

// readAudioTags reads ID3/MP4/FLAC style tags. Files without tags, which
// includes most WAV files, return an error the caller can ignore.
func readAudioTags(path string) (*audioTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	metadata, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}

	return &audioTags{
		Title:  strings.TrimSpace(metadata.Title()),
		Artist: strings.TrimSpace(metadata.Artist()),
	}, nil
}
