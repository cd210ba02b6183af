package parser

import (
	"testing"

	"github.com/mfte-go/mfte/internal/fixtures"
	"github.com/stretchr/testify/assert"
)

func TestDetectArtifact(t *testing.T) {
	usn := fixtures.Journal(fixtures.UsnV2(0, 0x100, 12, 11, "a.txt", 0x100))
	sds := fixtures.SDSEntry(1, 0x100, 0,
		fixtures.SecurityDescriptor(fixtures.Sid(5, 18), nil, nil, nil))

	cases := []struct {
		name string
		data []byte
		kind ArtifactKind
	}{
		{"mft", fixtures.MFT(fixtures.File(0, 1, 5, 5, "$MFT", nil)), ArtifactMFT},
		{"boot", fixtures.DefaultBoot().Bytes(), ArtifactBoot},
		{"indx", fixtures.IndxBlock(0, 4096), ArtifactI30},
		{"usn", usn, ArtifactUsnJournal},
		{"sparse usn", append(make([]byte, 0x1000), usn...), ArtifactUsnJournal},
		{"sds", sds, ArtifactSDS},
	}

	for _, c := range cases {
		kind, err := DetectArtifact(c.data)
		assert.NoError(t, err, c.name)
		assert.Equal(t, c.kind, kind, c.name)
	}
}

func TestDetectArtifactErrors(t *testing.T) {
	_, err := DetectArtifact(nil)
	assert.ErrorIs(t, err, EmptyBufferError)

	_, err = DetectArtifact([]byte("hello world, this is not NTFS"))
	assert.ErrorIs(t, err, SignatureMismatchError)

	// All zero is not a journal.
	_, err = DetectArtifact(make([]byte, 4096))
	assert.ErrorIs(t, err, SignatureMismatchError)

	// Nor is an MFT whose first slot is empty.
	_, err = DetectArtifact(fixtures.ChainMFT())
	assert.ErrorIs(t, err, SignatureMismatchError)

	// A journal record with an unknown major version.
	_, err = DetectArtifact(fixtures.UsnHeader(80, 9))
	assert.ErrorIs(t, err, SignatureMismatchError)
}

func TestArtifactKindNames(t *testing.T) {
	for _, kind := range []ArtifactKind{ArtifactMFT, ArtifactUsnJournal,
		ArtifactBoot, ArtifactSDS, ArtifactI30} {
		parsed, err := ParseArtifactKind(kind.String())
		assert.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := ParseArtifactKind("unknown")
	assert.Error(t, err)

	text, _ := ArtifactUsnJournal.MarshalText()
	assert.Equal(t, "usn", string(text))
	assert.Equal(t, "ArtifactKind(42)", ArtifactKind(42).String())
}
