package resume

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabidaudio/cdimage/extents"
	"github.com/rabidaudio/cdimage/sink"
	"github.com/rabidaudio/cdimage/toc"
)

type fakeSidecarBuilder struct {
	built bool
	err   error
}

func (f *fakeSidecarBuilder) Build(imagePath string) (sink.CicmMetadata, error) {
	f.built = true
	if f.err != nil {
		return sink.CicmMetadata{}, f.err
	}
	return sink.CicmMetadata{Payload: []byte(imagePath)}, nil
}

func tracksFixture() []toc.Track {
	return []toc.Track{
		{Sequence: 1, Session: 1, Kind: sink.KindAudio, StartLBA: 0, EndLBA: 99, UserDataSize: 2352},
		{Sequence: 2, Session: 1, Kind: sink.KindAudio, StartLBA: 100, EndLBA: 199, UserDataSize: 2352},
	}
}

func TestFinalizeWritesTracksTagsAndClosesImage(t *testing.T) {
	img := sink.NewMemImage()
	sidecar := &fakeSidecarBuilder{}

	summary, err := Finalize(FinalizeInput{
		Image:     img,
		ImagePath: "disc.bin",
		Tracks:    tracksFixture(),
		MediaTags: MediaTags{sink.TagFullTOC: []byte{1, 2, 3}},
		MCN:       "1234567890123",
		Isrcs:     Isrcs{1: "US-ABC-26-00001"},
		Extents:   extents.New(),
		SidecarBuilder: sidecar,
		Started:   time.Now(),
	})
	require.NoError(t, err)

	assert.True(t, img.Closed)
	require.Len(t, img.Tracks, 2)
	assert.Equal(t, "US-ABC-26-00001", img.Tracks[0].ISRC)
	assert.Equal(t, []byte{1, 2, 3}, img.MediaTagsWritten[sink.TagFullTOC])
	assert.Contains(t, string(img.MediaTagsWritten[sink.TagMCN]), "1234567890123")
	assert.True(t, sidecar.built)
	assert.True(t, summary.SidecarBuilt)
}

func TestFinalizeSkipsSidecarWhenNoMetadataSet(t *testing.T) {
	img := sink.NewMemImage()
	sidecar := &fakeSidecarBuilder{}

	summary, err := Finalize(FinalizeInput{
		Image:          img,
		Tracks:         tracksFixture(),
		Extents:        extents.New(),
		SidecarBuilder: sidecar,
		NoMetadata:     true,
		Started:        time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, sidecar.built)
	assert.False(t, summary.SidecarBuilt)
}

func TestFinalizeFailsOnUnsupportedMediaTagWithoutForce(t *testing.T) {
	img := sink.NewMemImage()
	img.AllowedMediaTags = nil

	_, err := Finalize(FinalizeInput{
		Image:     img,
		Tracks:    tracksFixture(),
		MediaTags: MediaTags{sink.TagFullTOC: []byte{1}},
		Extents:   extents.New(),
		Started:   time.Now(),
	})
	assert.Error(t, err)
}

func TestFinalizeIgnoresUnsupportedMediaTagUnderForce(t *testing.T) {
	img := sink.NewMemImage()
	img.AllowedMediaTags = nil

	_, err := Finalize(FinalizeInput{
		Image:     img,
		Tracks:    tracksFixture(),
		MediaTags: MediaTags{sink.TagFullTOC: []byte{1}},
		Extents:   extents.New(),
		Force:     true,
		Started:   time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, img.Closed)
}

func TestFinalizeAttachesHardwareEntryExtentsSnapshot(t *testing.T) {
	img := sink.NewMemImage()
	rec := New()
	entry := rec.ReconcileEntry("Acme", "CD-2000", "SN1", "linux")

	ext := extents.New()
	ext.InsertRun(0, 200)

	_, err := Finalize(FinalizeInput{
		Image:         img,
		Tracks:        tracksFixture(),
		Extents:       ext,
		HardwareEntry: entry,
		AllTries:      rec.Tries,
		Started:       time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, entry.Extents, 1)
	assert.Equal(t, 0, entry.Extents[0].Start)
	assert.Equal(t, 200, entry.Extents[0].End)
	require.Len(t, img.DumpHardwareSet, 1)
	assert.Equal(t, "Acme", img.DumpHardwareSet[0].Manufacturer)
}
