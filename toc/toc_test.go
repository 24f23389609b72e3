package toc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabidaudio/cdimage/device"
	"github.com/rabidaudio/cdimage/device/sim"
	"github.com/rabidaudio/cdimage/sector"
	"github.com/rabidaudio/cdimage/sink"
)

func rawTocTwoAudioTracks() []device.RawTocDescriptor {
	return []device.RawTocDescriptor{
		{Session: 1, ADR: 1, Control: 0, Point: 0xA0, PSec: 0x00},
		{Session: 1, ADR: 1, Control: 0, Point: 0x01, PMin: 0, PSec: 2, PFrame: 0},
		{Session: 1, ADR: 1, Control: 0, Point: 0x02, PMin: 0, PSec: 5, PFrame: 0},
		{Session: 1, ADR: 1, Control: 0, Point: 0xA2, PMin: 0, PSec: 10, PFrame: 0},
	}
}

func TestBuildFromRawClassifiesCDDA(t *testing.T) {
	drv := sim.New()
	drv.RawToc = rawTocTwoAudioTracks()

	plan, err := Build(drv, sector.NewFraming(sector.None), false)
	require.NoError(t, err)

	require.Len(t, plan.Tracks, 2)
	assert.Equal(t, sink.MediaCDDA, plan.MediaType)
	assert.Equal(t, 0, plan.Tracks[0].StartLBA)
	assert.Equal(t, 225, plan.Tracks[1].StartLBA)
	assert.Equal(t, plan.Tracks[1].StartLBA-1, plan.Tracks[0].EndLBA)
	assert.Equal(t, plan.LeadOutLBA-1, plan.Tracks[1].EndLBA)
}

func TestBuildFromRawClassifiesMixedCDPlus(t *testing.T) {
	raw := []device.RawTocDescriptor{
		{Session: 1, ADR: 1, Control: 0, Point: 0xA0, PSec: 0x00},
		{Session: 1, ADR: 1, Control: 0, Point: 0x01, PMin: 0, PSec: 2, PFrame: 0},
		{Session: 2, ADR: 1, Control: 4, Point: 0x02, PMin: 5, PSec: 0, PFrame: 0},
		{Session: 2, ADR: 1, Control: 0, Point: 0xA2, PMin: 5, PSec: 10, PFrame: 0},
	}
	drv := sim.New()
	drv.RawToc = raw
	drv.SectorData[int(raw[2].PMin)*4500-150] = append([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, make([]byte, sector.UserDataSize-16)...)

	plan, err := Build(drv, sector.NewFraming(sector.None), false)
	require.NoError(t, err)
	assert.Equal(t, sink.MediaCDPLUS, plan.MediaType)
	assert.Equal(t, sink.KindCdMode1, plan.Tracks[1].Kind)
}

func TestBuildFallsBackToSynthesizedTrackUnderForce(t *testing.T) {
	drv := sim.New()
	plan, err := Build(drv, sector.NewFraming(sector.None), true)
	require.NoError(t, err)
	require.Len(t, plan.Tracks, 1)
	assert.Equal(t, 0, plan.Tracks[0].StartLBA)
}

func TestBuildFailsWithoutForceWhenNoTocAvailable(t *testing.T) {
	drv := sim.New()
	_, err := Build(drv, sector.NewFraming(sector.None), false)
	assert.Error(t, err)
}

func processedTocMixedTwoSession() []device.ProcessedTocEntry {
	return []device.ProcessedTocEntry{
		{TrackNumber: 1, Control: 0, LBA: 0},
		{TrackNumber: 2, Control: 0, LBA: 24575},
		{TrackNumber: 3, Control: 4, LBA: 74850},
		{TrackNumber: 0xAA, Control: 0, LBA: 225000},
	}
}

func discInfoTwoSessions() []byte {
	b := make([]byte, 12)
	b[4] = 2 // sessions LSB
	return b
}

func sessionInfoFirstTrackOfLastSession(trackNo byte) []byte {
	b := make([]byte, 15)
	b[4] = 2       // session number
	b[7] = trackNo // point = first track number of last session
	return b
}

func TestBuildFromProcessedExcludesLeadOutAndUsesItsLBA(t *testing.T) {
	drv := sim.New()
	drv.ProcessedToc = processedTocMixedTwoSession()

	plan, err := Build(drv, sector.NewFraming(sector.None), false)
	require.NoError(t, err)

	require.Len(t, plan.Tracks, 3)
	for _, tr := range plan.Tracks {
		assert.NotEqual(t, 0xAA, tr.Sequence)
	}
	assert.Equal(t, 225000, plan.LeadOutLBA)
	assert.Equal(t, 224999, plan.Tracks[2].EndLBA)
}

func TestBuildFromProcessedRecoversSessionsFromSessionInfo(t *testing.T) {
	drv := sim.New()
	drv.ProcessedToc = processedTocMixedTwoSession()
	drv.DiscInfo = discInfoTwoSessions()
	drv.SessionInfo = sessionInfoFirstTrackOfLastSession(3)

	plan, err := Build(drv, sector.NewFraming(sector.None), false)
	require.NoError(t, err)

	require.Len(t, plan.Tracks, 3)
	assert.Equal(t, 1, plan.Tracks[0].Session)
	assert.Equal(t, 1, plan.Tracks[1].Session)
	assert.Equal(t, 2, plan.Tracks[2].Session)
}

func TestBuildFromProcessedStaysSingleSessionWithoutDiscInfo(t *testing.T) {
	drv := sim.New()
	drv.ProcessedToc = processedTocMixedTwoSession()

	plan, err := Build(drv, sector.NewFraming(sector.None), false)
	require.NoError(t, err)
	for _, tr := range plan.Tracks {
		assert.Equal(t, 1, tr.Session)
	}
}
