package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabidaudio/cdimage/device"
	"github.com/rabidaudio/cdimage/device/sim"
	"github.com/rabidaudio/cdimage/sector"
	"github.com/rabidaudio/cdimage/sink"
)

func TestProbePrefersHighestFidelityFraming(t *testing.T) {
	drv := sim.New()
	caps, err := Probe(drv, []sink.SectorTagKind{sink.TagSubchannelRawPW96, sink.TagSubchannelPackedQ16}, false, true)
	require.NoError(t, err)
	assert.Equal(t, sector.RawPW96, caps.Framing.Format)
	assert.Equal(t, 64, caps.MaxBlocksPerCommand)
}

func TestProbeDowngradesWhenSinkLacksRawSupport(t *testing.T) {
	drv := sim.New()
	caps, err := Probe(drv, []sink.SectorTagKind{sink.TagSubchannelPackedQ16}, false, true)
	require.NoError(t, err)
	assert.Equal(t, sector.PackedQ16, caps.Framing.Format)
}

func TestProbeFailsWhenSinkSupportsNothingAndNotForced(t *testing.T) {
	drv := sim.New()
	_, err := Probe(drv, nil, false, true)
	assert.Error(t, err)
}

func TestProbeFallsBackToNoneUnderForce(t *testing.T) {
	drv := sim.New()
	caps, err := Probe(drv, nil, true, true)
	require.NoError(t, err)
	assert.Equal(t, sector.None, caps.Framing.Format)
}

func TestProbeHalvesBurstSizeUntilDriveAccepts(t *testing.T) {
	drv := sim.New()
	drv.MaxBlocksAccepted = 8

	caps, err := Probe(drv, []sink.SectorTagKind{sink.TagSubchannelRawPW96}, false, true)
	require.NoError(t, err)
	assert.Equal(t, 8, caps.MaxBlocksPerCommand)
}

func TestProbeFailsWhenDriveRejectsEverySubchannel(t *testing.T) {
	drv := sim.New()
	drv.SupportedSubchannel = map[device.SubchannelRequest]bool{}
	_, err := Probe(drv, []sink.SectorTagKind{sink.TagSubchannelRawPW96}, false, true)
	assert.Error(t, err)
}

func TestProbeStaysAtNoneWhenDumpRawNotRequested(t *testing.T) {
	drv := sim.New()
	caps, err := Probe(drv, []sink.SectorTagKind{sink.TagSubchannelRawPW96, sink.TagSubchannelPackedQ16}, false, false)
	require.NoError(t, err)
	assert.Equal(t, sector.None, caps.Framing.Format)
}
