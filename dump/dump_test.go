package dump

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabidaudio/cdimage/device/sim"
	"github.com/rabidaudio/cdimage/sector"
	"github.com/rabidaudio/cdimage/sink"
	"github.com/rabidaudio/cdimage/toc"
)

func singleTrackPlan(end int) toc.Plan {
	return toc.Plan{
		Tracks:     []toc.Track{{Sequence: 1, StartLBA: 0, EndLBA: end, Kind: sink.KindAudio}},
		LeadOutLBA: end + 1,
		MediaType:  sink.MediaCDDA,
	}
}

func TestRunWritesEveryGoodSector(t *testing.T) {
	drv := sim.New()
	for lba := 0; lba <= 9; lba++ {
		drv.PutSector(lba, make([]byte, sector.UserDataSize))
	}
	img := sink.NewMemImage()
	framing := sector.NewFraming(sector.None)

	res, err := Run(context.Background(), drv, framing, singleTrackPlan(9), 0, img,
		Config{MaxBlocksPerCommand: 4, SkipBlocks: 1}, nil, Callbacks{}, nil, nil)
	require.NoError(t, err)
	assert.Len(t, img.UserData, 10)
	assert.Equal(t, 0, res.BadBlocks.Len())
	assert.Equal(t, 10, res.Extents.Total())
}

func TestRunZeroFillsAndRecordsBadBlocksOnFailure(t *testing.T) {
	drv := sim.New()
	for lba := 0; lba <= 9; lba++ {
		drv.PutSector(lba, make([]byte, sector.UserDataSize))
	}
	drv.Fail(3, sim.FailureRule{Attempts: -1})
	img := sink.NewMemImage()
	framing := sector.NewFraming(sector.None)

	res, err := Run(context.Background(), drv, framing, singleTrackPlan(9), 0, img,
		Config{MaxBlocksPerCommand: 1, SkipBlocks: 1}, nil, Callbacks{}, nil, nil)
	require.NoError(t, err)
	assert.True(t, res.BadBlocks.Contains(3))
	assert.True(t, res.NewTrim)
	assert.False(t, res.Extents.Contains(3))
}

func TestRunStopsOnErrorWhenConfigured(t *testing.T) {
	drv := sim.New()
	drv.Fail(0, sim.FailureRule{Attempts: -1})
	img := sink.NewMemImage()
	framing := sector.NewFraming(sector.None)

	_, err := Run(context.Background(), drv, framing, singleTrackPlan(4), 0, img,
		Config{MaxBlocksPerCommand: 1, SkipBlocks: 1, StopOnError: true}, nil, Callbacks{}, nil, nil)
	assert.Error(t, err)
}

func TestRunHonorsCancellation(t *testing.T) {
	drv := sim.New()
	img := sink.NewMemImage()
	framing := sector.NewFraming(sector.None)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, drv, framing, singleTrackPlan(99), 0, img,
		Config{MaxBlocksPerCommand: 1, SkipBlocks: 1}, nil, Callbacks{}, nil, nil)
	require.NoError(t, err)
	assert.True(t, res.Aborted)
}

func TestRunInvokesOnBlockWrittenCallback(t *testing.T) {
	drv := sim.New()
	drv.PutSector(0, make([]byte, sector.UserDataSize))
	img := sink.NewMemImage()
	framing := sector.NewFraming(sector.None)

	var advanced int
	_, err := Run(context.Background(), drv, framing, singleTrackPlan(0), 0, img,
		Config{MaxBlocksPerCommand: 1, SkipBlocks: 1},
		nil, Callbacks{OnBlockWritten: func(next int) { advanced = next }}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced)
}

func TestSpeedMiBsIsZeroForNonPositiveDuration(t *testing.T) {
	assert.Equal(t, 0.0, speedMiBs(2352, 64, 0))
	assert.Greater(t, speedMiBs(2352, 64, time.Millisecond), 0.0)
}
