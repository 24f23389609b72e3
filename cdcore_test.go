package cdcore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabidaudio/cdimage/device"
	"github.com/rabidaudio/cdimage/device/sim"
	"github.com/rabidaudio/cdimage/sector"
	"github.com/rabidaudio/cdimage/sink"
)

func singleAudioTrackRawToc() []device.RawTocDescriptor {
	return []device.RawTocDescriptor{
		{Session: 1, ADR: 1, Control: 0, Point: 0xA0, PSec: 1},
		{Session: 1, ADR: 1, Control: 0, Point: 0x01, PMin: 0, PSec: 2, PFrame: 0},
		{Session: 1, ADR: 1, Control: 0, Point: 0xA2, PMin: 0, PSec: 2, PFrame: 10},
	}
}

func baseConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		OutputPath: filepath.Join(dir, "disc.bin"),
		ResumePath: filepath.Join(dir, "resume.xml"),
		SkipBlocks: 4,
	}
}

func TestDumpSingleTrackCleanRead(t *testing.T) {
	drv := sim.New()
	drv.RawToc = singleAudioTrackRawToc()
	for lba := 0; lba < 10; lba++ {
		drv.PutSector(lba, make([]byte, sector.UserDataSize))
	}
	img := sink.NewMemImage()

	summary, err := Dump(context.Background(), baseConfig(t), drv, img, nil, nil, Logs{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.BadBlockCount)
	assert.Len(t, img.UserData, 10)
	require.Len(t, img.Tracks, 1)
	assert.True(t, img.Closed)
}

func TestDumpRecoversTransientErrorViaTrimPass(t *testing.T) {
	drv := sim.New()
	drv.RawToc = singleAudioTrackRawToc()
	for lba := 0; lba < 10; lba++ {
		drv.PutSector(lba, make([]byte, sector.UserDataSize))
	}
	drv.Fail(4, sim.FailureRule{Attempts: 1})
	img := sink.NewMemImage()

	cfg := baseConfig(t)
	cfg.RetryPasses = 1

	summary, err := Dump(context.Background(), cfg, drv, img, nil, nil, Logs{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.BadBlockCount)
	assert.Len(t, img.UserData, 10)
}

func TestDumpLeavesPersistentErrorAsBadBlockWhenStopOnErrorUnset(t *testing.T) {
	drv := sim.New()
	drv.RawToc = singleAudioTrackRawToc()
	for lba := 0; lba < 10; lba++ {
		drv.PutSector(lba, make([]byte, sector.UserDataSize))
	}
	drv.Fail(4, sim.FailureRule{Attempts: -1})
	img := sink.NewMemImage()

	cfg := baseConfig(t)
	cfg.RetryPasses = 1
	cfg.NoTrim = true

	summary, err := Dump(context.Background(), cfg, drv, img, nil, nil, Logs{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.BadBlockCount)
	assert.Len(t, img.UserData, 10)
}

func TestDumpHonorsCancellationMidRun(t *testing.T) {
	drv := sim.New()
	drv.RawToc = singleAudioTrackRawToc()
	for lba := 0; lba < 10; lba++ {
		drv.PutSector(lba, make([]byte, sector.UserDataSize))
	}
	img := sink.NewMemImage()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := baseConfig(t)
	_, err := Dump(ctx, cfg, drv, img, nil, nil, Logs{})
	require.NoError(t, err)
	assert.True(t, img.Closed)
}

func TestDumpPersistsResumeRecordAcrossRuns(t *testing.T) {
	drv := sim.New()
	drv.RawToc = singleAudioTrackRawToc()
	for lba := 0; lba < 10; lba++ {
		drv.PutSector(lba, make([]byte, sector.UserDataSize))
	}
	img := sink.NewMemImage()
	cfg := baseConfig(t)

	_, err := Dump(context.Background(), cfg, drv, img, nil, nil, Logs{})
	require.NoError(t, err)

	require.Len(t, img.DumpHardwareSet, 1)
}
