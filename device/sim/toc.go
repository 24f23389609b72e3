package sim

import (
	"github.com/pkg/errors"

	"github.com/rabidaudio/cdimage/device"
)

func (d *Drive) ReadRawToc() ([]device.RawTocDescriptor, error) {
	if len(d.RawToc) == 0 {
		return nil, errors.New("sim: no raw TOC configured")
	}
	return d.RawToc, nil
}

func (d *Drive) ReadToc() ([]device.ProcessedTocEntry, error) {
	if len(d.ProcessedToc) == 0 {
		return nil, errors.New("sim: no processed TOC configured")
	}
	return d.ProcessedToc, nil
}

func (d *Drive) ReadAtip() ([]byte, error)   { return nil, errors.New("sim: ATIP not configured") }
func (d *Drive) ReadPma() ([]byte, error)    { return nil, errors.New("sim: PMA not configured") }
func (d *Drive) ReadCdText() ([]byte, error) { return nil, errors.New("sim: CD-Text not configured") }

func (d *Drive) ReadDiscInformation() ([]byte, error) {
	if len(d.DiscInfo) == 0 {
		return nil, errors.New("sim: disc information not configured")
	}
	return d.DiscInfo, nil
}

func (d *Drive) ReadSessionInfo() ([]byte, error) {
	if len(d.SessionInfo) == 0 {
		return nil, errors.New("sim: session info not configured")
	}
	return d.SessionInfo, nil
}

func (d *Drive) ReadMcn() (string, error) {
	if d.MCN == "" {
		return "", errors.New("sim: MCN not configured")
	}
	return d.MCN, nil
}

func (d *Drive) ReadIsrc(trackNo byte) (string, error) {
	v, ok := d.Isrcs[trackNo]
	if !ok {
		return "", errors.Errorf("sim: no ISRC configured for track %d", trackNo)
	}
	return v, nil
}

func (d *Drive) ModeSense6(pageCode byte) (device.ModePage, error) {
	return d.currentModePage, nil
}

func (d *Drive) ModeSense10(pageCode byte) (device.ModePage, error) {
	return d.currentModePage, nil
}

func (d *Drive) ModeSelect6(page device.ModePage) error {
	if !d.ModeSelectAccepted {
		return errors.New("sim: MODE SELECT(6) rejected")
	}
	d.currentModePage = page
	return nil
}

func (d *Drive) ModeSelect10(page device.ModePage) error {
	if !d.ModeSelectAccepted {
		return errors.New("sim: MODE SELECT(10) rejected")
	}
	d.currentModePage = page
	return nil
}
