//go:build linux

package scsigeneric

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/rabidaudio/cdimage/device"
)

// MMC opcodes used by this driver (MMC-5 §6).
const (
	opInquiry    = 0x12
	opModeSense6 = 0x1A
	opModeSelect6 = 0x15
	opModeSense10 = 0x5A
	opModeSelect10 = 0x55
	opReadTocPmaAtip = 0x43
	opReadCd     = 0xBE
	opReadSubchannel = 0x42
)

func subchannelSelector(req device.SubchannelRequest) byte {
	switch req {
	case device.SubchannelRawPW96:
		return 0x01
	case device.SubchannelPackedQ16:
		return 0x02
	default:
		return 0x00
	}
}

// ReadCd issues the MMC READ CD (0xBE) command.
func (d *Drive) ReadCd(req device.ReadCdRequest) (device.ReadCdResult, error) {
	cdb := make([]byte, 12)
	cdb[0] = opReadCd
	// expected sector type left at 0 (all types), byte1 bit0 (RelAdr) left clear
	binary.BigEndian.PutUint32(cdb[2:6], uint32(int32(req.LBA)))
	cdb[6] = byte(req.Count >> 16)
	cdb[7] = byte(req.Count >> 8)
	cdb[8] = byte(req.Count)

	b9 := byte(0x10) // header codes = all headers
	if req.EDC {
		b9 |= 0x08
	}
	b9 |= 0x80 // sync bytes
	b9 |= 0x04 // user data
	if req.C2 {
		b9 |= 0x02
	}
	cdb[9] = b9
	cdb[10] = subchannelSelector(req.Subchannel)

	buf := make([]byte, req.Count*req.BlockSize)
	data, sense, duration, err := d.execute(cdb, buf, sgDxferFromDev, req.Timeout)
	if err != nil {
		return device.ReadCdResult{Sense: sense, Duration: duration}, err
	}
	return device.ReadCdResult{Data: data, Sense: sense, Duration: duration}, nil
}

// Inquiry issues STANDARD INQUIRY and parses manufacturer/model/revision.
func (d *Drive) Inquiry() (device.Inquiry, error) {
	cdb := make([]byte, 6)
	cdb[0] = opInquiry
	cdb[4] = 96 // allocation length

	buf := make([]byte, 96)
	data, _, _, err := d.execute(cdb, buf, sgDxferFromDev, 0)
	if err != nil {
		return device.Inquiry{}, err
	}
	if len(data) < 36 {
		return device.Inquiry{}, errors.New("scsigeneric: short INQUIRY response")
	}
	return device.Inquiry{
		DeviceType:   data[0] & 0x1F,
		Manufacturer: trimmed(data[8:16]),
		Model:        trimmed(data[16:32]),
		Serial:       trimmed(data[32:36]),
		Platform:     "linux",
	}, nil
}

func trimmed(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}

// ModeSense6/10, ModeSelect6/10 implement the persistent-error-recovery
// mode page read/write dance.

func (d *Drive) ModeSense6(pageCode byte) (device.ModePage, error) {
	cdb := make([]byte, 6)
	cdb[0] = opModeSense6
	cdb[2] = pageCode & 0x3F
	cdb[4] = 255
	buf := make([]byte, 255)
	data, _, _, err := d.execute(cdb, buf, sgDxferFromDev, 0)
	if err != nil {
		return device.ModePage{}, err
	}
	return parseModeSense(data, 4, pageCode)
}

func (d *Drive) ModeSense10(pageCode byte) (device.ModePage, error) {
	cdb := make([]byte, 10)
	cdb[0] = opModeSense10
	cdb[2] = pageCode & 0x3F
	cdb[8] = 255
	buf := make([]byte, 255)
	data, _, _, err := d.execute(cdb, buf, sgDxferFromDev, 0)
	if err != nil {
		return device.ModePage{}, err
	}
	return parseModeSense(data, 8, pageCode)
}

func parseModeSense(data []byte, headerLen int, pageCode byte) (device.ModePage, error) {
	if len(data) <= headerLen+2 {
		return device.ModePage{}, errors.New("scsigeneric: short MODE SENSE response")
	}
	body := data[headerLen:]
	pageLen := int(body[1])
	if len(body) < 2+pageLen {
		return device.ModePage{}, errors.New("scsigeneric: truncated mode page")
	}
	return device.ModePage{PageCode: body[0] & 0x3F, Data: append([]byte{}, body[2:2+pageLen]...)}, nil
}

func (d *Drive) ModeSelect6(page device.ModePage) error {
	body := append([]byte{page.PageCode & 0x3F, byte(len(page.Data))}, page.Data...)
	buf := append(make([]byte, 4), body...)
	cdb := make([]byte, 6)
	cdb[0] = opModeSelect6
	cdb[1] = 0x10 // PF bit: page format
	cdb[4] = byte(len(buf))
	_, _, _, err := d.execute(cdb, buf, sgDxferToDev, 0)
	return err
}

func (d *Drive) ModeSelect10(page device.ModePage) error {
	body := append([]byte{page.PageCode & 0x3F, byte(len(page.Data))}, page.Data...)
	buf := append(make([]byte, 8), body...)
	cdb := make([]byte, 10)
	cdb[0] = opModeSelect10
	cdb[1] = 0x10
	binary.BigEndian.PutUint16(cdb[7:9], uint16(len(buf)))
	_, _, _, err := d.execute(cdb, buf, sgDxferToDev, 0)
	return err
}

// ReadRawToc issues READ TOC/PMA/ATIP with format 0010b (raw TOC).
func (d *Drive) ReadRawToc() ([]device.RawTocDescriptor, error) {
	data, err := d.readTocPmaAtip(0x02, 0)
	if err != nil {
		return nil, err
	}
	return parseRawToc(data), nil
}

// ReadToc issues READ TOC/PMA/ATIP with format 0000b (processed TOC).
func (d *Drive) ReadToc() ([]device.ProcessedTocEntry, error) {
	data, err := d.readTocPmaAtip(0x00, 0)
	if err != nil {
		return nil, err
	}
	return parseProcessedToc(data), nil
}

func (d *Drive) ReadAtip() ([]byte, error)           { return d.readTocPmaAtip(0x04, 0) }
func (d *Drive) ReadPma() ([]byte, error)            { return d.readTocPmaAtip(0x03, 0) }
func (d *Drive) ReadCdText() ([]byte, error)         { return d.readTocPmaAtip(0x05, 0) }
func (d *Drive) ReadDiscInformation() ([]byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = 0x51
	cdb[8] = 34
	buf := make([]byte, 34)
	data, _, _, err := d.execute(cdb, buf, sgDxferFromDev, 0)
	return data, err
}
func (d *Drive) ReadSessionInfo() ([]byte, error) { return d.readTocPmaAtip(0x01, 0) }

func (d *Drive) readTocPmaAtip(format byte, trackSessionNo byte) ([]byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = opReadTocPmaAtip
	cdb[2] = format & 0x0F
	cdb[6] = trackSessionNo
	cdb[8] = 255
	buf := make([]byte, 255)
	data, _, _, err := d.execute(cdb, buf, sgDxferFromDev, 0)
	return data, err
}

func parseRawToc(data []byte) []device.RawTocDescriptor {
	if len(data) < 4 {
		return nil
	}
	var out []device.RawTocDescriptor
	for off := 4; off+11 <= len(data); off += 11 {
		e := data[off : off+11]
		out = append(out, device.RawTocDescriptor{
			Session: e[0],
			ADR:     e[1] >> 4,
			Control: e[1] & 0x0F,
			Point:   e[3],
			PHour:   e[4],
			PMin:    e[5],
			PSec:    e[6],
			PFrame:  e[7],
		})
	}
	return out
}

func parseProcessedToc(data []byte) []device.ProcessedTocEntry {
	if len(data) < 4 {
		return nil
	}
	var out []device.ProcessedTocEntry
	for off := 4; off+7 <= len(data); off += 8 {
		e := data[off : off+8]
		lba := int(int32(binary.BigEndian.Uint32(e[4:8])))
		out = append(out, device.ProcessedTocEntry{
			TrackNumber: e[2],
			ADR:         e[1] >> 4,
			Control:     e[1] & 0x0F,
			LBA:         lba,
		})
	}
	return out
}

// ReadMcn and ReadIsrc issue READ SUB-CHANNEL with the media/ISRC
// sub-functions.
func (d *Drive) ReadMcn() (string, error) {
	data, err := d.readSubchannel(0x02, 0)
	if err != nil {
		return "", err
	}
	return parseMCNOrISRC(data), nil
}

func (d *Drive) ReadIsrc(trackNo byte) (string, error) {
	data, err := d.readSubchannel(0x03, trackNo)
	if err != nil {
		return "", err
	}
	return parseMCNOrISRC(data), nil
}

func (d *Drive) readSubchannel(subQ byte, trackNo byte) ([]byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = opReadSubchannel
	cdb[2] = 0x40 // SUBQ bit
	cdb[3] = subQ
	cdb[6] = trackNo
	cdb[8] = 24
	buf := make([]byte, 24)
	data, _, _, err := d.execute(cdb, buf, sgDxferFromDev, 0)
	return data, err
}

func parseMCNOrISRC(data []byte) string {
	if len(data) < 9 || data[8] == 0 {
		return ""
	}
	return trimmed(data[9:])
}
