package sink

// MemImage is a minimal in-memory Image, used by tests across the module
// to exercise the core without a real image-format plugin.
type MemImage struct {
	Path           string
	MediaType      MediaType
	TotalBlocks    int
	BytesPerSector int

	Tracks []Track

	// UserData maps LBA to its written 2352-byte payload.
	UserData map[int][]byte
	// SubchannelData maps LBA to its written subchannel payload.
	SubchannelData map[int][]byte

	MediaTagsWritten map[MediaTagKind][]byte
	DumpHardwareSet  []DumpHardware
	Cicm             CicmMetadata

	AllowedSectorTags []SectorTagKind
	AllowedMediaTags  []MediaTagKind

	Closed bool
}

// NewMemImage returns a MemImage that accepts every sector/media tag kind.
func NewMemImage() *MemImage {
	return &MemImage{
		UserData:         map[int][]byte{},
		SubchannelData:   map[int][]byte{},
		MediaTagsWritten: map[MediaTagKind][]byte{},
		AllowedSectorTags: []SectorTagKind{
			TagSubchannelRawPW96, TagSubchannelPackedQ16,
		},
		AllowedMediaTags: []MediaTagKind{
			TagFullTOC, TagATIP, TagPMA, TagLeadIn, TagCdText, TagMCN, TagTrackIsrc,
		},
	}
}

func (m *MemImage) Create(path string, mediaType MediaType, options CreateOptions, totalBlocks int, bytesPerSector int) error {
	m.Path, m.MediaType, m.TotalBlocks, m.BytesPerSector = path, mediaType, totalBlocks, bytesPerSector
	return nil
}

func (m *MemImage) SetTracks(tracks []Track) error {
	m.Tracks = tracks
	return nil
}

func (m *MemImage) WriteSectorsLong(data []byte, startLBA int, count int) error {
	for i := 0; i < count; i++ {
		frame := data[i*2352 : (i+1)*2352]
		cp := make([]byte, 2352)
		copy(cp, frame)
		m.UserData[startLBA+i] = cp
	}
	return nil
}

func (m *MemImage) WriteSectorsTag(data []byte, startLBA int, count int, tag SectorTagKind) error {
	if count == 0 {
		return nil
	}
	size := len(data) / count
	for i := 0; i < count; i++ {
		frame := data[i*size : (i+1)*size]
		cp := make([]byte, size)
		copy(cp, frame)
		m.SubchannelData[startLBA+i] = cp
	}
	return nil
}

func (m *MemImage) WriteSectorTag(data []byte, lba int, tag SectorTagKind) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.SubchannelData[lba] = cp
	return nil
}

func (m *MemImage) WriteMediaTag(data []byte, tag MediaTagKind) error {
	m.MediaTagsWritten[tag] = data
	return nil
}

func (m *MemImage) SetDumpHardware(entries []DumpHardware) { m.DumpHardwareSet = entries }
func (m *MemImage) SetCicmMetadata(metadata CicmMetadata)  { m.Cicm = metadata }

func (m *MemImage) SupportedSectorTags() []SectorTagKind { return m.AllowedSectorTags }
func (m *MemImage) SupportedMediaTags() []MediaTagKind   { return m.AllowedMediaTags }

func (m *MemImage) Close() error {
	m.Closed = true
	return nil
}

var _ Image = (*MemImage)(nil)
