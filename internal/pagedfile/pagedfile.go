// Package pagedfile turns raw DiskFile page storage into the logical-page
// abstraction higher layers use: an open-file lifecycle with a fixed
// file table, an on-disk free list threaded through page bodies, and
// used-page iteration. It is the "PF" layer of spec.md, built directly on
// bufferpool and diskfile.
package pagedfile

import (
	"encoding/binary"
	"os"

	"go.uber.org/zap"

	"github.com/jordy-godjo/pfdb/internal/bufferpool"
	"github.com/jordy-godjo/pfdb/internal/diskfile"
	"github.com/jordy-godjo/pfdb/internal/pfconfig"
	"github.com/jordy-godjo/pfdb/internal/pferr"
)

// reservedHandles keeps handle values 0, 1, and 2 out of circulation: on
// some host platforms those collide with stdin/stdout/stderr, and
// spec.md §4.3 requires an implementation to avoid handing them back.
const reservedHandles = 3

type ftabEntry struct {
	name     string
	file     *os.File
	hdr      diskfile.Header
	hdrDirty bool
	policy   pfconfig.Policy
	inUse    bool
}

// Manager is the PF layer: the open-file table, the on-disk free-list
// logic, and the page iteration operations, all built on one shared
// bufferpool.Manager.
type Manager struct {
	cfg    *pfconfig.Config
	bp     *bufferpool.Manager
	ftab   []ftabEntry
	byName map[string]int
	logger *zap.SugaredLogger
}

// New initializes the buffer pool and the open-file table. This is the
// spec's "init(bufferCapacity)" operation; it must run before any other
// PF call.
func New(cfg *pfconfig.Config, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	raw := int(diskfile.RawPageRecordSize(cfg.PageSize))
	return &Manager{
		cfg:    cfg,
		bp:     bufferpool.New(cfg.BufferCapacity, cfg.HashBuckets, raw, logger),
		ftab:   make([]ftabEntry, cfg.FileTableSize),
		byName: make(map[string]int),
		logger: logger,
	}
}

// CreateFile delegates to diskfile.Create.
func (m *Manager) CreateFile(name string) error {
	return diskfile.Create(name)
}

// DestroyFile refuses to remove a file this process currently has open.
func (m *Manager) DestroyFile(name string) error {
	if _, open := m.byName[name]; open {
		return pferr.New(pferr.FileOpen, "pagedfile.DestroyFile")
	}
	return diskfile.Destroy(name)
}

// OpenFile opens name under the given replacement policy and returns its
// handle, an index into the fixed-size open-file table.
func (m *Manager) OpenFile(name string, policy pfconfig.Policy) (int, error) {
	slot := -1
	for i := reservedHandles; i < len(m.ftab); i++ {
		if !m.ftab[i].inUse {
			slot = i
			break
		}
	}
	if slot == -1 {
		return -1, pferr.New(pferr.FileTableFull, "pagedfile.OpenFile")
	}

	f, hdr, err := diskfile.Open(name)
	if err != nil {
		return -1, err
	}
	m.ftab[slot] = ftabEntry{
		name:   name,
		file:   f,
		hdr:    hdr,
		policy: policy,
		inUse:  true,
	}
	m.byName[name] = slot
	m.bp.SetFilePolicy(slot, policy)
	m.logger.Debugw("opened file", "handle", slot, "name", name, "policy", policy)
	return slot, nil
}

// CloseFile releases every frame belonging to handle (writing back dirty
// ones), rewrites the header if it changed, and frees the file-table slot.
// Fails PageFixed if any page of this file is still pinned.
func (m *Manager) CloseFile(handle int) error {
	e, err := m.validate(handle)
	if err != nil {
		return err
	}
	if err := m.bp.ReleaseFile(handle, m.writePage); err != nil {
		return err
	}
	if e.hdrDirty {
		if err := diskfile.RewriteHeader(e.file, e.hdr); err != nil {
			return err
		}
	}
	e.file.Close()
	delete(m.byName, e.name)
	m.bp.ClearFilePolicy(handle)
	m.ftab[handle] = ftabEntry{}
	return nil
}

func (m *Manager) validate(handle int) (*ftabEntry, error) {
	if handle < 0 || handle >= len(m.ftab) || !m.ftab[handle].inUse {
		return nil, pferr.New(pferr.BadHandle, "pagedfile")
	}
	return &m.ftab[handle], nil
}

func (m *Manager) readPage(handle int, pageNo int32, buf []byte) error {
	return diskfile.ReadPage(m.ftab[handle].file, m.cfg.PageSize, pageNo, buf)
}

func (m *Manager) writePage(handle int, pageNo int32, buf []byte) error {
	return diskfile.WritePage(m.ftab[handle].file, m.cfg.PageSize, pageNo, buf)
}

func linkWord(raw []byte) int32 {
	return int32(binary.LittleEndian.Uint32(raw[0:4]))
}

func setLinkWord(raw []byte, v int32) {
	binary.LittleEndian.PutUint32(raw[0:4], uint32(v))
}

// payload strips a frame's 4-byte link word, returning the portion RM
// (or any other collaborator) is allowed to read and write.
func payload(raw []byte) []byte { return raw[4:] }

// GetThisPage pins and returns the payload of pageNo. Fails InvalidPage if
// pageNo is out of range, or if the page is logically free (no buffer is
// returned on any error path, per spec.md's resolution of that open
// question).
func (m *Manager) GetThisPage(handle int, pageNo int32) ([]byte, error) {
	e, err := m.validate(handle)
	if err != nil {
		return nil, err
	}
	if pageNo < 0 || pageNo >= e.hdr.NumPages {
		return nil, pferr.New(pferr.InvalidPage, "pagedfile.GetThisPage")
	}
	fr, err := m.bp.Get(handle, pageNo, m.readPage, m.writePage)
	if err != nil {
		return nil, err
	}
	if linkWord(fr.Data) != pfconfig.UsedPage {
		m.bp.Unfix(handle, pageNo, false)
		return nil, pferr.New(pferr.InvalidPage, "pagedfile.GetThisPage")
	}
	return payload(fr.Data), nil
}

// GetFirstPage returns the first used page, skipping logically-free ones.
func (m *Manager) GetFirstPage(handle int) (int32, []byte, error) {
	return m.GetNextPage(handle, -1)
}

// GetNextPage walks forward from pageNo (exclusive), unfixing every
// logically-free page it visits, and returns the next used page. Yields
// EOF once there are no more used pages.
func (m *Manager) GetNextPage(handle int, pageNo int32) (int32, []byte, error) {
	e, err := m.validate(handle)
	if err != nil {
		return -1, nil, err
	}
	for p := pageNo + 1; p < e.hdr.NumPages; p++ {
		fr, err := m.bp.Get(handle, p, m.readPage, m.writePage)
		if err != nil {
			return -1, nil, err
		}
		if linkWord(fr.Data) == pfconfig.UsedPage {
			return p, payload(fr.Data), nil
		}
		m.bp.Unfix(handle, p, false)
	}
	return -1, nil, pferr.New(pferr.EOF, "pagedfile.GetNextPage")
}

// AllocPage obtains a fresh logical page: reused from the on-disk free
// list if one is available, otherwise by extending the file. The
// returned frame is pinned, and its free-link word is stamped "used".
func (m *Manager) AllocPage(handle int) (int32, []byte, error) {
	e, err := m.validate(handle)
	if err != nil {
		return -1, nil, err
	}

	var pageNo int32
	var data []byte
	if e.hdr.FirstFree != pfconfig.EndOfFreeList {
		pageNo = e.hdr.FirstFree
		fr, err := m.bp.Get(handle, pageNo, m.readPage, m.writePage)
		if err != nil {
			return -1, nil, err
		}
		e.hdr.FirstFree = linkWord(fr.Data)
		data = fr.Data
	} else {
		pageNo = e.hdr.NumPages
		e.hdr.NumPages++
		fr, err := m.bp.Alloc(handle, pageNo, m.writePage)
		if err != nil {
			e.hdr.NumPages--
			return -1, nil, err
		}
		data = fr.Data
	}

	e.hdrDirty = true
	setLinkWord(data, pfconfig.UsedPage)
	if err := m.bp.MarkDirty(handle, pageNo); err != nil {
		return -1, nil, err
	}
	return pageNo, payload(data), nil
}

// DisposePage pushes pageNo onto the head of the on-disk free list and
// unfixes it dirty. Fails PageFree if the page is already free.
func (m *Manager) DisposePage(handle int, pageNo int32) error {
	e, err := m.validate(handle)
	if err != nil {
		return err
	}
	if pageNo < 0 || pageNo >= e.hdr.NumPages {
		return pferr.New(pferr.InvalidPage, "pagedfile.DisposePage")
	}
	fr, err := m.bp.Get(handle, pageNo, m.readPage, m.writePage)
	if err != nil {
		return err
	}
	if linkWord(fr.Data) != pfconfig.UsedPage {
		m.bp.Unfix(handle, pageNo, false)
		return pferr.New(pferr.PageFree, "pagedfile.DisposePage")
	}
	setLinkWord(fr.Data, e.hdr.FirstFree)
	e.hdr.FirstFree = pageNo
	e.hdrDirty = true
	return m.bp.Unfix(handle, pageNo, true)
}

// UnfixPage validates handle and pageNo, then delegates to the buffer pool.
func (m *Manager) UnfixPage(handle int, pageNo int32, dirty bool) error {
	e, err := m.validate(handle)
	if err != nil {
		return err
	}
	if pageNo < 0 || pageNo >= e.hdr.NumPages {
		return pferr.New(pferr.InvalidPage, "pagedfile.UnfixPage")
	}
	return m.bp.Unfix(handle, pageNo, dirty)
}

// MarkDirty validates handle and pageNo, then delegates to the buffer pool.
func (m *Manager) MarkDirty(handle int, pageNo int32) error {
	e, err := m.validate(handle)
	if err != nil {
		return err
	}
	if pageNo < 0 || pageNo >= e.hdr.NumPages {
		return pferr.New(pferr.InvalidPage, "pagedfile.MarkDirty")
	}
	return m.bp.MarkDirty(handle, pageNo)
}

// Stats exposes the shared buffer pool's I/O counters.
func (m *Manager) Stats() bufferpool.Stats { return m.bp.Stats() }

// ResetStats zeroes the shared buffer pool's I/O counters.
func (m *Manager) ResetStats() { m.bp.ResetStats() }
