// Package recordmgr places variable-length records on PagedFile pages: a
// slotted-page layout with a page header, a slot directory growing
// backward from the page end, tombstone-and-compact delete, and a
// forward scan that skips deleted slots. It is the "RM" layer, built
// directly on pagedfile — it never touches bufferpool or diskfile itself.
package recordmgr

import (
	"encoding/binary"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jordy-godjo/pfdb/internal/pagedfile"
	"github.com/jordy-godjo/pfdb/internal/pfconfig"
	"github.com/jordy-godjo/pfdb/internal/pferr"
)

const (
	pageHeaderSize = 8
	slotEntrySize  = 8
)

// RID identifies one record by the (page, slot) pair it lives in. Slot
// numbers are stable: they are never reused by compaction, only by a
// later insert that finds a tombstone.
type RID struct {
	PageNo int32
	SlotNo int32
}

// Pack encodes a RID as the 32-bit integer form the index layer stores as
// a key: pageNo in the high 16 bits, slotNo in the low 16 bits.
func Pack(rid RID) int32 {
	return (rid.PageNo << 16) | (rid.SlotNo & 0xFFFF)
}

// Unpack reverses Pack.
func Unpack(packed int32) RID {
	return RID{PageNo: packed >> 16, SlotNo: packed & 0xFFFF}
}

// Manager is the RM layer: one instance per PagedFile manager it sits on.
type Manager struct {
	pf     *pagedfile.Manager
	logger *zap.SugaredLogger
}

// New builds a Manager on top of an already-initialized PagedFile manager.
func New(pf *pagedfile.Manager, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{pf: pf, logger: logger}
}

func (m *Manager) CreateFile(name string) error { return m.pf.CreateFile(name) }
func (m *Manager) DestroyFile(name string) error { return m.pf.DestroyFile(name) }

func (m *Manager) OpenFile(name string, policy pfconfig.Policy) (int, error) {
	return m.pf.OpenFile(name, policy)
}

func (m *Manager) CloseFile(handle int) error { return m.pf.CloseFile(handle) }

func readPageHeader(payload []byte) (numSlots, freeSpaceOffset int32) {
	return int32(binary.LittleEndian.Uint32(payload[0:4])),
		int32(binary.LittleEndian.Uint32(payload[4:8]))
}

func writePageHeader(payload []byte, numSlots, freeSpaceOffset int32) {
	binary.LittleEndian.PutUint32(payload[0:4], uint32(numSlots))
	binary.LittleEndian.PutUint32(payload[4:8], uint32(freeSpaceOffset))
}

func slotDirOffset(payloadLen int, slotNo int32) int32 {
	return int32(payloadLen) - (slotNo+1)*slotEntrySize
}

func readSlot(payload []byte, slotNo int32) (recordOffset, recordLength int32) {
	o := slotDirOffset(len(payload), slotNo)
	return int32(binary.LittleEndian.Uint32(payload[o : o+4])),
		int32(binary.LittleEndian.Uint32(payload[o+4 : o+8]))
}

func writeSlot(payload []byte, slotNo, recordOffset, recordLength int32) {
	o := slotDirOffset(len(payload), slotNo)
	binary.LittleEndian.PutUint32(payload[o:o+4], uint32(recordOffset))
	binary.LittleEndian.PutUint32(payload[o+4:o+8], uint32(recordLength))
}

// initPage resets a fresh page to an empty slotted page.
func initPage(payload []byte) {
	writePageHeader(payload, 0, pageHeaderSize)
}

// tryInsertOnPage attempts to place data on an already-pinned slotted
// page, reusing a tombstoned slot when one exists. Returns ok=false if
// the page lacks contiguous free space, leaving payload untouched.
func tryInsertOnPage(payload []byte, data []byte) (slotNo int32, ok bool) {
	length := int32(len(data))
	numSlots, freeSpaceOffset := readPageHeader(payload)

	tomb := int32(-1)
	for s := int32(0); s < numSlots; s++ {
		if _, ln := readSlot(payload, s); ln == -1 {
			tomb = s
			break
		}
	}

	var needed int32
	if tomb >= 0 {
		needed = length
	} else {
		needed = length + slotEntrySize
	}
	free := int32(len(payload)) - numSlots*slotEntrySize - freeSpaceOffset
	if free < needed {
		return 0, false
	}

	copy(payload[freeSpaceOffset:freeSpaceOffset+length], data)
	if tomb >= 0 {
		slotNo = tomb
	} else {
		slotNo = numSlots
		numSlots++
	}
	writeSlot(payload, slotNo, freeSpaceOffset, length)
	freeSpaceOffset += length
	writePageHeader(payload, numSlots, freeSpaceOffset)
	return slotNo, true
}

// InsertRecord places data on the first used page with enough contiguous
// free space (reusing a tombstoned slot's space when available),
// allocating a fresh page only when none qualifies.
func (m *Manager) InsertRecord(handle int, data []byte) (RID, error) {
	pageNo, payload, err := m.pf.GetFirstPage(handle)
	for err == nil {
		if slotNo, ok := tryInsertOnPage(payload, data); ok {
			if uerr := m.pf.UnfixPage(handle, pageNo, true); uerr != nil {
				return RID{}, uerr
			}
			return RID{PageNo: pageNo, SlotNo: slotNo}, nil
		}
		if uerr := m.pf.UnfixPage(handle, pageNo, false); uerr != nil {
			return RID{}, uerr
		}
		pageNo, payload, err = m.pf.GetNextPage(handle, pageNo)
	}
	if !pferr.Is(err, pferr.EOF) {
		return RID{}, err
	}

	newPageNo, newPayload, err := m.pf.AllocPage(handle)
	if err != nil {
		return RID{}, err
	}
	initPage(newPayload)
	slotNo, ok := tryInsertOnPage(newPayload, data)
	if !ok {
		m.pf.UnfixPage(handle, newPageNo, false)
		return RID{}, pferr.New(pferr.BufferTooSmall, "recordmgr.InsertRecord")
	}
	if err := m.pf.UnfixPage(handle, newPageNo, true); err != nil {
		return RID{}, err
	}
	return RID{PageNo: newPageNo, SlotNo: slotNo}, nil
}

// getSlot pins rid's page and validates the slot, translating PagedFile's
// InvalidPage into the RM-level InvalidRID the spec calls for. On any
// error the page is left unpinned.
func (m *Manager) getSlot(handle int, rid RID) (payload []byte, offset, length int32, err error) {
	payload, err = m.pf.GetThisPage(handle, rid.PageNo)
	if err != nil {
		if pferr.Is(err, pferr.InvalidPage) {
			return nil, 0, 0, pferr.New(pferr.InvalidRID, "recordmgr")
		}
		return nil, 0, 0, err
	}
	numSlots, _ := readPageHeader(payload)
	if rid.SlotNo < 0 || rid.SlotNo >= numSlots {
		m.pf.UnfixPage(handle, rid.PageNo, false)
		return nil, 0, 0, pferr.New(pferr.InvalidRID, "recordmgr")
	}
	off, ln := readSlot(payload, rid.SlotNo)
	if ln == -1 {
		m.pf.UnfixPage(handle, rid.PageNo, false)
		return nil, 0, 0, pferr.New(pferr.InvalidRID, "recordmgr")
	}
	return payload, off, ln, nil
}

// DeleteRecord tombstones rid's slot and compacts the page's live bytes
// and offsets so the data region stays contiguous. The slot number itself
// is never reused by compaction — only insertRecord's tombstone scan
// reclaims it.
func (m *Manager) DeleteRecord(handle int, rid RID) error {
	payload, offDeleted, lenDeleted, err := m.getSlot(handle, rid)
	if err != nil {
		return err
	}
	numSlots, freeSpaceOffset := readPageHeader(payload)

	copy(payload[offDeleted:freeSpaceOffset-lenDeleted], payload[offDeleted+lenDeleted:freeSpaceOffset])
	for s := int32(0); s < numSlots; s++ {
		if s == rid.SlotNo {
			continue
		}
		off, ln := readSlot(payload, s)
		if ln != -1 && off > offDeleted {
			writeSlot(payload, s, off-lenDeleted, ln)
		}
	}
	writeSlot(payload, rid.SlotNo, 0, -1)
	freeSpaceOffset -= lenDeleted
	writePageHeader(payload, numSlots, freeSpaceOffset)

	return m.pf.UnfixPage(handle, rid.PageNo, true)
}

// GetRecord copies rid's current bytes into buf, failing BufferTooSmall
// if buf can't hold them.
func (m *Manager) GetRecord(handle int, rid RID, buf []byte) (int, error) {
	payload, off, ln, err := m.getSlot(handle, rid)
	if err != nil {
		return 0, err
	}
	if int32(len(buf)) < ln {
		m.pf.UnfixPage(handle, rid.PageNo, false)
		return 0, pferr.New(pferr.BufferTooSmall, "recordmgr.GetRecord")
	}
	copy(buf, payload[off:off+ln])
	if err := m.pf.UnfixPage(handle, rid.PageNo, false); err != nil {
		return 0, err
	}
	return int(ln), nil
}

// ScanHandle tracks one forward scan's position: the currently-pinned
// page (if any) and the last slot visited on it. ID labels distinct
// concurrent scans for collaborators that keep a table of open ones.
type ScanHandle struct {
	ID       uuid.UUID
	handle   int
	pageNo   int32
	payload  []byte
	slotNo   int32
	numSlots int32
	open     bool
}

// OpenScan starts a forward scan of handle from the beginning of the file.
func (m *Manager) OpenScan(handle int) *ScanHandle {
	return &ScanHandle{ID: uuid.New(), handle: handle, pageNo: -1, slotNo: -1, open: true}
}

// GetNextRecord advances the scan to the next live record, skipping
// tombstones and logically-free pages, and copies its bytes into buf.
// Returns EOF once the file is exhausted.
func (m *Manager) GetNextRecord(sh *ScanHandle, buf []byte) (RID, int, error) {
	if !sh.open {
		return RID{}, 0, pferr.New(pferr.BadHandle, "recordmgr.GetNextRecord")
	}
	for {
		if sh.payload == nil {
			pageNo, payload, err := m.pf.GetNextPage(sh.handle, sh.pageNo)
			if err != nil {
				return RID{}, 0, err
			}
			sh.pageNo = pageNo
			sh.payload = payload
			sh.numSlots, _ = readPageHeader(payload)
			sh.slotNo = -1
		}

		sh.slotNo++
		if sh.slotNo >= sh.numSlots {
			if err := m.pf.UnfixPage(sh.handle, sh.pageNo, false); err != nil {
				return RID{}, 0, err
			}
			sh.payload = nil
			continue
		}

		off, ln := readSlot(sh.payload, sh.slotNo)
		if ln == -1 {
			continue
		}
		if int32(len(buf)) < ln {
			// back up so a retry with a bigger buffer sees this slot again
			sh.slotNo--
			return RID{}, 0, pferr.New(pferr.BufferTooSmall, "recordmgr.GetNextRecord")
		}
		copy(buf, sh.payload[off:off+ln])
		return RID{PageNo: sh.pageNo, SlotNo: sh.slotNo}, int(ln), nil
	}
}

// CloseScan unfixes the currently-pinned page, if any, clean.
func (m *Manager) CloseScan(sh *ScanHandle) error {
	if sh.payload != nil {
		if err := m.pf.UnfixPage(sh.handle, sh.pageNo, false); err != nil {
			return err
		}
		sh.payload = nil
	}
	sh.open = false
	return nil
}
