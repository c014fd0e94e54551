// Package bufferpool implements the fixed-capacity frame cache shared by
// every open file in a PagedFile instance: pin/unfix discipline, the
// (file, page) hash index, the LRU/MRU replacement list, dirty write-back
// on eviction, and the four I/O statistics counters. It never talks to
// disk directly — PagedFile hands it a ReadFn/WriteFn pair bound to its own
// DiskFile handles, the same capability-passing style the Stanford PF/BUF
// split uses (readfcn/writefcn take the file descriptor as a parameter, so
// a single pair of callbacks can service every open file, including the
// victim's file during eviction).
package bufferpool

import (
	"container/list"

	"go.uber.org/zap"

	"github.com/jordy-godjo/pfdb/internal/pfconfig"
	"github.com/jordy-godjo/pfdb/internal/pferr"
)

// ReadFn reads one page's on-disk record (link word + payload) for the
// given file handle into buf.
type ReadFn func(fileHandle int, pageNo int32, buf []byte) error

// WriteFn writes one page's on-disk record for the given file handle.
type WriteFn func(fileHandle int, pageNo int32, buf []byte) error

// Frame is a buffer-pool page frame: the on-disk record image (link word
// plus payload) and its pin/dirty bookkeeping. Its position in the
// replacement list is tracked internally by Manager.
type Frame struct {
	File  int
	Page  int32
	Data  []byte
	Fixed bool
	Dirty bool

	elem *list.Element
}

// Stats holds the four buffer-pool counters from spec.md §4.2.
type Stats struct {
	LogicalIO  int64
	PhysicalIO int64
	DiskReads  int64
	DiskWrites int64
}

// Manager is the process-wide buffer pool: one frame arena shared across
// every file this process has open.
type Manager struct {
	rawSize  int
	capacity int
	created  int

	buckets [][]*Frame
	repl    *list.List
	free    []*Frame

	policies map[int]pfconfig.Policy
	logger   *zap.SugaredLogger
	stats    Stats
}

// New builds a Manager with the given frame capacity, hash bucket count,
// and raw per-frame size (PagedFile's RawPageRecordSize). A nil logger
// disables logging.
func New(capacity, hashBuckets, rawSize int, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		rawSize:  rawSize,
		capacity: capacity,
		buckets:  make([][]*Frame, hashBuckets),
		repl:     list.New(),
		policies: make(map[int]pfconfig.Policy),
		logger:   logger,
	}
}

// SetFilePolicy records the replacement policy in effect for a file handle.
// PagedFile calls this once, at openFile.
func (m *Manager) SetFilePolicy(file int, policy pfconfig.Policy) {
	m.policies[file] = policy
}

// ClearFilePolicy forgets a file's policy. PagedFile calls this at closeFile.
func (m *Manager) ClearFilePolicy(file int) {
	delete(m.policies, file)
}

func (m *Manager) policyFor(file int) pfconfig.Policy {
	if p, ok := m.policies[file]; ok {
		return p
	}
	return pfconfig.LRU
}

func hashKey(file int, page int32) int {
	h := uint32(file)*2654435761 + uint32(page)
	return int(h)
}

func (m *Manager) bucket(file int, page int32) int {
	n := len(m.buckets)
	if n == 0 {
		return 0
	}
	idx := hashKey(file, page) % n
	if idx < 0 {
		idx += n
	}
	return idx
}

func (m *Manager) find(file int, page int32) *Frame {
	b := m.bucket(file, page)
	for _, fr := range m.buckets[b] {
		if fr.File == file && fr.Page == page {
			return fr
		}
	}
	return nil
}

func (m *Manager) hashInsert(fr *Frame) {
	b := m.bucket(fr.File, fr.Page)
	m.buckets[b] = append(m.buckets[b], fr)
}

func (m *Manager) hashDelete(fr *Frame) {
	b := m.bucket(fr.File, fr.Page)
	chain := m.buckets[b]
	for i, c := range chain {
		if c == fr {
			m.buckets[b] = append(chain[:i], chain[i+1:]...)
			return
		}
	}
}

// reposition relinks fr in the replacement list per its owning file's
// policy: head for LRU (protect it as newest), tail for MRU (push it to
// the front of the MRU eviction scan, so a repeated cyclic scan doesn't
// evict pages it hasn't revisited yet).
func (m *Manager) reposition(fr *Frame) {
	if fr.elem != nil {
		m.repl.Remove(fr.elem)
	}
	if m.policyFor(fr.File) == pfconfig.LRU {
		fr.elem = m.repl.PushFront(fr)
	} else {
		fr.elem = m.repl.PushBack(fr)
	}
}

// install links a newly-populated frame into the hash index and the head
// of the replacement list — always the head, regardless of policy; only
// repositioning on hit/unfix is policy-dependent.
func (m *Manager) install(fr *Frame) {
	m.hashInsert(fr)
	fr.elem = m.repl.PushFront(fr)
}

func (m *Manager) uninstall(fr *Frame) {
	m.hashDelete(fr)
	if fr.elem != nil {
		m.repl.Remove(fr.elem)
		fr.elem = nil
	}
}

// selectVictim scans the shared replacement list from the tail for the
// first unpinned frame. The tail is the eviction end under both policies;
// they differ only in what reposition sends there: LRU relinks released
// frames at the head, so the tail holds the least-recently-used, while
// MRU relinks released frames at the tail, so the tail holds the
// most-recently-released — exactly the frame a cyclic scan larger than
// the buffer should give up first.
func (m *Manager) selectVictim() *Frame {
	for e := m.repl.Back(); e != nil; e = e.Prev() {
		if fr := e.Value.(*Frame); !fr.Fixed {
			return fr
		}
	}
	return nil
}

// acquireFrame returns an unlinked, uninstalled Frame ready to be stamped
// with a new (file, page) identity: reused from the free stack, grown up
// to capacity, or evicted (writing back if dirty).
func (m *Manager) acquireFrame(write WriteFn) (*Frame, error) {
	if n := len(m.free); n > 0 {
		fr := m.free[n-1]
		m.free = m.free[:n-1]
		return fr, nil
	}
	if m.created < m.capacity {
		fr := &Frame{Data: make([]byte, m.rawSize)}
		m.created++
		return fr, nil
	}
	victim := m.selectVictim()
	if victim == nil {
		return nil, pferr.New(pferr.NoBuffer, "bufferpool.acquireFrame")
	}
	if victim.Dirty {
		m.logger.Debugw("evicting dirty frame", "file", victim.File, "page", victim.Page)
		if err := write(victim.File, victim.Page, victim.Data); err != nil {
			return nil, err
		}
		m.stats.DiskWrites++
		m.stats.PhysicalIO++
		victim.Dirty = false
	}
	m.uninstall(victim)
	return victim, nil
}

// Get returns a pinned frame for (fileHandle, pageNo): a resident hit is
// repositioned and pinned; a miss acquires a frame, reads the page via
// readFn, and installs it. A failed read undoes the acquisition: the
// frame never enters the hash index or replacement list on that path.
func (m *Manager) Get(fileHandle int, pageNo int32, readFn ReadFn, writeFn WriteFn) (*Frame, error) {
	m.stats.LogicalIO++
	if fr := m.find(fileHandle, pageNo); fr != nil {
		if fr.Fixed {
			return nil, pferr.New(pferr.AlreadyFixed, "bufferpool.Get")
		}
		fr.Fixed = true
		m.reposition(fr)
		return fr, nil
	}

	fr, err := m.acquireFrame(writeFn)
	if err != nil {
		return nil, err
	}
	if err := readFn(fileHandle, pageNo, fr.Data); err != nil {
		m.free = append(m.free, fr)
		return nil, err
	}
	m.stats.DiskReads++
	m.stats.PhysicalIO++

	fr.File = fileHandle
	fr.Page = pageNo
	fr.Fixed = true
	fr.Dirty = false
	m.install(fr)
	return fr, nil
}

// Alloc is like Get but never reads from disk: the caller is about to
// overwrite the page outright. Fails AlreadyInBuffer if that identity is
// already resident.
func (m *Manager) Alloc(fileHandle int, pageNo int32, writeFn WriteFn) (*Frame, error) {
	if m.find(fileHandle, pageNo) != nil {
		return nil, pferr.New(pferr.AlreadyInBuffer, "bufferpool.Alloc")
	}
	fr, err := m.acquireFrame(writeFn)
	if err != nil {
		return nil, err
	}
	fr.File = fileHandle
	fr.Page = pageNo
	fr.Fixed = true
	fr.Dirty = false
	m.install(fr)
	return fr, nil
}

// Unfix clears the pin on (fileHandle, pageNo), optionally marking it
// dirty, and repositions it in the replacement list per policy.
func (m *Manager) Unfix(fileHandle int, pageNo int32, dirty bool) error {
	fr := m.find(fileHandle, pageNo)
	if fr == nil {
		return pferr.New(pferr.NotInBuffer, "bufferpool.Unfix")
	}
	if !fr.Fixed {
		return pferr.New(pferr.PageUnfixed, "bufferpool.Unfix")
	}
	if dirty {
		fr.Dirty = true
	}
	fr.Fixed = false
	m.reposition(fr)
	return nil
}

// MarkDirty sets the dirty flag on a pinned frame without unpinning it.
func (m *Manager) MarkDirty(fileHandle int, pageNo int32) error {
	fr := m.find(fileHandle, pageNo)
	if fr == nil {
		return pferr.New(pferr.NotInBuffer, "bufferpool.MarkDirty")
	}
	if !fr.Fixed {
		return pferr.New(pferr.PageUnfixed, "bufferpool.MarkDirty")
	}
	fr.Dirty = true
	return nil
}

// ReleaseFile writes back and evicts every resident frame belonging to
// fileHandle, returning them to the free-frame list. Any still-pinned
// frame for that file is a fatal contract violation: PagedFile.closeFile
// must not be called with pages outstanding.
func (m *Manager) ReleaseFile(fileHandle int, writeFn WriteFn) error {
	for e := m.repl.Front(); e != nil; {
		fr := e.Value.(*Frame)
		next := e.Next()
		if fr.File == fileHandle {
			if fr.Fixed {
				return pferr.New(pferr.PageFixed, "bufferpool.ReleaseFile")
			}
			if fr.Dirty {
				if err := writeFn(fr.File, fr.Page, fr.Data); err != nil {
					return err
				}
				m.stats.DiskWrites++
				m.stats.PhysicalIO++
				fr.Dirty = false
			}
			m.hashDelete(fr)
			m.repl.Remove(e)
			fr.elem = nil
			m.free = append(m.free, fr)
		}
		e = next
	}
	return nil
}

// Stats returns a snapshot of the four I/O counters.
func (m *Manager) Stats() Stats { return m.stats }

// ResetStats zeroes all four counters.
func (m *Manager) ResetStats() { m.stats = Stats{} }
