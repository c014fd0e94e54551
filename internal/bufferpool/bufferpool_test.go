package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jordy-godjo/pfdb/internal/pfconfig"
)

// fakeDisk stands in for PagedFile's DiskFile-backed readFn/writeFn pair:
// an in-memory map keyed by (file, page), the way the original C testpf.c
// harness used a scratch array instead of a real file.
type fakeDisk struct {
	pages map[int]map[int32][]byte
	raw   int
}

func newFakeDisk(raw int) *fakeDisk {
	return &fakeDisk{pages: make(map[int]map[int32][]byte), raw: raw}
}

func (d *fakeDisk) ensure(file int, page int32) []byte {
	f, ok := d.pages[file]
	if !ok {
		f = make(map[int32][]byte)
		d.pages[file] = f
	}
	buf, ok := f[page]
	if !ok {
		buf = make([]byte, d.raw)
		f[page] = buf
	}
	return buf
}

func (d *fakeDisk) read(file int, page int32, buf []byte) error {
	copy(buf, d.ensure(file, page))
	return nil
}

func (d *fakeDisk) write(file int, page int32, buf []byte) error {
	copy(d.ensure(file, page), buf)
	return nil
}

func TestGetMissThenHitReusesFrame(t *testing.T) {
	disk := newFakeDisk(16)
	m := New(2, pfconfig.HashBuckets, 16, nil)
	m.SetFilePolicy(0, pfconfig.LRU)

	fr, err := m.Get(0, 0, disk.read, disk.write)
	require.NoError(t, err)
	require.Equal(t, int32(0), fr.Page)
	require.NoError(t, m.Unfix(0, 0, false))

	fr2, err := m.Get(0, 0, disk.read, disk.write)
	require.NoError(t, err)
	require.Same(t, fr, fr2)
	require.NoError(t, m.Unfix(0, 0, false))

	s := m.Stats()
	require.Equal(t, int64(2), s.LogicalIO)
	require.Equal(t, int64(1), s.DiskReads)
}

func TestAlreadyFixedAndNoBuffer(t *testing.T) {
	disk := newFakeDisk(16)
	m := New(2, pfconfig.HashBuckets, 16, nil)
	m.SetFilePolicy(0, pfconfig.LRU)

	if _, err := m.Get(0, 0, disk.read, disk.write); err != nil {
		t.Fatal(err)
	}
	_, err := m.Get(0, 0, disk.read, disk.write)
	require.ErrorContains(t, err, "AlreadyFixed")

	if _, err := m.Get(0, 1, disk.read, disk.write); err != nil {
		t.Fatal(err)
	}
	// both frames fixed, capacity exhausted: third get must fail NoBuffer
	_, err = m.Get(0, 2, disk.read, disk.write)
	require.ErrorContains(t, err, "NoBuffer")
}

func TestUnfixOfUnpinnedAndOfAbsentPage(t *testing.T) {
	disk := newFakeDisk(16)
	m := New(2, pfconfig.HashBuckets, 16, nil)
	m.SetFilePolicy(0, pfconfig.LRU)

	err := m.Unfix(0, 5, false)
	require.ErrorContains(t, err, "NotInBuffer")

	if _, err := m.Get(0, 0, disk.read, disk.write); err != nil {
		t.Fatal(err)
	}
	require.NoError(t, m.Unfix(0, 0, false))
	err = m.Unfix(0, 0, false)
	require.ErrorContains(t, err, "PageUnfixed")
}

func TestAllocAlreadyInBuffer(t *testing.T) {
	disk := newFakeDisk(16)
	m := New(2, pfconfig.HashBuckets, 16, nil)
	m.SetFilePolicy(0, pfconfig.LRU)

	if _, err := m.Alloc(0, 0, disk.write); err != nil {
		t.Fatal(err)
	}
	_, err := m.Alloc(0, 0, disk.write)
	require.ErrorContains(t, err, "AlreadyInBuffer")
}

// TestLRUChurnsWholeBuffer reproduces spec.md §8's LRU scenario: a
// sequential scan of N > capacity pages, touched once per pass, incurs a
// disk read for every single page — the whole buffer is churned every pass.
func TestLRUChurnsWholeBuffer(t *testing.T) {
	const capacity = 10
	const n = 100
	disk := newFakeDisk(16)
	m := New(capacity, pfconfig.HashBuckets, 16, nil)
	m.SetFilePolicy(0, pfconfig.LRU)

	for pass := 0; pass < 3; pass++ {
		m.ResetStats()
		for p := int32(0); p < n; p++ {
			fr, err := m.Get(0, p, disk.read, disk.write)
			require.NoError(t, err)
			require.NoError(t, m.Unfix(0, p, false))
			_ = fr
		}
		require.Equal(t, int64(n), m.Stats().DiskReads, "pass %d", pass)
	}
}

// TestMRURetainsOlderPages reproduces spec.md §8's MRU scenario: repeated
// cyclic passes over N > capacity pages keep the oldest capacity-1 pages
// resident, so each pass after the first only misses on the pages that
// actually get evicted.
func TestMRURetainsOlderPages(t *testing.T) {
	const capacity = 10
	const n = 100
	disk := newFakeDisk(16)
	m := New(capacity, pfconfig.HashBuckets, 16, nil)
	m.SetFilePolicy(0, pfconfig.MRU)

	m.ResetStats()
	for p := int32(0); p < n; p++ {
		_, err := m.Get(0, p, disk.read, disk.write)
		require.NoError(t, err)
		require.NoError(t, m.Unfix(0, p, false))
	}
	require.Equal(t, int64(n), m.Stats().DiskReads)

	m.ResetStats()
	for p := int32(0); p < n; p++ {
		_, err := m.Get(0, p, disk.read, disk.write)
		require.NoError(t, err)
		require.NoError(t, m.Unfix(0, p, false))
	}
	// the oldest capacity-1 pages stay resident, and so does the final
	// page of the previous pass: the second pass misses only on the
	// n-capacity pages in between, instead of churning all n like LRU.
	require.Equal(t, int64(n-capacity), m.Stats().DiskReads)
}

func TestReleaseFileRejectsPinnedAndFreesDirty(t *testing.T) {
	disk := newFakeDisk(16)
	m := New(4, pfconfig.HashBuckets, 16, nil)
	m.SetFilePolicy(0, pfconfig.LRU)

	fr, err := m.Get(0, 0, disk.read, disk.write)
	require.NoError(t, err)
	err = m.ReleaseFile(0, disk.write)
	require.ErrorContains(t, err, "PageFixed")

	copy(fr.Data, []byte("dirty-bytes-xx"))
	require.NoError(t, m.Unfix(0, 0, true))
	require.NoError(t, m.ReleaseFile(0, disk.write))
	require.Equal(t, []byte("dirty-bytes-xx"), disk.ensure(0, 0)[:14])

	// the frame is free and must be reusable by a different file now.
	m.SetFilePolicy(1, pfconfig.LRU)
	_, err = m.Get(1, 0, disk.read, disk.write)
	require.NoError(t, err)
}

// TestDirtyEvictionWritesBackExactlyOnce: evicting a dirty frame must
// produce one write for that identity; evicting a clean frame none.
func TestDirtyEvictionWritesBackExactlyOnce(t *testing.T) {
	disk := newFakeDisk(16)
	writes := map[int32]int{}
	countingWrite := func(file int, page int32, buf []byte) error {
		writes[page]++
		return disk.write(file, page, buf)
	}
	m := New(1, pfconfig.HashBuckets, 16, nil)
	m.SetFilePolicy(0, pfconfig.LRU)

	fr, err := m.Get(0, 0, disk.read, countingWrite)
	require.NoError(t, err)
	copy(fr.Data, []byte("page-zero-bytes"))
	require.NoError(t, m.Unfix(0, 0, true))

	// page 1 is read and released clean; page 2 forces its eviction.
	_, err = m.Get(0, 1, disk.read, countingWrite)
	require.NoError(t, err)
	require.NoError(t, m.Unfix(0, 1, false))
	_, err = m.Get(0, 2, disk.read, countingWrite)
	require.NoError(t, err)
	require.NoError(t, m.Unfix(0, 2, false))

	require.Equal(t, 1, writes[0])
	require.Zero(t, writes[1])
	require.Equal(t, int64(1), m.Stats().DiskWrites)
	require.Equal(t, []byte("page-zero-bytes"), disk.ensure(0, 0)[:15])
}

func TestMarkDirtyRequiresFixed(t *testing.T) {
	disk := newFakeDisk(16)
	m := New(2, pfconfig.HashBuckets, 16, nil)
	m.SetFilePolicy(0, pfconfig.LRU)

	require.ErrorContains(t, m.MarkDirty(0, 0), "NotInBuffer")

	if _, err := m.Get(0, 0, disk.read, disk.write); err != nil {
		t.Fatal(err)
	}
	require.NoError(t, m.MarkDirty(0, 0))
	require.NoError(t, m.Unfix(0, 0, false))
	require.ErrorContains(t, m.MarkDirty(0, 0), "PageUnfixed")
}
