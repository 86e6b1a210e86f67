package directory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store"
)

// Handle is one user's live directory subscription. The owner must
// call Release before attaching a replacement; Release synchronously
// detaches both underlying watches.
type Handle struct {
	eng    *Engine
	userID string
	ctx    context.Context
	cancel context.CancelFunc

	pw store.ChatWatch
	gw store.ChatWatch
	wg sync.WaitGroup

	seq uint64 // monotonic across both partitions

	mu           sync.Mutex
	appliedPriv  uint64
	appliedGroup uint64
	private      []ChatView
	group        []ChatView
	tab          Tab
	search       string
	released     bool
	out          chan View
}

// Subscribe opens the two partition watches for userID and starts the
// enrichment pipeline. Every snapshot is enriched before it is
// published; each pass runs on its own goroutine stamped with the
// snapshot's sequence, so a slow pass never blocks a newer snapshot
// and never overwrites one that already superseded it.
func (e *Engine) Subscribe(ctx context.Context, userID string) (*Handle, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindValidation, "missing user id")
	}
	hctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		eng:    e,
		userID: userID,
		ctx:    hctx,
		cancel: cancel,
		tab:    TabPrivate,
		out:    make(chan View, 1),
	}

	pw, err := e.chats.WatchChats(ctx, models.ChatPrivate, userID)
	if err != nil {
		cancel()
		return nil, apperr.Wrap(apperr.KindNetwork, "watch private chats", err)
	}
	gw, err := e.chats.WatchChats(ctx, models.ChatGroup, userID)
	if err != nil {
		pw.Release()
		cancel()
		return nil, apperr.Wrap(apperr.KindNetwork, "watch group chats", err)
	}
	h.pw, h.gw = pw, gw

	h.wg.Add(2)
	go h.run(models.ChatPrivate, pw)
	go h.run(models.ChatGroup, gw)
	return h, nil
}

// Snapshots delivers coalesced directory views: if the consumer lags,
// intermediate views are replaced, not queued.
func (h *Handle) Snapshots() <-chan View { return h.out }

func (h *Handle) SetTab(tab Tab) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tab = tab
	h.publishLocked()
}

func (h *Handle) SetSearch(term string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.search = term
	h.publishLocked()
}

// Filtered applies the handle's current tab and search term to a view.
func (h *Handle) Filtered(v View) []ChatView {
	h.mu.Lock()
	tab, search := h.tab, h.search
	h.mu.Unlock()
	return SortPinnedFirst(v.Filter(tab, search))
}

// Current returns the latest materialized view.
func (h *Handle) Current() View {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewLocked()
}

// Release detaches both watches and stops any pending enrichment from
// publishing. Safe to call more than once.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.mu.Unlock()

	h.pw.Release()
	h.gw.Release()
	h.cancel()
	h.wg.Wait()

	h.mu.Lock()
	close(h.out)
	h.mu.Unlock()
}

func (h *Handle) run(kind models.ChatKind, w store.ChatWatch) {
	defer h.wg.Done()
	for snap := range w.Snapshots() {
		// stamp before enriching: the ordering of raw snapshots decides
		// which enrichment pass is allowed to win
		seq := atomic.AddUint64(&h.seq, 1)
		go h.enrich(kind, seq, snap)
	}
}

func (h *Handle) enrich(kind models.ChatKind, seq uint64, snap []models.Chat) {
	views := h.eng.enrich(h.ctx, h.userID, snap)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	applied := &h.appliedPriv
	if kind == models.ChatGroup {
		applied = &h.appliedGroup
	}
	if seq <= *applied {
		// a newer snapshot already landed; this pass lost the race
		return
	}
	*applied = seq
	if kind == models.ChatGroup {
		h.group = views
	} else {
		h.private = views
	}
	h.publishLocked()
}

func (h *Handle) viewLocked() View {
	activeP, archivedP := split(h.private)
	activeG, archivedG := split(h.group)
	return View{
		Private:  activeP,
		Group:    activeG,
		Archived: append(append([]ChatView{}, archivedP...), archivedG...),
	}
}

// publishLocked pushes the current view without blocking: a pending
// undelivered view is dropped in favor of the newer one.
func (h *Handle) publishLocked() {
	if h.released {
		return
	}
	select {
	case <-h.out:
	default:
	}
	h.out <- h.viewLocked()
}
