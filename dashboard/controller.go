// Package dashboard holds the admin dashboard state and keeps it in sync with
// the foods API. The list is fetched once; afterwards every flow patches it
// locally once the API has confirmed the change.
package dashboard

import (
	"bytes"
	"context"
	"io"
	"menudash/model"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Remote is the foods API as the dashboard uses it. *client.Client satisfies it.
type Remote interface {
	List(ctx context.Context) ([]model.FoodItem, error)
	Create(ctx context.Context, in model.FoodInput) (model.FoodItem, error)
	Update(ctx context.Context, id uint, item model.FoodItem) (model.FoodItem, error)
	Remove(ctx context.Context, id uint) error
	Import(ctx context.Context, filename string, r io.Reader) ([]model.FoodItem, error)
}

type EditState int

const (
	Idle EditState = iota
	Editing
)

func (s EditState) String() string {
	if s == Editing {
		return "editing"
	}
	return "idle"
}

// ItemView is the per-card state. Available starts from the entity when the
// card is mounted and is only changed by the toggle afterwards.
type ItemView struct {
	Available bool
	Pending   bool
	Err       string
}

type Card struct {
	Item model.FoodItem
	View ItemView
}

type Notice struct {
	ID        int
	Op        Op
	FoodID    uint
	Message   string
	At        time.Time
	Retryable bool

	retry func(ctx context.Context) Outcome
}

// State is a copy of the controller state for rendering.
type State struct {
	Loaded   bool
	Cards    []Card
	AddOpen  bool
	AddDraft *model.NewFoodItem
	EditOpen bool
	Editing  *model.FoodItem
	Edit     EditState
	Notices  []Notice
}

type Controller struct {
	remote Remote
	log    *zap.Logger
	now    func() time.Time

	loadMu sync.Mutex

	mu         sync.Mutex
	loaded     bool
	items      []model.FoodItem
	views      map[uint]*ItemView
	editing    *model.FoodItem
	addOpen    bool
	editOpen   bool
	addDraft   *model.NewFoodItem
	inflight   map[string]struct{}
	notices    []Notice
	nextNotice int
}

func NewController(remote Remote, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		remote:   remote,
		log:      log,
		now:      time.Now,
		items:    []model.FoodItem{},
		views:    make(map[uint]*ItemView),
		inflight: make(map[string]struct{}),
	}
}

// Load fetches the list and replaces the local one wholesale. It only does
// so once: after a successful load further calls return nil immediately. A
// failed load leaves a retryable notice.
func (c *Controller) Load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return nil
	}

	items, err := c.remote.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.fail(OpLoad, 0, err, func(ctx context.Context) Outcome {
			return Outcome{Op: OpLoad, Err: c.Load(ctx)}
		})
		return err
	}
	c.dropNotices(OpLoad)

	c.items = make([]model.FoodItem, 0, len(items))
	c.views = make(map[uint]*ItemView, len(items))
	for _, item := range items {
		if _, dup := c.views[item.ID]; dup {
			c.log.Warn("duplicate food id in list", zap.Uint("food_id", item.ID))
			continue
		}
		c.items = append(c.items, item)
		c.mount(item)
	}
	c.loaded = true
	c.log.Info("foods loaded", zap.Int("count", len(c.items)))
	return nil
}

// Loaded reports whether the initial load has succeeded.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

func (c *Controller) Items() []model.FoodItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.FoodItem(nil), c.items...)
}

// View returns the card state of the food with the given id.
func (c *Controller) View(id uint) (ItemView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[id]
	if !ok {
		return ItemView{}, false
	}
	return *v, true
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Loaded:   c.loaded,
		Cards:    make([]Card, 0, len(c.items)),
		AddOpen:  c.addOpen,
		EditOpen: c.editOpen,
		Edit:     c.editState(),
		Notices:  append([]Notice(nil), c.notices...),
	}
	for _, item := range c.items {
		card := Card{Item: item}
		if v := c.views[item.ID]; v != nil {
			card.View = *v
		}
		s.Cards = append(s.Cards, card)
	}
	if c.addDraft != nil {
		d := *c.addDraft
		s.AddDraft = &d
	}
	if c.editing != nil {
		e := *c.editing
		s.Editing = &e
	}
	return s
}

func (c *Controller) OpenAddModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addOpen = true
}

// CloseAddModal cancels the add form and drops any kept draft.
func (c *Controller) CloseAddModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addOpen = false
	c.addDraft = nil
}

// OpenEditModal designates the food with the given id as the edit target.
// Opening while already editing replaces the target.
func (c *Controller) OpenEditModal(id uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return &PreconditionError{Op: OpEdit, FoodID: id, Err: ErrUnknownFood}
	}
	item := c.items[idx]
	c.editing = &item
	c.editOpen = true
	return nil
}

func (c *Controller) CloseEditModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeEdit()
}

func (c *Controller) EditState() EditState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editState()
}

// Editing returns the current edit target.
func (c *Controller) Editing() (model.FoodItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return model.FoodItem{}, false
	}
	return *c.editing, true
}

// Add creates a food. Availability is always sent as true whatever the form
// held. On failure the modal stays as it was and the draft is kept.
func (c *Controller) Add(ctx context.Context, draft model.NewFoodItem) Outcome {
	const key = "add"

	c.mu.Lock()
	if !c.begin(key) {
		c.mu.Unlock()
		return c.reject(OpAdd, 0, ErrInFlight)
	}
	c.mu.Unlock()

	item, err := c.remote.Create(ctx, model.FoodInput{NewFoodItem: draft, Available: true})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.end(key)

	if err != nil {
		d := draft
		c.addDraft = &d
		c.fail(OpAdd, 0, err, func(ctx context.Context) Outcome { return c.Add(ctx, draft) })
		return Outcome{Op: OpAdd, Err: err}
	}

	c.upsert(item)
	c.addOpen = false
	c.addDraft = nil
	return Outcome{Op: OpAdd, FoodID: item.ID, Item: item}
}

// Import uploads a workbook and appends the created foods.
func (c *Controller) Import(ctx context.Context, filename string, r io.Reader) Outcome {
	const key = "import"

	data, err := io.ReadAll(r)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.fail(OpImport, 0, err, nil)
		return Outcome{Op: OpImport, Err: err}
	}

	c.mu.Lock()
	if !c.begin(key) {
		c.mu.Unlock()
		return c.reject(OpImport, 0, ErrInFlight)
	}
	c.mu.Unlock()

	items, err := c.remote.Import(ctx, filename, bytes.NewReader(data))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.end(key)

	if err != nil {
		c.fail(OpImport, 0, err, func(ctx context.Context) Outcome {
			return c.Import(ctx, filename, bytes.NewReader(data))
		})
		return Outcome{Op: OpImport, Err: err}
	}

	for _, item := range items {
		c.upsert(item)
	}
	return Outcome{Op: OpImport, Items: items}
}

// SubmitEdit merges draft over the edit target and saves it. Without a
// target it returns an ErrNoEditTarget precondition error and does nothing.
func (c *Controller) SubmitEdit(ctx context.Context, draft model.EditDraft) Outcome {
	c.mu.Lock()
	if c.editing == nil {
		c.mu.Unlock()
		return Outcome{Op: OpEdit, Err: &PreconditionError{Op: OpEdit, Err: ErrNoEditTarget}}
	}
	target := *c.editing
	c.mu.Unlock()

	return c.update(ctx, target, draft)
}

func (c *Controller) update(ctx context.Context, target model.FoodItem, draft model.EditDraft) Outcome {
	key := foodKey(target.ID)

	c.mu.Lock()
	if !c.begin(key) {
		c.mu.Unlock()
		return c.reject(OpEdit, target.ID, ErrInFlight)
	}
	base := target
	if idx := c.indexOf(target.ID); idx >= 0 {
		base = c.items[idx]
	}
	c.mu.Unlock()

	merged := model.Merge(base, draft)
	updated, err := c.remote.Update(ctx, target.ID, merged)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.end(key)

	if err != nil {
		c.fail(OpEdit, target.ID, err, func(ctx context.Context) Outcome { return c.update(ctx, target, draft) })
		return Outcome{Op: OpEdit, FoodID: target.ID, Err: err}
	}

	if idx := c.indexOf(updated.ID); idx >= 0 {
		c.items[idx] = updated
		c.mount(updated)
	}
	if c.editing != nil && c.editing.ID == target.ID {
		c.closeEdit()
	}
	return Outcome{Op: OpEdit, FoodID: updated.ID, Item: updated}
}

// Delete removes the food on the API first and only then from the list.
func (c *Controller) Delete(ctx context.Context, id uint) Outcome {
	key := foodKey(id)

	c.mu.Lock()
	if !c.begin(key) {
		c.mu.Unlock()
		return c.reject(OpDelete, id, ErrInFlight)
	}
	c.mu.Unlock()

	err := c.remote.Remove(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.end(key)

	if err != nil {
		c.fail(OpDelete, id, err, func(ctx context.Context) Outcome { return c.Delete(ctx, id) })
		return Outcome{Op: OpDelete, FoodID: id, Err: err}
	}

	if idx := c.indexOf(id); idx >= 0 {
		c.items = append(c.items[:idx], c.items[idx+1:]...)
	}
	delete(c.views, id)
	if c.editing != nil && c.editing.ID == id {
		c.closeEdit()
	}
	return Outcome{Op: OpDelete, FoodID: id}
}

// ToggleAvailability flips the card's flag at once and marks it pending until
// the API confirms. A failed confirmation restores the previous value.
func (c *Controller) ToggleAvailability(ctx context.Context, id uint) Outcome {
	key := foodKey(id)

	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return Outcome{Op: OpToggle, FoodID: id, Err: &PreconditionError{Op: OpToggle, FoodID: id, Err: ErrUnknownFood}}
	}
	if !c.begin(key) {
		c.mu.Unlock()
		return c.reject(OpToggle, id, ErrInFlight)
	}
	view := c.views[id]
	previous := view.Available
	view.Available = !previous
	view.Pending = true
	view.Err = ""
	payload := c.items[idx]
	payload.Available = view.Available
	c.mu.Unlock()

	updated, err := c.remote.Update(ctx, id, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.end(key)

	view = c.views[id]
	if err != nil {
		if view != nil {
			view.Available = previous
			view.Pending = false
			view.Err = err.Error()
		}
		c.fail(OpToggle, id, err, func(ctx context.Context) Outcome { return c.ToggleAvailability(ctx, id) })
		return Outcome{Op: OpToggle, FoodID: id, Err: err}
	}

	if idx := c.indexOf(updated.ID); idx >= 0 {
		c.items[idx] = updated
	}
	if view != nil {
		view.Available = updated.Available
		view.Pending = false
	}
	return Outcome{Op: OpToggle, FoodID: id, Item: updated}
}

func (c *Controller) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

func (c *Controller) Dismiss(noticeID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.takeNotice(noticeID)
	return ok
}

// Retry dismisses a retryable notice and runs its operation again with the
// same arguments.
func (c *Controller) Retry(ctx context.Context, noticeID int) Outcome {
	c.mu.Lock()
	var retry func(context.Context) Outcome
	for _, n := range c.notices {
		if n.ID == noticeID && n.retry != nil {
			retry = n.retry
			c.takeNotice(noticeID)
			break
		}
	}
	c.mu.Unlock()

	if retry == nil {
		return Outcome{Err: ErrNoticeNotFound}
	}
	return retry(ctx)
}

// The helpers below expect c.mu to be held.

func (c *Controller) editState() EditState {
	if c.editOpen && c.editing != nil {
		return Editing
	}
	return Idle
}

func (c *Controller) closeEdit() {
	c.editOpen = false
	c.editing = nil
}

func (c *Controller) indexOf(id uint) int {
	for i, item := range c.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) mount(item model.FoodItem) {
	c.views[item.ID] = &ItemView{Available: item.Available}
}

// upsert appends item, or replaces the entry with the same id so ids stay
// unique.
func (c *Controller) upsert(item model.FoodItem) {
	if idx := c.indexOf(item.ID); idx >= 0 {
		c.items[idx] = item
	} else {
		c.items = append(c.items, item)
	}
	c.mount(item)
}

func foodKey(id uint) string {
	return "food:" + strconv.FormatUint(uint64(id), 10)
}

func (c *Controller) begin(key string) bool {
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Controller) end(key string) {
	delete(c.inflight, key)
}

func (c *Controller) fail(op Op, id uint, err error, retry func(context.Context) Outcome) {
	c.log.Error("food flow failed", zap.String("op", string(op)), zap.Uint("food_id", id), zap.Error(err))
	c.addNotice(op, id, err, retry)
}

// reject records a notice for a request refused before reaching the API. It
// takes c.mu itself.
func (c *Controller) reject(op Op, id uint, err error) Outcome {
	pe := &PreconditionError{Op: op, FoodID: id, Err: err}
	c.log.Warn("food flow rejected", zap.String("op", string(op)), zap.Uint("food_id", id), zap.Error(err))

	c.mu.Lock()
	c.addNotice(op, id, pe, nil)
	c.mu.Unlock()
	return Outcome{Op: op, FoodID: id, Err: pe}
}

// addNotice keeps at most one notice per op and food: a repeat replaces the
// earlier one.
func (c *Controller) addNotice(op Op, id uint, err error, retry func(context.Context) Outcome) {
	for i, n := range c.notices {
		if n.Op == op && n.FoodID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			break
		}
	}
	c.nextNotice++
	c.notices = append(c.notices, Notice{
		ID:        c.nextNotice,
		Op:        op,
		FoodID:    id,
		Message:   err.Error(),
		At:        c.now(),
		Retryable: retry != nil,
		retry:     retry,
	})
}

func (c *Controller) dropNotices(op Op) {
	kept := c.notices[:0]
	for _, n := range c.notices {
		if n.Op != op {
			kept = append(kept, n)
		}
	}
	c.notices = kept
}

func (c *Controller) takeNotice(id int) (Notice, bool) {
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return n, true
		}
	}
	return Notice{}, false
}
