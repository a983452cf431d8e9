package dashboard

import (
	"context"
	"errors"
	"io"
	"menudash/client"
	"menudash/model"
	"net/http"
	"strings"
	"sync"
	"testing"
)

// fakeRemote is an in-memory foods API.
type fakeRemote struct {
	mu      sync.Mutex
	foods   []model.FoodItem
	nextID  uint
	calls   []string
	fail    map[string]error
	block   chan struct{} // when set, Update waits on it
	entered chan struct{}

	lastCreate model.FoodInput
	lastUpdate model.FoodItem
}

func newFakeRemote(foods ...model.FoodItem) *fakeRemote {
	f := &fakeRemote{fail: map[string]error{}, nextID: 100}
	f.foods = append(f.foods, foods...)
	return f
}

func (f *fakeRemote) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail[call]
}

func (f *fakeRemote) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeRemote) setFail(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, call)
		return
	}
	f.fail[call] = err
}

func (f *fakeRemote) List(ctx context.Context) ([]model.FoodItem, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.FoodItem(nil), f.foods...), nil
}

func (f *fakeRemote) Create(ctx context.Context, in model.FoodInput) (model.FoodItem, error) {
	if err := f.record("create"); err != nil {
		return model.FoodItem{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreate = in
	f.nextID++
	item := model.FoodItem{
		ID:          f.nextID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Available:   in.Available,
		Image:       in.Image,
	}
	f.foods = append(f.foods, item)
	return item, nil
}

func (f *fakeRemote) Update(ctx context.Context, id uint, item model.FoodItem) (model.FoodItem, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if err := f.record("update"); err != nil {
		return model.FoodItem{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = item
	for i := range f.foods {
		if f.foods[i].ID == id {
			item.ID = id
			f.foods[i] = item
			return item, nil
		}
	}
	return model.FoodItem{}, &client.ServerError{Op: "update food", StatusCode: http.StatusNotFound, Message: "Food not found"}
}

func (f *fakeRemote) Remove(ctx context.Context, id uint) error {
	if err := f.record("remove"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.foods {
		if f.foods[i].ID == id {
			f.foods = append(f.foods[:i], f.foods[i+1:]...)
			return nil
		}
	}
	return &client.ServerError{Op: "delete food", StatusCode: http.StatusNotFound, Message: "Food not found"}
}

func (f *fakeRemote) Import(ctx context.Context, filename string, r io.Reader) ([]model.FoodItem, error) {
	if err := f.record("import"); err != nil {
		return nil, err
	}
	data, _ := io.ReadAll(r)
	var created []model.FoodItem
	for _, name := range strings.Split(string(data), ",") {
		item, _ := f.Create(ctx, model.FoodInput{NewFoodItem: model.NewFoodItem{Name: name}, Available: true})
		created = append(created, item)
	}
	return created, nil
}

var errNetwork = &client.TransportError{Op: "test", URL: "http://api", Err: errors.New("connection refused")}

func pizza() model.FoodItem {
	return model.FoodItem{ID: 1, Name: "Pizza", Description: "Cheese", Price: 12.5, Available: true, Image: "pizza.png"}
}

func loadedController(t *testing.T, foods ...model.FoodItem) (*Controller, *fakeRemote) {
	t.Helper()
	remote := newFakeRemote(foods...)
	c := NewController(remote, nil)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return c, remote
}

func strPtr(s string) *string { return &s }

func TestLoadOnce(t *testing.T) {
	c, remote := loadedController(t, pizza())
	ctx := context.Background()

	if err := c.Load(ctx); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if n := remote.callCount("list"); n != 1 {
		t.Errorf("list calls = %d, want 1", n)
	}
	if items := c.Items(); len(items) != 1 || items[0] != pizza() {
		t.Errorf("Items() = %+v", items)
	}
	v, ok := c.View(1)
	if !ok || !v.Available || v.Pending {
		t.Errorf("View(1) = %+v, %v", v, ok)
	}
}

func TestLoadFailureCanBeRetried(t *testing.T) {
	remote := newFakeRemote(pizza())
	remote.setFail("list", errNetwork)
	c := NewController(remote, nil)
	ctx := context.Background()

	if err := c.Load(ctx); err == nil {
		t.Fatal("expected load error")
	}
	if c.Loaded() {
		t.Error("controller should not be loaded after a failure")
	}

	notices := c.Notices()
	if len(notices) != 1 || notices[0].Op != OpLoad || !notices[0].Retryable {
		t.Fatalf("notices = %+v, want one retryable load notice", notices)
	}

	remote.setFail("list", nil)
	if out := c.Retry(ctx, notices[0].ID); !out.OK() || out.Op != OpLoad {
		t.Fatalf("retry = %+v", out)
	}
	if !c.Loaded() || len(c.Items()) != 1 {
		t.Errorf("loaded = %v, items = %v", c.Loaded(), c.Items())
	}
	if len(c.Notices()) != 0 {
		t.Errorf("notices after load = %+v", c.Notices())
	}
}

func TestRepeatedLoadFailuresKeepOneNotice(t *testing.T) {
	remote := newFakeRemote(pizza())
	remote.setFail("list", errNetwork)
	c := NewController(remote, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = c.Load(ctx)
	}
	if n := c.Notices(); len(n) != 1 {
		t.Fatalf("notices = %+v", n)
	}

	remote.setFail("list", nil)
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if n := c.Notices(); len(n) != 0 {
		t.Errorf("load notice should go once the list is loaded: %+v", n)
	}
}

func TestLoadDropsDuplicateIDs(t *testing.T) {
	dup := pizza()
	dup.Name = "Other"
	c, _ := loadedController(t, pizza(), dup)
	if items := c.Items(); len(items) != 1 || items[0].Name != "Pizza" {
		t.Errorf("Items() = %+v", items)
	}
}

func TestToggleScenario(t *testing.T) {
	c, remote := loadedController(t, model.FoodItem{ID: 1, Name: "Pizza", Available: true})
	remote.entered = make(chan struct{})
	remote.block = make(chan struct{})

	done := make(chan Outcome)
	go func() { done <- c.ToggleAvailability(context.Background(), 1) }()

	<-remote.entered
	v, _ := c.View(1)
	if v.Available || !v.Pending {
		t.Errorf("view while in flight = %+v, want unavailable and pending", v)
	}
	close(remote.block)

	out := <-done
	if !out.OK() {
		t.Fatalf("toggle failed: %v", out.Err)
	}
	if remote.lastUpdate.Available || remote.lastUpdate.Name != "Pizza" {
		t.Errorf("PUT body = %+v, want full entity with available=false", remote.lastUpdate)
	}
	items := c.Items()
	if len(items) != 1 || items[0].Available {
		t.Errorf("Items() = %+v, want one unavailable pizza", items)
	}
	if v, _ := c.View(1); v.Available || v.Pending {
		t.Errorf("view after confirm = %+v", v)
	}
}

func TestToggleTwiceRestoresOriginal(t *testing.T) {
	c, _ := loadedController(t, pizza())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if out := c.ToggleAvailability(ctx, 1); !out.OK() {
			t.Fatalf("toggle %d: %v", i, out.Err)
		}
	}
	v, _ := c.View(1)
	if !v.Available || c.Items()[0].Available != pizza().Available {
		t.Errorf("after two toggles view = %+v, item = %+v", v, c.Items()[0])
	}
}

func TestToggleFailureRollsBack(t *testing.T) {
	c, remote := loadedController(t, pizza())
	remote.setFail("update", errNetwork)

	out := c.ToggleAvailability(context.Background(), 1)
	var te *client.TransportError
	if !errors.As(out.Err, &te) {
		t.Fatalf("Err = %v, want TransportError", out.Err)
	}

	v, _ := c.View(1)
	if !v.Available || v.Pending || v.Err == "" {
		t.Errorf("view = %+v, want rolled back with error", v)
	}
	if !c.Items()[0].Available {
		t.Error("list entry must not change on failure")
	}

	notices := c.Notices()
	if len(notices) != 1 || !notices[0].Retryable || notices[0].Op != OpToggle || notices[0].FoodID != 1 {
		t.Fatalf("notices = %+v", notices)
	}

	remote.setFail("update", nil)
	if out := c.Retry(context.Background(), notices[0].ID); !out.OK() {
		t.Fatalf("retry: %v", out.Err)
	}
	if v, _ := c.View(1); v.Available || v.Err != "" {
		t.Errorf("view after retry = %+v", v)
	}
	if len(c.Notices()) != 0 {
		t.Error("retry should consume the notice")
	}
}

func TestToggleUnknownFood(t *testing.T) {
	c, remote := loadedController(t, pizza())
	out := c.ToggleAvailability(context.Background(), 99)
	if !errors.Is(out.Err, ErrUnknownFood) || !out.Rejected() {
		t.Errorf("Err = %v", out.Err)
	}
	if remote.callCount("update") != 0 {
		t.Error("no remote call expected")
	}
}

func TestInFlightRejectsSecondMutation(t *testing.T) {
	c, remote := loadedController(t, pizza())
	remote.entered = make(chan struct{}, 1)
	remote.block = make(chan struct{})

	done := make(chan Outcome)
	go func() { done <- c.ToggleAvailability(context.Background(), 1) }()
	<-remote.entered

	ctx := context.Background()
	if out := c.ToggleAvailability(ctx, 1); !errors.Is(out.Err, ErrInFlight) {
		t.Errorf("second toggle Err = %v, want ErrInFlight", out.Err)
	}
	if out := c.Delete(ctx, 1); !errors.Is(out.Err, ErrInFlight) {
		t.Errorf("delete Err = %v, want ErrInFlight", out.Err)
	}
	if err := c.OpenEditModal(1); err != nil {
		t.Fatal(err)
	}
	if out := c.SubmitEdit(ctx, model.EditDraft{Name: strPtr("x")}); !errors.Is(out.Err, ErrInFlight) {
		t.Errorf("edit Err = %v, want ErrInFlight", out.Err)
	}

	close(remote.block)
	if out := <-done; !out.OK() {
		t.Fatalf("first toggle failed: %v", out.Err)
	}
	if n := remote.callCount("update"); n != 1 {
		t.Errorf("update calls = %d, want 1", n)
	}
	if n := remote.callCount("remove"); n != 0 {
		t.Errorf("remove calls = %d, want 0", n)
	}
	for _, n := range c.Notices() {
		if n.Retryable {
			t.Errorf("rejection notice should not be retryable: %+v", n)
		}
	}
}

func TestRepeatedRejectionsKeepOneNotice(t *testing.T) {
	c, remote := loadedController(t, pizza(), model.FoodItem{ID: 2, Name: "Soup", Available: true})
	remote.entered = make(chan struct{}, 1)
	remote.block = make(chan struct{})

	done := make(chan Outcome)
	go func() { done <- c.ToggleAvailability(context.Background(), 1) }()
	<-remote.entered

	for i := 0; i < 50; i++ {
		if out := c.ToggleAvailability(context.Background(), 1); !errors.Is(out.Err, ErrInFlight) {
			t.Fatalf("toggle %d Err = %v, want ErrInFlight", i, out.Err)
		}
	}
	if out := c.Delete(context.Background(), 1); !errors.Is(out.Err, ErrInFlight) {
		t.Fatalf("delete Err = %v", out.Err)
	}

	notices := c.Notices()
	if len(notices) != 2 {
		t.Fatalf("notices = %+v, want one toggle and one delete notice", notices)
	}
	if notices[0].Op != OpToggle || notices[1].Op != OpDelete {
		t.Errorf("notice ops = %s, %s", notices[0].Op, notices[1].Op)
	}

	close(remote.block)
	if out := <-done; !out.OK() {
		t.Fatalf("first toggle failed: %v", out.Err)
	}
}

func TestAddForcesAvailability(t *testing.T) {
	c, remote := loadedController(t, pizza())
	c.OpenAddModal()

	draft := model.NewFoodItem{Name: "Soup", Description: "Hot", Price: 4, Image: "soup.png"}
	out := c.Add(context.Background(), draft)
	if !out.OK() {
		t.Fatalf("Add() error = %v", out.Err)
	}
	if !remote.lastCreate.Available {
		t.Error("create body must carry available=true")
	}

	items := c.Items()
	if len(items) != 2 || items[0] != pizza() {
		t.Fatalf("Items() = %+v", items)
	}
	added := items[1]
	if added.ID != out.Item.ID || added.ID == 0 || !added.Available || added.Name != "Soup" {
		t.Errorf("added = %+v", added)
	}
	count := 0
	for _, it := range items {
		if it.ID == added.ID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("new item appears %d times", count)
	}
	s := c.Snapshot()
	if s.AddOpen || s.AddDraft != nil {
		t.Errorf("add modal should close: %+v", s)
	}
	if v, ok := c.View(added.ID); !ok || !v.Available {
		t.Errorf("new card view = %+v, %v", v, ok)
	}
}

func TestAddFailureKeepsDraft(t *testing.T) {
	c, remote := loadedController(t, pizza())
	remote.setFail("create", &client.ServerError{Op: "create food", StatusCode: 500, Message: "db down"})
	c.OpenAddModal()

	draft := model.NewFoodItem{Name: "Soup", Price: 4}
	out := c.Add(context.Background(), draft)
	var se *client.ServerError
	if !errors.As(out.Err, &se) {
		t.Fatalf("Err = %v, want ServerError", out.Err)
	}

	s := c.Snapshot()
	if !s.AddOpen || s.AddDraft == nil || *s.AddDraft != draft {
		t.Errorf("state = %+v, want open modal with kept draft", s)
	}
	if len(s.Cards) != 1 {
		t.Errorf("cards = %d, want 1", len(s.Cards))
	}
	if len(s.Notices) != 1 || !strings.Contains(s.Notices[0].Message, "db down") {
		t.Errorf("notices = %+v", s.Notices)
	}

	remote.setFail("create", nil)
	if out := c.Retry(context.Background(), s.Notices[0].ID); !out.OK() {
		t.Fatalf("retry: %v", out.Err)
	}
	s = c.Snapshot()
	if len(s.Cards) != 2 || s.AddOpen || s.AddDraft != nil {
		t.Errorf("after retry state = %+v", s)
	}
}

func TestEditMergesDraft(t *testing.T) {
	soup := model.FoodItem{ID: 2, Name: "Soup", Price: 4, Available: true}
	c, _ := loadedController(t, pizza(), soup)

	if err := c.OpenEditModal(1); err != nil {
		t.Fatal(err)
	}
	if c.EditState() != Editing {
		t.Fatalf("state = %v, want editing", c.EditState())
	}

	out := c.SubmitEdit(context.Background(), model.EditDraft{Name: strPtr("Calzone"), Description: strPtr("")})
	if !out.OK() {
		t.Fatalf("SubmitEdit() error = %v", out.Err)
	}

	want := pizza()
	want.Name = "Calzone"
	want.Description = ""
	items := c.Items()
	if len(items) != 2 || items[0] != want || items[1] != soup {
		t.Errorf("Items() = %+v, want [%+v %+v]", items, want, soup)
	}
	if c.EditState() != Idle {
		t.Errorf("state = %v, want idle after success", c.EditState())
	}
	if _, ok := c.Editing(); ok {
		t.Error("edit target should be cleared")
	}
}

func TestEditWithoutTargetIsNoop(t *testing.T) {
	c, remote := loadedController(t, pizza())

	out := c.SubmitEdit(context.Background(), model.EditDraft{Name: strPtr("x")})
	if !errors.Is(out.Err, ErrNoEditTarget) || !out.Rejected() {
		t.Errorf("Err = %v, want ErrNoEditTarget", out.Err)
	}
	if remote.callCount("update") != 0 {
		t.Error("no remote call expected")
	}
	if items := c.Items(); len(items) != 1 || items[0] != pizza() {
		t.Errorf("Items() = %+v", items)
	}
	if len(c.Notices()) != 0 {
		t.Error("missing edit target should not raise a notice")
	}
}

func TestEditCancelReturnsToIdle(t *testing.T) {
	c, remote := loadedController(t, pizza())
	if err := c.OpenEditModal(1); err != nil {
		t.Fatal(err)
	}
	c.CloseEditModal()
	if c.EditState() != Idle {
		t.Errorf("state = %v, want idle", c.EditState())
	}
	if out := c.SubmitEdit(context.Background(), model.EditDraft{}); !errors.Is(out.Err, ErrNoEditTarget) {
		t.Errorf("Err = %v", out.Err)
	}
	if remote.callCount("update") != 0 {
		t.Error("no remote call expected")
	}
	if err := c.OpenEditModal(42); !errors.Is(err, ErrUnknownFood) {
		t.Errorf("OpenEditModal(42) = %v", err)
	}
}

func TestEditFailureKeepsModalOpen(t *testing.T) {
	c, remote := loadedController(t, pizza())
	remote.setFail("update", errNetwork)
	if err := c.OpenEditModal(1); err != nil {
		t.Fatal(err)
	}

	out := c.SubmitEdit(context.Background(), model.EditDraft{Name: strPtr("Calzone")})
	if out.OK() {
		t.Fatal("expected failure")
	}
	if c.EditState() != Editing {
		t.Error("modal should stay open")
	}
	if c.Items()[0] != pizza() {
		t.Error("list must not change on failure")
	}
}

func TestEditRemountsView(t *testing.T) {
	c, _ := loadedController(t, pizza())
	if err := c.OpenEditModal(1); err != nil {
		t.Fatal(err)
	}
	unavailable := false
	if out := c.SubmitEdit(context.Background(), model.EditDraft{Available: &unavailable}); !out.OK() {
		t.Fatal(out.Err)
	}
	if v, _ := c.View(1); v.Available {
		t.Errorf("view = %+v, want remounted from edited entity", v)
	}
}

func TestDelete(t *testing.T) {
	soup := model.FoodItem{ID: 2, Name: "Soup"}
	c, _ := loadedController(t, pizza(), soup)
	if err := c.OpenEditModal(1); err != nil {
		t.Fatal(err)
	}

	if out := c.Delete(context.Background(), 1); !out.OK() {
		t.Fatalf("Delete() error = %v", out.Err)
	}
	items := c.Items()
	if len(items) != 1 || items[0] != soup {
		t.Errorf("Items() = %+v", items)
	}
	if _, ok := c.View(1); ok {
		t.Error("view of deleted food should be gone")
	}
	if c.EditState() != Idle {
		t.Error("deleting the edit target should leave the edit modal")
	}
}

func TestDeleteFailureKeepsEntry(t *testing.T) {
	c, remote := loadedController(t, pizza())
	remote.setFail("remove", errNetwork)

	out := c.Delete(context.Background(), 1)
	if out.OK() {
		t.Fatal("expected failure")
	}
	if items := c.Items(); len(items) != 1 || items[0] != pizza() {
		t.Errorf("Items() = %+v", items)
	}

	notices := c.Notices()
	if len(notices) != 1 {
		t.Fatalf("notices = %+v", notices)
	}
	if !c.Dismiss(notices[0].ID) || len(c.Notices()) != 0 {
		t.Error("dismiss should remove the notice")
	}
	if out := c.Retry(context.Background(), notices[0].ID); !errors.Is(out.Err, ErrNoticeNotFound) {
		t.Errorf("retry of dismissed notice = %v", out.Err)
	}
}

func TestImportAppends(t *testing.T) {
	c, remote := loadedController(t, pizza())
	remote.setFail("import", errNetwork)

	out := c.Import(context.Background(), "menu.xlsx", strings.NewReader("Burger,Salad"))
	if out.OK() {
		t.Fatal("expected failure")
	}
	remote.setFail("import", nil)

	n := c.Notices()
	if len(n) != 1 {
		t.Fatalf("notices = %+v", n)
	}
	out = c.Retry(context.Background(), n[0].ID)
	if !out.OK() || len(out.Items) != 2 {
		t.Fatalf("retry = %+v", out)
	}
	items := c.Items()
	if len(items) != 3 || items[1].Name != "Burger" || items[2].Name != "Salad" {
		t.Errorf("Items() = %+v", items)
	}
}

func TestConcurrentTogglesOnDifferentFoods(t *testing.T) {
	var foods []model.FoodItem
	for i := uint(1); i <= 20; i++ {
		foods = append(foods, model.FoodItem{ID: i, Name: "f", Available: true})
	}
	c, _ := loadedController(t, foods...)

	var wg sync.WaitGroup
	for i := uint(1); i <= 20; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			if out := c.ToggleAvailability(context.Background(), id); !out.OK() {
				t.Errorf("toggle %d: %v", id, out.Err)
			}
		}(i)
	}
	wg.Wait()

	for _, item := range c.Items() {
		if item.Available {
			t.Errorf("food %d still available", item.ID)
		}
	}
}
