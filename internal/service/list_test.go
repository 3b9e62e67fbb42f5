package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/todolists/internal/apperror"
	"github.com/sakif/todolists/internal/metrics"
	"github.com/sakif/todolists/internal/validation"
)

func newTestListService(store *fakeStore) *ListService {
	return NewListService(store, nil, discardLogger())
}

// problemsOf extracts field errors, failing the test if err isn't a validation failure.
func problemsOf(t *testing.T, err error) validation.Errors {
	t.Helper()
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want a validation failure", err)
	}
	errs, ok := validation.FromError(err)
	if !ok {
		t.Fatalf("FromError(%v) ok = false", err)
	}
	return errs
}

func TestCreateList(t *testing.T) {
	store := newFakeStore()
	svc := newTestListService(store)

	list, err := svc.CreateList(context.Background(), "  Buy peacock feathers  ", nil)
	if err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}
	if list.Name() != "Buy peacock feathers" {
		t.Errorf("Name() = %q, want trimmed first item text", list.Name())
	}
	if list.Owner != nil {
		t.Errorf("Owner = %+v, want nil for anonymous list", list.Owner)
	}
	if len(store.lists) != 1 {
		t.Errorf("stored lists = %d, want 1", len(store.lists))
	}
}

func TestCreateList_WithOwner(t *testing.T) {
	store := newFakeStore()
	owner := store.addUser("edith@example.com")

	list, err := newTestListService(store).CreateList(context.Background(), "Get help", owner)
	if err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}
	if !list.IsOwnedBy(owner.ID) {
		t.Errorf("list not owned by %s", owner.ID)
	}
}

func TestCreateList_BlankTextSavesNothing(t *testing.T) {
	store := newFakeStore()
	svc := newTestListService(store)

	for _, text := range []string{"", "   "} {
		_, err := svc.CreateList(context.Background(), text, nil)
		errs := problemsOf(t, err)
		if got := errs.Messages(validation.FieldText); len(got) != 1 || got[0] != validation.EmptyItemError {
			t.Errorf("CreateList(%q) messages = %v", text, got)
		}
	}
	if len(store.lists) != 0 {
		t.Errorf("stored lists = %d, want 0", len(store.lists))
	}
}

func TestAddItem(t *testing.T) {
	store := newFakeStore()
	svc := newTestListService(store)
	list, _ := svc.CreateList(context.Background(), "Buy milk", nil)

	item, err := svc.AddItem(context.Background(), list.ID, "Make tea")
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if item.ListID != list.ID || item.Text != "Make tea" {
		t.Errorf("AddItem() = %+v", item)
	}

	got, _ := svc.GetList(context.Background(), list.ID)
	if got.Name() != "Buy milk" || len(got.Items) != 2 {
		t.Errorf("list after AddItem: name %q, %d items", got.Name(), len(got.Items))
	}
}

func TestAddItem_Duplicate(t *testing.T) {
	store := newFakeStore()
	svc := newTestListService(store)
	list, _ := svc.CreateList(context.Background(), "Buy milk", nil)

	_, err := svc.AddItem(context.Background(), list.ID, "Buy milk")
	errs := problemsOf(t, err)
	if !errs.Has(validation.FieldText, validation.Duplicate) {
		t.Errorf("errors = %v, want Duplicate on text", errs)
	}
	if n := len(store.lists[list.ID].Items); n != 1 {
		t.Errorf("items = %d, want 1", n)
	}
}

func TestAddItem_Blank(t *testing.T) {
	store := newFakeStore()
	svc := newTestListService(store)
	list, _ := svc.CreateList(context.Background(), "Buy milk", nil)

	_, err := svc.AddItem(context.Background(), list.ID, "")
	if errs := problemsOf(t, err); !errs.Has(validation.FieldText, validation.Required) {
		t.Errorf("errors = %v, want Required on text", errs)
	}
}

func TestAddItem_StorageConflictBecomesDuplicate(t *testing.T) {
	store := newFakeStore()
	svc := newTestListService(store)
	list, _ := svc.CreateList(context.Background(), "Buy milk", nil)
	store.addItemErr = apperror.Conflict("item", "text")

	_, err := svc.AddItem(context.Background(), list.ID, "Make tea")
	if errs := problemsOf(t, err); !errs.Has(validation.FieldText, validation.Duplicate) {
		t.Errorf("errors = %v, want Duplicate on text", errs)
	}
}

func TestAddItem_UnknownList(t *testing.T) {
	svc := newTestListService(newFakeStore())

	_, err := svc.AddItem(context.Background(), "missing", "x")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("AddItem() error = %v, want ErrNotFound", err)
	}
}

func TestGetList_NotFound(t *testing.T) {
	svc := newTestListService(newFakeStore())

	for _, id := range []string{"", "missing"} {
		if _, err := svc.GetList(context.Background(), id); !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("GetList(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestListsVisibleTo(t *testing.T) {
	store := newFakeStore()
	svc := newTestListService(store)
	edith := store.addUser("edith@example.com")
	oni := store.addUser("oni@example.com")

	svc.CreateList(context.Background(), "Edith's", edith)
	shared, _ := svc.CreateList(context.Background(), "Oni's", oni)
	svc.CreateList(context.Background(), "Anonymous", nil)
	store.AddSharee(context.Background(), shared.ID, edith.ID)

	lists, err := svc.ListsVisibleTo(context.Background(), edith)
	if err != nil {
		t.Fatalf("ListsVisibleTo() error = %v", err)
	}
	if len(lists) != 2 {
		t.Errorf("ListsVisibleTo() = %d lists, want 2", len(lists))
	}

	none, err := svc.ListsVisibleTo(context.Background(), nil)
	if err != nil || len(none) != 0 {
		t.Errorf("ListsVisibleTo(nil) = %v, %v; want empty", none, err)
	}
}

func TestDeleteItem(t *testing.T) {
	store := newFakeStore()
	m := metrics.New()
	svc := NewListService(store, m, discardLogger())
	list, _ := svc.CreateList(context.Background(), "Buy milk", nil)
	second, _ := svc.AddItem(context.Background(), list.ID, "Make tea")

	deleted, err := svc.DeleteItem(context.Background(), list.ID, second.ID)
	if err != nil || deleted {
		t.Fatalf("DeleteItem(second) = %v, %v; want false, nil", deleted, err)
	}

	deleted, err = svc.DeleteItem(context.Background(), list.ID, list.Items[0].ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteItem(last) = %v, %v; want true, nil", deleted, err)
	}
	if _, err := svc.GetList(context.Background(), list.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetList() after cascade error = %v, want ErrNotFound", err)
	}
}

func TestDeleteItem_NotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestListService(store)
	list, _ := svc.CreateList(context.Background(), "Buy milk", nil)

	if _, err := svc.DeleteItem(context.Background(), list.ID, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteItem() error = %v, want ErrNotFound", err)
	}
}
