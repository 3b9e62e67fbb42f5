package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/sakif/todolists/internal/apperror"
	"github.com/sakif/todolists/internal/model"
)

// fakeStore is an in-memory repository.UserRepository and
// repository.ListRepository. Set the *Err fields to simulate failures.
type fakeStore struct {
	users   map[string]*model.User
	lists   map[string]*model.List
	sharees map[string]map[string]bool // listID → userID set
	nextID  int
	nextSeq int64

	// addItemErr, when set, is returned by AddItem after nothing is stored.
	addItemErr    error
	createUserErr error
	getUserErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*model.User),
		lists:   make(map[string]*model.List),
		sharees: make(map[string]map[string]bool),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return prefix + "-" + strconv.Itoa(f.nextID)
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	if f.createUserErr != nil {
		return f.createUserErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", "email")
		}
	}
	user.ID = f.id("user")
	user.CreatedAt = time.Now()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) CreateList(_ context.Context, list *model.List, first *model.Item) error {
	list.ID = f.id("list")
	list.CreatedAt = time.Now()
	first.ListID = list.ID
	f.stamp(first)
	list.Items = []model.Item{*first}

	stored := *list
	f.lists[list.ID] = &stored
	return nil
}

func (f *fakeStore) stamp(item *model.Item) {
	item.ID = f.id("item")
	f.nextSeq++
	item.Seq = f.nextSeq
	item.CreatedAt = time.Now()
}

func (f *fakeStore) AddItem(_ context.Context, item *model.Item) error {
	if f.addItemErr != nil {
		return f.addItemErr
	}
	l, ok := f.lists[item.ListID]
	if !ok {
		return apperror.NotFound("list", item.ListID)
	}
	if l.HasItemText(item.Text) {
		return apperror.Conflict("item", "text")
	}
	f.stamp(item)
	l.Items = append(l.Items, *item)
	return nil
}

func (f *fakeStore) GetList(_ context.Context, id string) (*model.List, error) {
	l, ok := f.lists[id]
	if !ok {
		return nil, apperror.NotFound("list", id)
	}
	out := *l
	out.Items = append([]model.Item(nil), l.Items...)
	out.SharedWith = []model.User{}
	for userID := range f.sharees[id] {
		out.SharedWith = append(out.SharedWith, *f.users[userID])
	}
	sort.Slice(out.SharedWith, func(i, j int) bool { return out.SharedWith[i].Email < out.SharedWith[j].Email })
	return &out, nil
}

func (f *fakeStore) ListsVisibleTo(ctx context.Context, userID string) ([]model.List, error) {
	var lists []model.List
	for id, l := range f.lists {
		if l.IsOwnedBy(userID) || f.sharees[id][userID] {
			full, _ := f.GetList(ctx, id)
			lists = append(lists, *full)
		}
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].ID < lists[j].ID })
	return lists, nil
}

func (f *fakeStore) AddSharee(_ context.Context, listID, userID string) error {
	if f.sharees[listID] == nil {
		f.sharees[listID] = make(map[string]bool)
	}
	f.sharees[listID][userID] = true
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, listID, itemID string) (bool, error) {
	l, ok := f.lists[listID]
	if !ok {
		return false, apperror.NotFound("item", itemID)
	}
	for i, it := range l.Items {
		if it.ID == itemID {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			if len(l.Items) == 0 {
				delete(f.lists, listID)
				delete(f.sharees, listID)
				return true, nil
			}
			return false, nil
		}
	}
	return false, apperror.NotFound("item", itemID)
}

// addUser stores a user directly, bypassing validation and hashing.
func (f *fakeStore) addUser(email string) *model.User {
	u := &model.User{Email: email}
	f.CreateUser(context.Background(), u)
	return u
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
