package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
)

// Store is the persistence the catalog service needs.
type Store interface {
	registrystore.IdentityStore
	registrystore.ItemStore
	DeleteShareLink(ctx context.Context, userID, category string) error
}

// Service implements the item lifecycle for one request's user.
// The *model.User arguments must be freshly loaded for the request.
type Service struct {
	store     Store
	allocator *Allocator
}

// NewService returns a Service over store.
func NewService(store Store) *Service {
	return &Service{store: store, allocator: NewAllocator(store)}
}

// Allocator returns the service's sequence allocator.
func (s *Service) Allocator() *Allocator {
	return s.allocator
}

// NewItem is the input of CreateItem.
type NewItem struct {
	Category    string
	Title       string
	Tier        string
	ToDo        bool
	Year        *time.Time
	Tags        []string
	Description string
}

// ItemPatch is the input of UpdateItem. Nil fields are left unchanged.
type ItemPatch = registrystore.ItemUpdate

func resolve(user *model.User, category string) (model.BucketRef, error) {
	ref, ok := user.Ref(category)
	if !ok {
		return model.BucketRef{}, &registrystore.NotFoundError{Resource: "category", ID: category}
	}
	return ref, nil
}

// CreateItem allocates a sequence number, appends the item to the end of its
// tier list and persists it. If the insert fails the number stays burned.
func (s *Service) CreateItem(ctx context.Context, user *model.User, in NewItem) (*model.Item, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &registrystore.ValidationError{Field: "title", Message: "title is required"}
	}
	if err := validateTierKey(in.Tier); err != nil {
		return nil, err
	}
	ref, ok := user.Ref(in.Category)
	if !ok {
		return nil, &registrystore.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", in.Category)}
	}

	seq, err := s.allocator.Allocate(ctx, user.ID, ref)
	if err != nil {
		return nil, err
	}
	item := &model.Item{
		UserID:      user.ID,
		Category:    in.Category,
		ID:          seq,
		Title:       title,
		Tier:        in.Tier,
		ToDo:        in.ToDo,
		Year:        in.Year,
		Tags:        NormalizeTags(in.Tags),
		Description: in.Description,
	}
	item.OrderIndex, err = PlaceAtEnd(ctx, s.store, item.Key())
	if err != nil {
		log.Warn("Sequence number burned", "user", user.ID, "category", in.Category, "id", seq, "err", err)
		return nil, err
	}
	if err := s.store.InsertItem(ctx, item); err != nil {
		log.Warn("Sequence number burned", "user", user.ID, "category", in.Category, "id", seq, "err", err)
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, userID, category string, id int64) (*model.Item, error) {
	return s.store.GetItem(ctx, userID, category, id)
}

// ListItems returns one list of a category in display order, plus the
// distinct tags used in it.
func (s *Service) ListItems(ctx context.Context, userID, category string, toDo bool) ([]model.Item, []string, error) {
	items, err := s.store.ListItems(ctx, registrystore.ItemQuery{UserID: userID, Category: category, ToDo: &toDo})
	if err != nil {
		return nil, nil, err
	}
	return items, model.UniqueTags(items), nil
}

// UpdateItem applies patch. When the item moves to another tier or list and
// no orderIndex is given, it is appended to the end of its new list.
func (s *Service) UpdateItem(ctx context.Context, userID, category string, id int64, patch ItemPatch) (*model.Item, error) {
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return nil, &registrystore.ValidationError{Field: "title", Message: "title cannot be empty"}
		}
		patch.Title = &t
	}
	if patch.Tier != nil {
		if err := validateTierKey(*patch.Tier); err != nil {
			return nil, err
		}
	}
	if patch.Tags != nil {
		tags := NormalizeTags(*patch.Tags)
		patch.Tags = &tags
	}

	if patch.OrderIndex == nil && (patch.Tier != nil || patch.ToDo != nil) {
		current, err := s.store.GetItem(ctx, userID, category, id)
		if err != nil {
			return nil, err
		}
		key := current.Key()
		if patch.Tier != nil {
			key.Tier = *patch.Tier
		}
		if patch.ToDo != nil {
			key.ToDo = *patch.ToDo
		}
		if key != current.Key() {
			idx, err := PlaceAtEnd(ctx, s.store, key)
			if err != nil {
				return nil, err
			}
			patch.OrderIndex = &idx
		}
	}
	return s.store.UpdateItem(ctx, userID, category, id, patch)
}

// DeleteItem removes the item and reclaims its sequence number when it was
// the most recently allocated one.
func (s *Service) DeleteItem(ctx context.Context, user *model.User, category string, id int64) (*model.Item, error) {
	deleted, err := s.store.DeleteItem(ctx, user.ID, category, id)
	if err != nil {
		return nil, err
	}
	ref, ok := user.Ref(category)
	if !ok {
		return deleted, nil
	}
	if err := s.allocator.ReleaseIfTail(ctx, user.ID, ref, id); err != nil {
		log.Warn("Failed to reclaim sequence number", "user", user.ID, "category", category, "id", id, "err", err)
	}
	return deleted, nil
}

// Reorder persists a drag-and-drop order for one tier list.
func (s *Service) Reorder(ctx context.Context, key model.ListKey, ids []int64) (ReorderResult, error) {
	if err := validateTierKey(key.Tier); err != nil {
		return ReorderResult{}, err
	}
	return Reorder(ctx, s.store, key, ids)
}

// DefineCategory creates a custom category with default tier labels.
func (s *Service) DefineCategory(ctx context.Context, userID, name string) (string, error) {
	n, err := ValidateCategoryName(name)
	if err != nil {
		return "", err
	}
	if err := s.store.DefineCategory(ctx, userID, n); err != nil {
		return "", err
	}
	return n, nil
}

// RemoveCategory deletes a custom category with all its items and its share link.
func (s *Service) RemoveCategory(ctx context.Context, user *model.User, name string) error {
	ref, err := resolve(user, name)
	if err != nil {
		return err
	}
	if !ref.Custom {
		return &registrystore.ValidationError{Field: "name", Message: "built-in categories cannot be removed"}
	}
	if _, err := s.store.DeleteCategoryItems(ctx, user.ID, name); err != nil {
		return err
	}
	if err := s.store.DeleteShareLink(ctx, user.ID, name); err != nil {
		return err
	}
	return s.store.RemoveCategory(ctx, user.ID, name)
}

// RenameTier sets the display label of a tier in one list of a category.
func (s *Service) RenameTier(ctx context.Context, user *model.User, category, group, tier, label string) error {
	ref, err := resolve(user, category)
	if err != nil {
		return err
	}
	toDo, ok := model.ParseGroup(group)
	if !ok {
		return &registrystore.ValidationError{Field: "group", Message: fmt.Sprintf("unknown group %q", group)}
	}
	if err := validateTierKey(tier); err != nil {
		return err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return &registrystore.ValidationError{Field: "newTitle", Message: "tier title cannot be empty"}
	}
	if utf8.RuneCountInString(label) > maxTierLabelLen {
		return &registrystore.ValidationError{Field: "newTitle", Message: fmt.Sprintf("tier title must be %d characters or less", maxTierLabelLen)}
	}
	return s.store.SetTierLabel(ctx, user.ID, ref, toDo, tier, label)
}

// Export renders every item of the user as CSV.
func (s *Service) Export(ctx context.Context, userID string) (string, error) {
	items, err := s.store.ListItems(ctx, registrystore.ItemQuery{UserID: userID})
	if err != nil {
		return "", err
	}
	return FormatExport(items), nil
}
