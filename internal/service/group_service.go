package service

import (
	"errors"
	"strings"

	"github.com/simplecms/internal/db"
	"gorm.io/gorm"
)

var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrGroupExists        = errors.New("group already exists")
	ErrGroupTitleRequired = errors.New("group title is required")
)

// GroupService manages page groups and block groups. Both are plain named
// buckets; removing one detaches its members instead of deleting them.
type GroupService struct {
	db *gorm.DB
}

// NewGroupService creates a GroupService instance.
func NewGroupService(gdb *gorm.DB) *GroupService {
	return &GroupService{db: gdb}
}

// PageGroups lists page groups ordered by title.
func (s *GroupService) PageGroups() ([]db.PageGroup, error) {
	var groups []db.PageGroup
	if err := s.db.Order("title asc").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// CreatePageGroup adds a page group with a unique title.
func (s *GroupService) CreatePageGroup(title string) (*db.PageGroup, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrGroupTitleRequired
	}
	var count int64
	if err := s.db.Model(&db.PageGroup{}).Where("title = ?", title).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrGroupExists
	}
	group := db.PageGroup{Title: title}
	if err := s.db.Create(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// EnsurePageGroup returns the page group titled title, creating it if needed.
func (s *GroupService) EnsurePageGroup(title string) (*db.PageGroup, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrGroupTitleRequired
	}
	var group db.PageGroup
	if err := s.db.Where(db.PageGroup{Title: title}).FirstOrCreate(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// DeletePageGroup removes a page group and clears it from its pages.
func (s *GroupService) DeletePageGroup(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Unscoped().Delete(&db.PageGroup{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrGroupNotFound
		}
		return tx.Model(&db.Page{}).Where("group_id = ?", id).UpdateColumn("group_id", nil).Error
	})
}

// BlockGroups lists block groups ordered by title.
func (s *GroupService) BlockGroups() ([]db.BlockGroup, error) {
	var groups []db.BlockGroup
	if err := s.db.Order("title asc").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateBlockGroup adds a block group with a unique title.
func (s *GroupService) CreateBlockGroup(title string) (*db.BlockGroup, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrGroupTitleRequired
	}
	var count int64
	if err := s.db.Model(&db.BlockGroup{}).Where("title = ?", title).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrGroupExists
	}
	group := db.BlockGroup{Title: title}
	if err := s.db.Create(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// EnsureBlockGroup returns the block group titled title, creating it if needed.
func (s *GroupService) EnsureBlockGroup(title string) (*db.BlockGroup, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrGroupTitleRequired
	}
	var group db.BlockGroup
	if err := s.db.Where(db.BlockGroup{Title: title}).FirstOrCreate(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// DeleteBlockGroup removes a block group. Attachments in the group move to
// the ungrouped zone of their owner, appended after the existing entries.
func (s *GroupService) DeleteBlockGroup(id uint) error {
	var group db.BlockGroup
	if err := s.db.First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return err
	}

	var pageLinks []db.PageBlock
	if err := s.db.Where("group_id = ?", id).Order("position asc").Find(&pageLinks).Error; err != nil {
		return err
	}
	for _, link := range pageLinks {
		if err := regroupPageBlock(s.db, link.ID, nil); err != nil {
			return err
		}
	}

	var assocs []db.BlockAssociation
	if err := s.db.Where("group_id = ?", id).Order("position asc").Find(&assocs).Error; err != nil {
		return err
	}
	for _, assoc := range assocs {
		if err := regroupAssociation(s.db, assoc.ID, nil); err != nil {
			return err
		}
	}

	return s.db.Unscoped().Delete(&group).Error
}
