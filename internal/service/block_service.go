package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/simplecms/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrBlockNotFound       = errors.New("block not found")
	ErrBlockKeyRequired    = errors.New("block key is required")
	ErrAttachmentNotFound  = errors.New("block attachment not found")
	ErrInvalidBlockContent = errors.New("block content reference is invalid")
)

// BlockInput carries the editable fields of a block.
type BlockInput struct {
	Key              string
	Title            string
	Text             string
	Format           string
	RenderAsTemplate bool
	Image            string
	ImageWidth       int
	ImageHeight      int
	URL              string
	Target           string
	// Content optionally links the block to another object.
	Content *ObjectRef
	Active  bool
}

// AttachInput describes one block attachment.
type AttachInput struct {
	BlockID uint
	GroupID *uint
	// Position inside the (owner, group) list; nil appends.
	Position *int
	Active   bool
}

// BlockService manages blocks, their attachments and block aggregation.
type BlockService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewBlockService creates a BlockService. Aggregation failures are logged to log.
func NewBlockService(gdb *gorm.DB, log *zap.Logger) *BlockService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BlockService{db: gdb, log: log}
}

// List returns all blocks ordered by key.
func (s *BlockService) List() ([]db.Block, error) {
	var blocks []db.Block
	if err := s.db.Order("\"key\" asc").Order("id asc").Find(&blocks).Error; err != nil {
		return nil, err
	}
	return blocks, nil
}

// Get fetches a block by id.
func (s *BlockService) Get(id uint) (*db.Block, error) {
	var block db.Block
	if err := s.db.First(&block, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return &block, nil
}

// ByKey returns the first active block with key.
func (s *BlockService) ByKey(key string) (*db.Block, error) {
	var block db.Block
	if err := s.db.Where("\"key\" = ? AND active = ?", strings.TrimSpace(key), true).Order("id asc").First(&block).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return &block, nil
}

// Create validates and inserts a block.
func (s *BlockService) Create(input BlockInput) (*db.Block, error) {
	var block db.Block
	if err := s.apply(&block, input); err != nil {
		return nil, err
	}
	if err := s.db.Create(&block).Error; err != nil {
		return nil, err
	}
	return &block, nil
}

// Update validates and saves a block.
func (s *BlockService) Update(id uint, input BlockInput) (*db.Block, error) {
	block, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(block, input); err != nil {
		return nil, err
	}
	if err := s.db.Save(block).Error; err != nil {
		return nil, err
	}
	return block, nil
}

// Delete removes a block and every attachment that references it or hangs off it.
func (s *BlockService) Delete(id uint) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	links, assocs, err := s.attachmentsOf(s.db, id)
	if err != nil {
		return err
	}
	scopes := make([]positionScope, 0, len(links)+len(assocs))
	for _, link := range links {
		scopes = append(scopes, pageBlockScope(link.PageID, link.GroupID))
	}
	for _, assoc := range assocs {
		scopes = append(scopes, associationScope(ObjectRef{Kind: assoc.ObjectKind, ID: assoc.ObjectID}, assoc.GroupID))
	}

	return withScopes(s.db, scopes, func(tx *gorm.DB) error {
		links, assocs, err := s.attachmentsOf(tx, id)
		if err != nil {
			return err
		}
		// Highest positions first so each closeGap sees the rows still ahead of it.
		sort.Slice(links, func(i, j int) bool { return links[i].Position > links[j].Position })
		for i := range links {
			if err := tx.Unscoped().Delete(&links[i]).Error; err != nil {
				return err
			}
			if err := closeGap(tx, pageBlockScope(links[i].PageID, links[i].GroupID), links[i].Position); err != nil {
				return err
			}
		}
		sort.Slice(assocs, func(i, j int) bool { return assocs[i].Position > assocs[j].Position })
		for i := range assocs {
			if err := tx.Unscoped().Delete(&assocs[i]).Error; err != nil {
				return err
			}
			scope := associationScope(ObjectRef{Kind: assocs[i].ObjectKind, ID: assocs[i].ObjectID}, assocs[i].GroupID)
			if err := closeGap(tx, scope, assocs[i].Position); err != nil {
				return err
			}
		}

		if err := tx.Unscoped().Where("object_kind = ? AND object_id = ?", db.KindBlock, id).Delete(&db.BlockAssociation{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&db.Block{}, id).Error
	})
}

// attachmentsOf loads every page link and association that places block id.
func (s *BlockService) attachmentsOf(tx *gorm.DB, id uint) ([]db.PageBlock, []db.BlockAssociation, error) {
	var links []db.PageBlock
	if err := tx.Where("block_id = ?", id).Find(&links).Error; err != nil {
		return nil, nil, err
	}
	var assocs []db.BlockAssociation
	if err := tx.Where("block_id = ?", id).Find(&assocs).Error; err != nil {
		return nil, nil, err
	}
	return links, assocs, nil
}

// PageBlocks lists the attachments of a page in every group, for admin views.
func (s *BlockService) PageBlocks(pageID uint) ([]db.PageBlock, error) {
	var links []db.PageBlock
	if err := s.db.Preload("Block").Preload("Group").
		Where("page_id = ?", pageID).
		Order("group_id asc").Order("position asc").Order("id asc").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// AttachToPage links a block to a page inside a group.
func (s *BlockService) AttachToPage(pageID uint, input AttachInput) (*db.PageBlock, error) {
	if err := s.checkAttach(input); err != nil {
		return nil, err
	}
	var page db.Page
	if err := s.db.First(&page, pageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}

	link := db.PageBlock{PageID: pageID, BlockID: input.BlockID, GroupID: input.GroupID, Active: input.Active}
	scope := pageBlockScope(pageID, input.GroupID)
	err := withScopes(s.db, []positionScope{scope}, func(tx *gorm.DB) error {
		return appendAttachment(tx, scope, &link, &link.ID, &link.Position, input.Position)
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// MovePageBlock places a page attachment at position inside its group.
func (s *BlockService) MovePageBlock(id uint, position int) error {
	link, err := s.pageBlock(s.db, id)
	if err != nil {
		return err
	}
	scope := pageBlockScope(link.PageID, link.GroupID)
	return withScopes(s.db, []positionScope{scope}, func(tx *gorm.DB) error {
		fresh, err := s.pageBlock(tx, id)
		if err != nil {
			return err
		}
		_, err = moveTo(tx, scope, id, fresh.Position, position)
		return err
	})
}

// RegroupPageBlock moves a page attachment to the end of another group.
func (s *BlockService) RegroupPageBlock(id uint, groupID *uint) error {
	if err := s.checkGroup(groupID); err != nil {
		return err
	}
	return regroupPageBlock(s.db, id, groupID)
}

// SetPageBlockActive toggles a page attachment.
func (s *BlockService) SetPageBlockActive(id uint, active bool) error {
	result := s.db.Model(&db.PageBlock{}).Where("id = ?", id).UpdateColumn("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}

// DetachPageBlock removes a page attachment and closes the gap it leaves.
func (s *BlockService) DetachPageBlock(id uint) error {
	link, err := s.pageBlock(s.db, id)
	if err != nil {
		return err
	}
	scope := pageBlockScope(link.PageID, link.GroupID)
	return withScopes(s.db, []positionScope{scope}, func(tx *gorm.DB) error {
		fresh, err := s.pageBlock(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(fresh).Error; err != nil {
			return err
		}
		return closeGap(tx, scope, fresh.Position)
	})
}

// Associations lists the generic attachments of an object, for admin views.
func (s *BlockService) Associations(ref ObjectRef) ([]db.BlockAssociation, error) {
	var assocs []db.BlockAssociation
	if err := s.db.Preload("Block").Preload("Group").
		Where("object_kind = ? AND object_id = ?", ref.Kind, ref.ID).
		Order("group_id asc").Order("position asc").Order("id asc").
		Find(&assocs).Error; err != nil {
		return nil, err
	}
	return assocs, nil
}

// Attach links a block to any known object inside a group.
func (s *BlockService) Attach(ref ObjectRef, input AttachInput) (*db.BlockAssociation, error) {
	if err := s.checkAttach(input); err != nil {
		return nil, err
	}
	if _, _, err := LookupObject(s.db, ref); err != nil {
		return nil, err
	}

	assoc := db.BlockAssociation{
		ObjectKind: ref.Kind,
		ObjectID:   ref.ID,
		BlockID:    input.BlockID,
		GroupID:    input.GroupID,
		Active:     input.Active,
	}
	scope := associationScope(ref, input.GroupID)
	err := withScopes(s.db, []positionScope{scope}, func(tx *gorm.DB) error {
		return appendAttachment(tx, scope, &assoc, &assoc.ID, &assoc.Position, input.Position)
	})
	if err != nil {
		return nil, err
	}
	return &assoc, nil
}

// MoveAssociation places a generic attachment at position inside its group.
func (s *BlockService) MoveAssociation(id uint, position int) error {
	assoc, err := s.association(s.db, id)
	if err != nil {
		return err
	}
	scope := associationScope(ObjectRef{Kind: assoc.ObjectKind, ID: assoc.ObjectID}, assoc.GroupID)
	return withScopes(s.db, []positionScope{scope}, func(tx *gorm.DB) error {
		fresh, err := s.association(tx, id)
		if err != nil {
			return err
		}
		_, err = moveTo(tx, scope, id, fresh.Position, position)
		return err
	})
}

// RegroupAssociation moves a generic attachment to the end of another group.
func (s *BlockService) RegroupAssociation(id uint, groupID *uint) error {
	if err := s.checkGroup(groupID); err != nil {
		return err
	}
	return regroupAssociation(s.db, id, groupID)
}

// SetAssociationActive toggles a generic attachment.
func (s *BlockService) SetAssociationActive(id uint, active bool) error {
	result := s.db.Model(&db.BlockAssociation{}).Where("id = ?", id).UpdateColumn("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}

// DetachAssociation removes a generic attachment and closes the gap it leaves.
func (s *BlockService) DetachAssociation(id uint) error {
	assoc, err := s.association(s.db, id)
	if err != nil {
		return err
	}
	scope := associationScope(ObjectRef{Kind: assoc.ObjectKind, ID: assoc.ObjectID}, assoc.GroupID)
	return withScopes(s.db, []positionScope{scope}, func(tx *gorm.DB) error {
		fresh, err := s.association(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(fresh).Error; err != nil {
			return err
		}
		return closeGap(tx, scope, fresh.Position)
	})
}

// ForPage aggregates the active blocks of page. The page's own blocks come
// first, followed by the blocks of each ancestor while inheritance holds.
// group restricts the result to one block group when non-empty.
//
// Aggregation is best effort: any failure is logged and yields an empty list.
func (s *BlockService) ForPage(page *db.Page, group string) []db.Block {
	if page == nil {
		return []db.Block{}
	}
	blocks, err := s.aggregate(page, group)
	if err != nil {
		s.log.Warn("block aggregation failed",
			zap.Uint("page_id", page.ID),
			zap.String("group", group),
			zap.Error(err),
		)
		return []db.Block{}
	}
	return blocks
}

// ForObject returns the active blocks attached to ref, best effort like ForPage.
func (s *BlockService) ForObject(ref ObjectRef, group string) []db.Block {
	var assocs []db.BlockAssociation
	query := s.db.Preload("Block").
		Where("block_associations.object_kind = ? AND block_associations.object_id = ?", ref.Kind, ref.ID).
		Where("block_associations.active = ?", true)
	if group != "" {
		query = query.
			Joins("JOIN block_groups ON block_groups.id = block_associations.group_id").
			Where("block_groups.title = ?", group)
	}
	if err := query.Order("block_associations.position asc").Order("block_associations.id asc").Find(&assocs).Error; err != nil {
		s.log.Warn("block lookup failed",
			zap.Stringer("object", ref),
			zap.String("group", group),
			zap.Error(err),
		)
		return []db.Block{}
	}

	blocks := make([]db.Block, 0, len(assocs))
	for _, assoc := range assocs {
		if assoc.Block.Active {
			blocks = append(blocks, assoc.Block)
		}
	}
	return blocks
}

func (s *BlockService) aggregate(page *db.Page, group string) ([]db.Block, error) {
	t, err := loadSiteTree(s.db, page.SiteID)
	if err != nil {
		return nil, err
	}
	sources, err := t.arena.BlockSources(page.ID)
	if err != nil {
		return nil, err
	}

	blocks := make([]db.Block, 0)
	for _, id := range sources {
		var links []db.PageBlock
		query := s.db.Preload("Block").
			Where("page_blocks.page_id = ? AND page_blocks.active = ?", id, true)
		if group != "" {
			query = query.
				Joins("JOIN block_groups ON block_groups.id = page_blocks.group_id").
				Where("block_groups.title = ?", group)
		}
		if err := query.Order("page_blocks.position asc").Order("page_blocks.id asc").Find(&links).Error; err != nil {
			return nil, err
		}
		for _, link := range links {
			if link.Block.Active {
				blocks = append(blocks, link.Block)
			}
		}
	}
	return blocks, nil
}

func (s *BlockService) apply(block *db.Block, input BlockInput) error {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return ErrBlockKeyRequired
	}
	target := strings.TrimSpace(input.Target)
	if !db.IsValidTarget(target) {
		return ErrInvalidTarget
	}
	format := strings.TrimSpace(input.Format)
	if !db.IsValidFormat(format) {
		return ErrInvalidFormat
	}

	block.ContentKind = ""
	block.ContentID = nil
	if input.Content != nil {
		if _, _, err := LookupObject(s.db, *input.Content); err != nil {
			return ErrInvalidBlockContent
		}
		id := input.Content.ID
		block.ContentKind = input.Content.Kind
		block.ContentID = &id
	}

	block.Key = key
	block.Title = strings.TrimSpace(input.Title)
	block.Text = input.Text
	block.Format = format
	block.RenderAsTemplate = input.RenderAsTemplate
	block.Image = strings.TrimSpace(input.Image)
	block.ImageWidth = input.ImageWidth
	block.ImageHeight = input.ImageHeight
	block.URL = strings.TrimSpace(input.URL)
	block.Target = target
	block.Active = input.Active
	return nil
}

func (s *BlockService) checkAttach(input AttachInput) error {
	if _, err := s.Get(input.BlockID); err != nil {
		return err
	}
	return s.checkGroup(input.GroupID)
}

func (s *BlockService) checkGroup(groupID *uint) error {
	if groupID == nil {
		return nil
	}
	var group db.BlockGroup
	if err := s.db.First(&group, *groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return err
	}
	return nil
}

func (s *BlockService) pageBlock(gdb *gorm.DB, id uint) (*db.PageBlock, error) {
	var link db.PageBlock
	if err := gdb.First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttachmentNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (s *BlockService) association(gdb *gorm.DB, id uint) (*db.BlockAssociation, error) {
	var assoc db.BlockAssociation
	if err := gdb.First(&assoc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttachmentNotFound
		}
		return nil, err
	}
	return &assoc, nil
}

// appendAttachment inserts row at the end of scope, then moves it to position
// when one is requested.
func appendAttachment(tx *gorm.DB, scope positionScope, row interface{}, id *uint, pos *int, position *int) error {
	n, err := scopeCount(tx, scope, 0)
	if err != nil {
		return err
	}
	*pos = n
	if err := tx.Omit("Block", "Group").Create(row).Error; err != nil {
		return err
	}
	if position == nil {
		return nil
	}
	*pos, err = insertAt(tx, scope, *id, *position)
	return err
}

func regroupPageBlock(gdb *gorm.DB, id uint, groupID *uint) error {
	var link db.PageBlock
	if err := gdb.First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAttachmentNotFound
		}
		return err
	}
	oldScope := pageBlockScope(link.PageID, link.GroupID)
	newScope := pageBlockScope(link.PageID, groupID)
	if oldScope.key() == newScope.key() {
		return nil
	}
	return withScopes(gdb, []positionScope{oldScope, newScope}, func(tx *gorm.DB) error {
		var fresh db.PageBlock
		if err := tx.First(&fresh, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&fresh).UpdateColumn("group_id", groupID).Error; err != nil {
			return err
		}
		if err := closeGap(tx, oldScope, fresh.Position); err != nil {
			return err
		}
		_, err := insertAt(tx, newScope, id, -1)
		return err
	})
}

func regroupAssociation(gdb *gorm.DB, id uint, groupID *uint) error {
	var assoc db.BlockAssociation
	if err := gdb.First(&assoc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAttachmentNotFound
		}
		return err
	}
	ref := ObjectRef{Kind: assoc.ObjectKind, ID: assoc.ObjectID}
	oldScope := associationScope(ref, assoc.GroupID)
	newScope := associationScope(ref, groupID)
	if oldScope.key() == newScope.key() {
		return nil
	}
	return withScopes(gdb, []positionScope{oldScope, newScope}, func(tx *gorm.DB) error {
		var fresh db.BlockAssociation
		if err := tx.First(&fresh, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&fresh).UpdateColumn("group_id", groupID).Error; err != nil {
			return err
		}
		if err := closeGap(tx, oldScope, fresh.Position); err != nil {
			return err
		}
		_, err := insertAt(tx, newScope, id, -1)
		return err
	})
}

func pageBlockScope(pageID uint, groupID *uint) positionScope {
	return positionScope{
		model: &db.PageBlock{},
		table: "page_blocks",
		conds: map[string]interface{}{"page_id": pageID, "group_id": groupID},
	}
}

func associationScope(ref ObjectRef, groupID *uint) positionScope {
	return positionScope{
		model: &db.BlockAssociation{},
		table: "block_associations",
		conds: map[string]interface{}{"object_kind": ref.Kind, "object_id": ref.ID, "group_id": groupID},
	}
}
