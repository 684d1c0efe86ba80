package service

import (
	"errors"
	"testing"

	"github.com/simplecms/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func newBlock(t *testing.T, svc *BlockService, key string) *db.Block {
	t.Helper()
	block, err := svc.Create(BlockInput{Key: key, Title: key, Text: key, Active: true})
	require.NoError(t, err)
	return block
}

func attach(t *testing.T, svc *BlockService, page *db.Page, block *db.Block, group *uint) *db.PageBlock {
	t.Helper()
	link, err := svc.AttachToPage(page.ID, AttachInput{BlockID: block.ID, GroupID: group, Active: true})
	require.NoError(t, err)
	return link
}

func blockKeys(blocks []db.Block) []string {
	keys := make([]string, 0, len(blocks))
	for _, b := range blocks {
		keys = append(keys, b.Key)
	}
	return keys
}

func TestBlockServiceForPageAggregatesAncestors(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	pages := NewPageService(gdb, "")
	blocks := NewBlockService(gdb, nil)

	root := newPage(t, pages, 1, "Root", nil)
	stop := newPage(t, pages, 1, "Stop", &root.ID, func(in *PageInput) { in.InheritBlocks = false })
	mid := newPage(t, pages, 1, "Mid", &stop.ID)
	leaf := newPage(t, pages, 1, "Leaf", &mid.ID)

	attach(t, blocks, root, newBlock(t, blocks, "root"), nil)
	attach(t, blocks, stop, newBlock(t, blocks, "stop"), nil)
	attach(t, blocks, mid, newBlock(t, blocks, "mid"), nil)
	attach(t, blocks, leaf, newBlock(t, blocks, "leaf-1"), nil)
	attach(t, blocks, leaf, newBlock(t, blocks, "leaf-2"), nil)

	got := blocks.ForPage(leaf, "")
	assert.Equal(t, []string{"leaf-1", "leaf-2", "mid", "stop"}, blockKeys(got))

	got = blocks.ForPage(stop, "")
	assert.Equal(t, []string{"stop"}, blockKeys(got), "a non-inheriting page only shows its own blocks")
}

func TestBlockServiceForPageFiltersGroupAndInactive(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	pages := NewPageService(gdb, "")
	blocks := NewBlockService(gdb, nil)
	groups := NewGroupService(gdb)

	sidebar, err := groups.CreateBlockGroup("sidebar")
	require.NoError(t, err)
	page := newPage(t, pages, 1, "Page", nil)

	attach(t, blocks, page, newBlock(t, blocks, "side"), &sidebar.ID)
	attach(t, blocks, page, newBlock(t, blocks, "main"), nil)
	hiddenLink := attach(t, blocks, page, newBlock(t, blocks, "hidden-link"), &sidebar.ID)
	require.NoError(t, blocks.SetPageBlockActive(hiddenLink.ID, false))

	inactive, err := blocks.Create(BlockInput{Key: "inactive-block", Active: false})
	require.NoError(t, err)
	attach(t, blocks, page, inactive, &sidebar.ID)

	assert.Equal(t, []string{"side"}, blockKeys(blocks.ForPage(page, "sidebar")))
	assert.Empty(t, blocks.ForPage(page, "footer"))
	assert.ElementsMatch(t, []string{"side", "main"}, blockKeys(blocks.ForPage(page, "")))
}

func TestBlockServiceForPageLogsAndReturnsEmptyOnCycle(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	core, logs := observer.New(zapcore.WarnLevel)
	pages := NewPageService(gdb, "")
	blocks := NewBlockService(gdb, zap.New(core))

	a := newPage(t, pages, 1, "A", nil)
	b := newPage(t, pages, 1, "B", &a.ID)
	attach(t, blocks, b, newBlock(t, blocks, "x"), nil)
	require.NoError(t, gdb.Model(&db.Page{}).Where("id = ?", a.ID).UpdateColumn("parent_id", b.ID).Error)

	got := blocks.ForPage(b, "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "block aggregation failed", logs.All()[0].Message)
}

func TestBlockServiceMoveWithinScope(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	pages := NewPageService(gdb, "")
	blocks := NewBlockService(gdb, nil)

	page := newPage(t, pages, 1, "Page", nil)
	first := attach(t, blocks, page, newBlock(t, blocks, "a"), nil)
	attach(t, blocks, page, newBlock(t, blocks, "b"), nil)
	attach(t, blocks, page, newBlock(t, blocks, "c"), nil)

	require.NoError(t, blocks.MovePageBlock(first.ID, 2))
	assert.Equal(t, []string{"b", "c", "a"}, blockKeys(blocks.ForPage(page, "")))

	links, err := blocks.PageBlocks(page.ID)
	require.NoError(t, err)
	positions := []int{}
	for _, l := range links {
		positions = append(positions, l.Position)
	}
	assert.Equal(t, []int{0, 1, 2}, positions)

	link, err := blocks.AttachToPage(page.ID, AttachInput{BlockID: first.BlockID, Position: intPtr(0), Active: true})
	require.NoError(t, err)
	assert.Equal(t, 0, link.Position)
	assert.Equal(t, []string{"a", "b", "c", "a"}, blockKeys(blocks.ForPage(page, "")))
}

func TestBlockServiceRegroupAndDetachKeepScopesDense(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	pages := NewPageService(gdb, "")
	blocks := NewBlockService(gdb, nil)
	groups := NewGroupService(gdb)

	footer, err := groups.CreateBlockGroup("footer")
	require.NoError(t, err)
	page := newPage(t, pages, 1, "Page", nil)
	a := attach(t, blocks, page, newBlock(t, blocks, "a"), nil)
	attach(t, blocks, page, newBlock(t, blocks, "b"), nil)
	attach(t, blocks, page, newBlock(t, blocks, "f"), &footer.ID)

	require.NoError(t, blocks.RegroupPageBlock(a.ID, &footer.ID))
	assert.Equal(t, []string{"f", "a"}, blockKeys(blocks.ForPage(page, "footer")))

	var remaining []db.PageBlock
	require.NoError(t, gdb.Where("page_id = ? AND group_id IS NULL", page.ID).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, 0, remaining[0].Position)

	require.NoError(t, groups.DeleteBlockGroup(footer.ID))
	assert.Equal(t, []string{"b", "f", "a"}, blockKeys(blocks.ForPage(page, "")))

	require.NoError(t, blocks.DetachPageBlock(remaining[0].ID))
	links, err := blocks.PageBlocks(page.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, 0, links[0].Position)
	assert.Equal(t, 1, links[1].Position)
}

func TestBlockServiceGenericAssociations(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	blocks := NewBlockService(gdb, nil)
	categories := NewCategoryService(gdb)

	news, err := categories.Create(CategoryInput{Title: "News", Active: true})
	require.NoError(t, err)
	ref := ObjectRef{Kind: db.KindCategory, ID: news.ID}

	first, err := blocks.Attach(ref, AttachInput{BlockID: newBlock(t, blocks, "one").ID, Active: true})
	require.NoError(t, err)
	_, err = blocks.Attach(ref, AttachInput{BlockID: newBlock(t, blocks, "two").ID, Active: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, blockKeys(blocks.ForObject(ref, "")))

	require.NoError(t, blocks.MoveAssociation(first.ID, 1))
	assert.Equal(t, []string{"two", "one"}, blockKeys(blocks.ForObject(ref, "")))

	_, err = blocks.Attach(ObjectRef{Kind: "gallery", ID: 1}, AttachInput{BlockID: first.BlockID})
	assert.ErrorIs(t, err, ErrUnknownObjectKind)

	_, err = blocks.Attach(ObjectRef{Kind: db.KindArticle, ID: 404}, AttachInput{BlockID: first.BlockID})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestBlockServiceDeleteRemovesAttachments(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	pages := NewPageService(gdb, "")
	blocks := NewBlockService(gdb, nil)

	page := newPage(t, pages, 1, "Page", nil)
	doomed := newBlock(t, blocks, "doomed")
	attach(t, blocks, page, doomed, nil)
	attach(t, blocks, page, newBlock(t, blocks, "kept"), nil)

	require.NoError(t, blocks.Delete(doomed.ID))

	links, err := blocks.PageBlocks(page.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "kept", links[0].Block.Key)
	assert.Equal(t, 0, links[0].Position)

	_, err = blocks.ByKey("doomed")
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestBlockServiceDeleteRollsBackDetachOnFailure(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	pages := NewPageService(gdb, "")
	blocks := NewBlockService(gdb, nil)
	categories := NewCategoryService(gdb)

	home := newPage(t, pages, 1, "Home", nil)
	about := newPage(t, pages, 1, "About", nil)
	doomed := newBlock(t, blocks, "doomed")
	attach(t, blocks, home, doomed, nil)
	attach(t, blocks, home, newBlock(t, blocks, "kept"), nil)
	attach(t, blocks, about, newBlock(t, blocks, "first"), nil)
	attach(t, blocks, about, doomed, nil)

	news, err := categories.Create(CategoryInput{Title: "News", Active: true})
	require.NoError(t, err)
	ref := ObjectRef{Kind: db.KindCategory, ID: news.ID}
	_, err = blocks.Attach(ref, AttachInput{BlockID: doomed.ID, Active: true})
	require.NoError(t, err)
	_, err = blocks.Attach(ref, AttachInput{BlockID: newBlock(t, blocks, "tail").ID, Active: true})
	require.NoError(t, err)

	require.NoError(t, gdb.Callback().Delete().Before("gorm:delete").Register("fail_block_delete", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "blocks" {
			tx.AddError(errors.New("disk full"))
		}
	}))
	assert.Error(t, blocks.Delete(doomed.ID))

	assert.Equal(t, []string{"doomed", "kept"}, blockKeys(blocks.ForPage(home, "")))
	assert.Equal(t, []string{"first", "doomed"}, blockKeys(blocks.ForPage(about, "")))
	assert.Equal(t, []string{"doomed", "tail"}, blockKeys(blocks.ForObject(ref, "")))
	_, err = blocks.Get(doomed.ID)
	require.NoError(t, err)

	require.NoError(t, gdb.Callback().Delete().Remove("fail_block_delete"))
	require.NoError(t, blocks.Delete(doomed.ID))

	assert.Equal(t, []string{"kept"}, blockKeys(blocks.ForPage(home, "")))
	assert.Equal(t, []string{"first"}, blockKeys(blocks.ForPage(about, "")))
	assocs, err := blocks.Associations(ref)
	require.NoError(t, err)
	require.Len(t, assocs, 1)
	assert.Equal(t, 0, assocs[0].Position)
	links, err := blocks.PageBlocks(home.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, 0, links[0].Position)
}

func TestBlockServiceValidatesContentReference(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	pages := NewPageService(gdb, "")
	blocks := NewBlockService(gdb, nil)

	page := newPage(t, pages, 1, "Page", nil)

	block, err := blocks.Create(BlockInput{Key: "promo", Content: &ObjectRef{Kind: db.KindPage, ID: page.ID}, Active: true})
	require.NoError(t, err)
	assert.Equal(t, db.KindPage, block.ContentKind)
	require.NotNil(t, block.ContentID)
	assert.Equal(t, page.ID, *block.ContentID)

	_, err = blocks.Create(BlockInput{Key: "broken", Content: &ObjectRef{Kind: db.KindPage, ID: 999}})
	assert.ErrorIs(t, err, ErrInvalidBlockContent)

	_, err = blocks.Create(BlockInput{Key: " "})
	assert.ErrorIs(t, err, ErrBlockKeyRequired)
}
