package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPage(t *testing.T, svc *PageService, siteID uint, title string, parent *uint, mutate ...func(*PageInput)) *db.Page {
	t.Helper()
	input := PageInput{Title: title, SiteID: siteID, ParentID: parent, Active: true, InheritBlocks: true}
	for _, fn := range mutate {
		fn(&input)
	}
	page, err := svc.Create(input)
	require.NoError(t, err)
	return page
}

func siblingOrder(t *testing.T, gdb *gorm.DB, siteID uint, parent *uint) ([]string, []int) {
	t.Helper()
	var pages []db.Page
	query := gdb.Where("site_id = ?", siteID)
	if parent == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parent)
	}
	require.NoError(t, query.Order("position asc").Find(&pages).Error)
	slugs := make([]string, 0, len(pages))
	positions := make([]int, 0, len(pages))
	for _, p := range pages {
		slugs = append(slugs, p.Slug)
		positions = append(positions, p.Position)
	}
	return slugs, positions
}

func TestPageServiceCreateFillsSlugChain(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "cms/page.html")

	about := newPage(t, svc, 1, "About Us", nil)
	team := newPage(t, svc, 1, "Team", &about.ID)

	assert.Equal(t, "about-us", about.Slug)
	assert.Equal(t, "about-us/team", team.SlugChain)
	assert.Equal(t, 1, team.Depth)
	assert.Equal(t, "/about-us/team/", team.AbsoluteURL())
}

func TestPageServiceRejectsSiblingSlugConflict(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	seedSite(t, gdb, 2, "other.com")
	svc := NewPageService(gdb, "")

	parent := newPage(t, svc, 1, "Docs", nil)
	newPage(t, svc, 1, "Intro", &parent.ID)

	_, err := svc.Create(PageInput{Title: "Intro", SiteID: 1, ParentID: &parent.ID})
	assert.ErrorIs(t, err, ErrPageSlugConflict)

	_, err = svc.Create(PageInput{Title: "Docs", SiteID: 1})
	assert.ErrorIs(t, err, ErrPageSlugConflict, "root pages conflict even though their parent is NULL")

	_, err = svc.Create(PageInput{Title: "Docs", SiteID: 2})
	assert.NoError(t, err, "other sites may reuse the slug")

	_, err = svc.Create(PageInput{Title: "Intro", SiteID: 1})
	assert.NoError(t, err, "a different parent may reuse the slug")
}

func TestPageServiceRejectsSelfParentAndCycles(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "")

	a := newPage(t, svc, 1, "A", nil)
	b := newPage(t, svc, 1, "B", &a.ID)
	c := newPage(t, svc, 1, "C", &b.ID)

	_, err := svc.Update(a.ID, PageInput{Title: "A", SiteID: 1, ParentID: &a.ID})
	assert.ErrorIs(t, err, ErrPageSelfParent)

	_, err = svc.Update(a.ID, PageInput{Title: "A", SiteID: 1, ParentID: &c.ID})
	assert.ErrorIs(t, err, ErrPageCycle)

	missing := uint(999)
	_, err = svc.Create(PageInput{Title: "D", SiteID: 1, ParentID: &missing})
	assert.ErrorIs(t, err, ErrPageParentNotFound)
}

func TestPageServiceRejectsInvalidTargetAndFormat(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "")

	_, err := svc.Create(PageInput{Title: "A", SiteID: 1, Target: "_new"})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = svc.Create(PageInput{Title: "A", SiteID: 1, Format: "bbcode"})
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = svc.Create(PageInput{Title: "A", SiteID: 42})
	assert.ErrorIs(t, err, ErrSiteNotFound)
}

func TestPageServicePositionsStayDense(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "")

	a := newPage(t, svc, 1, "A", nil)
	newPage(t, svc, 1, "B", nil)
	newPage(t, svc, 1, "C", nil)

	slugs, positions := siblingOrder(t, gdb, 1, nil)
	assert.Equal(t, []string{"a", "b", "c"}, slugs)
	assert.Equal(t, []int{0, 1, 2}, positions)

	_, err := svc.Move(a.ID, 2)
	require.NoError(t, err)
	slugs, positions = siblingOrder(t, gdb, 1, nil)
	assert.Equal(t, []string{"b", "c", "a"}, slugs)
	assert.Equal(t, []int{0, 1, 2}, positions)

	_, err = svc.Create(PageInput{Title: "D", SiteID: 1, Position: intPtr(0), Active: true})
	require.NoError(t, err)
	slugs, positions = siblingOrder(t, gdb, 1, nil)
	assert.Equal(t, []string{"d", "b", "c", "a"}, slugs)
	assert.Equal(t, []int{0, 1, 2, 3}, positions)

	_, err = svc.Move(a.ID, 99)
	require.NoError(t, err)
	slugs, _ = siblingOrder(t, gdb, 1, nil)
	assert.Equal(t, []string{"d", "b", "c", "a"}, slugs, "out of range positions clamp to the end")
}

func TestPageServiceReparentClosesGapAndAppends(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "")

	a := newPage(t, svc, 1, "A", nil)
	b := newPage(t, svc, 1, "B", nil)
	newPage(t, svc, 1, "C", nil)
	newPage(t, svc, 1, "Child", &b.ID)

	moved, err := svc.Update(a.ID, PageInput{Title: "A", SiteID: 1, ParentID: &b.ID, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "b/a", moved.SlugChain)

	slugs, positions := siblingOrder(t, gdb, 1, nil)
	assert.Equal(t, []string{"b", "c"}, slugs)
	assert.Equal(t, []int{0, 1}, positions)

	slugs, positions = siblingOrder(t, gdb, 1, &b.ID)
	assert.Equal(t, []string{"child", "a"}, slugs)
	assert.Equal(t, []int{0, 1}, positions)
}

func TestPageServiceSiteChangeKeepsSubtreeReachable(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	other := seedSite(t, gdb, 2, "other.com")
	svc := NewPageService(gdb, "")

	docs := newPage(t, svc, 2, "Docs", nil)
	intro := newPage(t, svc, 2, "Intro", &docs.ID)

	_, err := svc.Update(docs.ID, PageInput{Title: "Docs", SiteID: 1, Active: true, InheritBlocks: true})
	assert.ErrorIs(t, err, ErrPageSiteChange)

	page, err := svc.Get(intro.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(2), page.SiteID)
	res, err := svc.Resolve(other, "/docs/intro/")
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, intro.ID, res.Page.ID)

	moved, err := svc.Update(intro.ID, PageInput{Title: "Intro", SiteID: 1, ParentID: &docs.ID, Active: true})
	assert.ErrorIs(t, err, ErrPageParentNotFound, "a parent on another site is rejected")
	assert.Nil(t, moved)

	standalone := newPage(t, svc, 2, "Standalone", nil)
	moved, err = svc.Update(standalone.ID, PageInput{Title: "Standalone", SiteID: 1, Active: true})
	require.NoError(t, err)
	assert.Equal(t, uint(1), moved.SiteID)
	slugs, positions := siblingOrder(t, gdb, 2, nil)
	assert.Equal(t, []string{"docs"}, slugs)
	assert.Equal(t, []int{0}, positions)
}

func TestPageServiceUpdateWithoutSiteKeepsSite(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	seedSite(t, gdb, 2, "other.com")
	svc := NewPageService(gdb, "")

	page := newPage(t, svc, 2, "News", nil)
	updated, err := svc.Update(page.ID, PageInput{Title: "Latest News", Slug: "news", Active: true})
	require.NoError(t, err)
	assert.Equal(t, uint(2), updated.SiteID)
	assert.Equal(t, "Latest News", updated.Title)
}

func TestPageServiceConcurrentReparentingKeepsScopesDense(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "")

	left := newPage(t, svc, 1, "Left", nil)
	right := newPage(t, svc, 1, "Right", nil)
	newPage(t, svc, 1, "L1", &left.ID)
	newPage(t, svc, 1, "R1", &right.ID)
	wanderer := newPage(t, svc, 1, "Wanderer", nil)

	parents := []*uint{&left.ID, &right.ID, nil}
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(parent *uint, pos int) {
			defer wg.Done()
			_, err := svc.Update(wanderer.ID, PageInput{
				Title: "Wanderer", Slug: "wanderer", ParentID: parent, Position: intPtr(pos), Active: true,
			})
			assert.NoError(t, err)
		}(parents[i%len(parents)], i%3)
	}
	wg.Wait()

	total := 0
	for _, parent := range []*uint{nil, &left.ID, &right.ID} {
		_, positions := siblingOrder(t, gdb, 1, parent)
		for i, pos := range positions {
			assert.Equal(t, i, pos)
		}
		total += len(positions)
	}
	assert.Equal(t, 5, total, "the page sits in exactly one scope")
}

func TestPageServiceConcurrentMovesKeepPositionsDense(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "")

	var ids []uint
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		ids = append(ids, newPage(t, svc, 1, title, nil).ID)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(id uint, to int) {
			defer wg.Done()
			_, err := svc.Move(id, to)
			assert.NoError(t, err)
		}(id, (i+3)%len(ids))
	}
	wg.Wait()

	_, positions := siblingOrder(t, gdb, 1, nil)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, positions)
}

func TestPageServiceDeletePromotesChildren(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "")

	newPage(t, svc, 1, "A", nil)
	b := newPage(t, svc, 1, "B", nil)
	newPage(t, svc, 1, "C", nil)
	newPage(t, svc, 1, "Kid", &b.ID)

	require.NoError(t, svc.Delete(b.ID))

	slugs, positions := siblingOrder(t, gdb, 1, nil)
	assert.Equal(t, []string{"a", "c", "kid"}, slugs)
	assert.Equal(t, []int{0, 1, 2}, positions)

	_, err := svc.Get(b.ID)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestPageServiceResolve(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	site := seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "cms/page.html")

	about := newPage(t, svc, 1, "About", nil, func(in *PageInput) { in.Template = "about.html" })
	team := newPage(t, svc, 1, "Team", &about.ID)
	home := newPage(t, svc, 1, "Home", nil, func(in *PageInput) { in.Homepage = true })
	newPage(t, svc, 1, "Solo", nil, func(in *PageInput) { in.InheritBlocks = false })

	res, err := svc.Resolve(site, "/about/team/")
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.True(t, res.Exact)
	assert.Equal(t, team.ID, res.Page.ID)
	assert.Equal(t, "about.html", res.Template)
	require.Len(t, res.Ancestors, 1)
	assert.Equal(t, about.ID, res.Ancestors[0].ID)

	res, err = svc.Resolve(site, "about/team/extra")
	require.NoError(t, err)
	assert.False(t, res.Exact)
	assert.Equal(t, team.ID, res.Page.ID)
	assert.Equal(t, "extra", res.Remainder)

	res, err = svc.Resolve(site, "/")
	require.NoError(t, err)
	assert.Equal(t, home.ID, res.Page.ID)

	res, err = svc.Resolve(site, "solo")
	require.NoError(t, err)
	assert.Equal(t, "cms/page.html", res.Template)

	site.DefaultTemplate = "site.html"
	res, err = svc.Resolve(site, "solo")
	require.NoError(t, err)
	assert.Equal(t, "site.html", res.Template)

	res, err = svc.Resolve(site, "nowhere")
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestPageServiceResolveHidesInactiveBranches(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	site := seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "")

	hidden := newPage(t, svc, 1, "Hidden", nil, func(in *PageInput) { in.Active = false })
	newPage(t, svc, 1, "Child", &hidden.ID)

	res, err := svc.Resolve(site, "hidden/child")
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestPageServiceResolveReportsCycle(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	site := seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "")

	a := newPage(t, svc, 1, "A", nil)
	b := newPage(t, svc, 1, "B", &a.ID)
	// Corrupt the hierarchy behind the service's back.
	require.NoError(t, gdb.Model(&db.Page{}).Where("id = ?", a.ID).UpdateColumn("parent_id", b.ID).Error)

	res, err := svc.Resolve(site, "a/b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, tree.ErrCycle))
	assert.False(t, res.Found())
}

func TestPageServiceNavGroupAndChildren(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	seedSite(t, gdb, 2, "other.com")
	groups := NewGroupService(gdb)
	mainNav, err := groups.CreatePageGroup("main")
	require.NoError(t, err)
	svc := NewPageService(gdb, "")

	inGroup := func(in *PageInput) { in.GroupID = &mainNav.ID }
	a := newPage(t, svc, 1, "A", nil, inGroup)
	newPage(t, svc, 1, "B", nil, inGroup, func(in *PageInput) { in.Active = false })
	newPage(t, svc, 1, "C", nil)
	newPage(t, svc, 2, "Elsewhere", nil, inGroup)
	kid := newPage(t, svc, 1, "Kid", &a.ID, inGroup)

	nav, err := svc.NavGroup(1, "main")
	require.NoError(t, err)
	require.Len(t, nav, 2)
	assert.Equal(t, "a", nav[0].SlugChain)
	assert.Equal(t, "a/kid", nav[1].SlugChain)

	nav, err = svc.NavGroup(0, "main")
	require.NoError(t, err)
	assert.Len(t, nav, 3, "a zero site lists every site")

	children, err := svc.Children(a.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, kid.ID, children[0].ID)

	url, err := svc.URL(kid.ID)
	require.NoError(t, err)
	assert.Equal(t, "/a/kid/", url)
}

func TestPageServiceTreeListsDepthFirst(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()
	seedSite(t, gdb, 1, "example.com")
	svc := NewPageService(gdb, "")

	a := newPage(t, svc, 1, "A", nil)
	newPage(t, svc, 1, "B", nil)
	newPage(t, svc, 1, "A1", &a.ID, func(in *PageInput) { in.Active = false })

	pages, err := svc.Tree(1)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, []string{"a", "a/a1", "b"}, []string{pages[0].SlugChain, pages[1].SlugChain, pages[2].SlugChain})
	assert.Equal(t, 1, pages[1].Depth)
}
