package service

import (
	"errors"
	"fmt"

	"github.com/simplecms/internal/db"
	"gorm.io/gorm"
)

var (
	ErrUnknownObjectKind = errors.New("unknown object kind")
	ErrObjectNotFound    = errors.New("object not found")
)

// ObjectRef points at any content object by kind and identifier.
type ObjectRef struct {
	Kind string `json:"kind"`
	ID   uint   `json:"id"`
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// objectStore describes how a polymorphic reference of one kind is looked up.
type objectStore struct {
	model func() interface{}
	title func(obj interface{}) string
}

var objectStores = map[string]objectStore{
	db.KindPage: {
		model: func() interface{} { return &db.Page{} },
		title: func(obj interface{}) string { return obj.(*db.Page).Title },
	},
	db.KindBlock: {
		model: func() interface{} { return &db.Block{} },
		title: func(obj interface{}) string { return obj.(*db.Block).Key },
	},
	db.KindArticle: {
		model: func() interface{} { return &db.Article{} },
		title: func(obj interface{}) string { return obj.(*db.Article).Title },
	},
	db.KindCategory: {
		model: func() interface{} { return &db.Category{} },
		title: func(obj interface{}) string { return obj.(*db.Category).Title },
	},
}

// IsKnownKind reports whether kind can be used in an ObjectRef.
func IsKnownKind(kind string) bool {
	_, ok := objectStores[kind]
	return ok
}

// LookupObject loads the referenced object and returns it with its display title.
func LookupObject(gdb *gorm.DB, ref ObjectRef) (interface{}, string, error) {
	store, ok := objectStores[ref.Kind]
	if !ok {
		return nil, "", ErrUnknownObjectKind
	}
	obj := store.model()
	if err := gdb.First(obj, ref.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", err
	}
	return obj, store.title(obj), nil
}

// RefOf builds the reference of a loaded content object.
func RefOf(obj interface{}) (ObjectRef, bool) {
	switch o := obj.(type) {
	case *db.Page:
		if o != nil {
			return ObjectRef{Kind: db.KindPage, ID: o.ID}, true
		}
	case *db.Block:
		if o != nil {
			return ObjectRef{Kind: db.KindBlock, ID: o.ID}, true
		}
	case *db.Article:
		if o != nil {
			return ObjectRef{Kind: db.KindArticle, ID: o.ID}, true
		}
	case *db.Category:
		if o != nil {
			return ObjectRef{Kind: db.KindCategory, ID: o.ID}, true
		}
	case db.Page:
		return ObjectRef{Kind: db.KindPage, ID: o.ID}, true
	case db.Block:
		return ObjectRef{Kind: db.KindBlock, ID: o.ID}, true
	case db.Article:
		return ObjectRef{Kind: db.KindArticle, ID: o.ID}, true
	case db.Category:
		return ObjectRef{Kind: db.KindCategory, ID: o.ID}, true
	case ObjectRef:
		return o, IsKnownKind(o.Kind)
	}
	return ObjectRef{}, false
}
