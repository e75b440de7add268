package roster

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
)

const classesKey = "classes"

// cachedRepository memoizes roster reads. Rosters change only through ImportStudents,
// which flushes the cache.
type cachedRepository struct {
	Repository
	cache *cache.Cache
}

var _ Repository = (*cachedRepository)(nil) // interface compliance check

func NewCachedRepository(repo Repository, ttl time.Duration) Repository {
	return &cachedRepository{
		Repository: repo,
		cache:      cache.New(ttl, 2*ttl),
	}
}

func classKey(id string) string { return "class:" + id }

func copyClass(c Class) Class {
	if c.Students != nil {
		c.Students = append([]Student(nil), c.Students...)
	}
	return c
}

func (repo *cachedRepository) QueryClasses(ctx context.Context, exec ...core.DBExecutor) ([]Class, error) {
	if v, ok := repo.cache.Get(classesKey); ok {
		return append([]Class(nil), v.([]Class)...), nil
	}
	classes, err := repo.Repository.QueryClasses(ctx, exec...)
	if err != nil {
		return nil, err
	}
	repo.cache.SetDefault(classesKey, append([]Class(nil), classes...))
	return classes, nil
}

func (repo *cachedRepository) GetClassesWithStudents(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]Class, error) {
	classes := make([]Class, len(ids))
	var missing []string
	missingIdx := make(map[string]int)
	for i, id := range ids {
		if v, ok := repo.cache.Get(classKey(id)); ok {
			classes[i] = copyClass(v.(Class))
		} else {
			missing = append(missing, id)
			missingIdx[id] = i
		}
	}
	if len(missing) == 0 {
		return classes, nil
	}

	loaded, err := repo.Repository.GetClassesWithStudents(ctx, missing, exec...)
	if err != nil {
		return nil, err
	}
	for _, c := range loaded {
		repo.cache.SetDefault(classKey(c.ID), copyClass(c))
		classes[missingIdx[c.ID]] = c
	}
	return classes, nil
}

func (repo *cachedRepository) ImportStudents(ctx context.Context, rows []NewStudent, exec ...core.DBExecutor) (int, error) {
	n, err := repo.Repository.ImportStudents(ctx, rows, exec...)
	repo.cache.Flush()
	return n, err
}
