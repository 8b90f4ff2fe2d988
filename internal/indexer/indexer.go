// Package indexer rebuilds the relational cache from the canonical store.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/model"
	"finance-workspace/internal/repository"
	"finance-workspace/internal/workspace"
)

// Skipped is a record file left out of the cache.
type Skipped struct {
	Path   string
	Reason string
}

// Report summarizes one indexing run.
type Report struct {
	Indexed  int
	Skipped  []Skipped
	Duration time.Duration
}

// Batch is what a run writes: record rows plus their tag links.
type Batch struct {
	Records []model.Record
	Links   []model.RecordTag
}

// ReadFunc reads a record file.
type ReadFunc func(path string) ([]byte, error)

// Indexer rebuilds a workspace cache.
type Indexer struct {
	cache *repository.Cache
	log   zerolog.Logger
}

func New(cache *repository.Cache, log zerolog.Logger) *Indexer {
	return &Indexer{cache: cache, log: log.With().Str("component", "indexer").Logger()}
}

// IndexFullWorkspace replaces the cache content with the documents under
// root in one transaction. On any error the previous cache stays as it was.
func (ix *Indexer) IndexFullWorkspace(ctx context.Context, root string) (Report, error) {
	started := time.Now()
	store := workspace.NewStore(root)

	categories, err := store.LoadCategories()
	if err != nil {
		return Report{}, err
	}
	accounts, err := store.LoadAccounts()
	if err != nil {
		return Report{}, err
	}
	tags, err := store.LoadTags()
	if err != nil {
		return Report{}, err
	}
	files, err := store.RecordFiles()
	if err != nil {
		return Report{}, err
	}

	batch, report := Collect(root, files, os.ReadFile)
	for _, s := range report.Skipped {
		ix.log.Warn().Str("file", s.Path).Str("reason", s.Reason).Msg("record skipped")
	}

	if err := CheckReferences(batch, accounts); err != nil {
		return Report{}, err
	}
	batch.Links = ix.knownLinks(batch.Links, tags)

	err = ix.cache.Transaction(ctx, func(tx *gorm.DB) error {
		return rebuild(ctx, tx, categories, accounts, tags, batch)
	})
	if err != nil {
		return Report{}, apperr.Database("index workspace", err)
	}

	report.Duration = time.Since(started)
	ix.log.Info().
		Int("indexed", report.Indexed).
		Int("skipped", len(report.Skipped)).
		Dur("took", report.Duration).
		Msg("workspace indexed")
	return report, nil
}

// Collect folds the record files into a batch. Files that cannot be read,
// parsed or validated, or whose name is not <id>.json, are skipped and
// reported. Records are returned in file order.
func Collect(root string, files []string, read ReadFunc) (Batch, Report) {
	var (
		batch  Batch
		report Report
	)
	for _, path := range files {
		rec, reason := collectOne(path, read)
		if reason != "" {
			report.Skipped = append(report.Skipped, Skipped{Path: path, Reason: reason})
			continue
		}
		batch.Records = append(batch.Records, rec.Model(root))
		seen := make(map[string]bool, len(rec.Tags))
		for _, tagID := range rec.Tags {
			if tagID == "" || seen[tagID] {
				continue
			}
			seen[tagID] = true
			batch.Links = append(batch.Links, model.RecordTag{RecordID: rec.ID, TagID: tagID})
		}
		report.Indexed++
	}
	return batch, report
}

func collectOne(path string, read ReadFunc) (workspace.RecordItem, string) {
	data, err := read(path)
	if err != nil {
		return workspace.RecordItem{}, fmt.Sprintf("read: %v", err)
	}
	rec, err := workspace.ParseRecord(data)
	if err != nil {
		return workspace.RecordItem{}, fmt.Sprintf("parse: %v", err)
	}
	if err := rec.Validate(); err != nil {
		return workspace.RecordItem{}, fmt.Sprintf("invalid: %v", err)
	}
	if want := rec.ID + ".json"; filepath.Base(path) != want {
		return workspace.RecordItem{}, fmt.Sprintf("file name does not match id %q", rec.ID)
	}
	return rec, ""
}

// CheckReferences fails with a NotFound error naming every record whose
// source or destination account is not in the accounts document.
func CheckReferences(batch Batch, accounts workspace.AccountsConfig) error {
	known := make(map[string]bool, len(accounts.Accounts))
	for _, a := range accounts.Accounts {
		known[a.ID] = true
	}
	var orphans []string
	for _, rec := range batch.Records {
		if !known[rec.AccountID] {
			orphans = append(orphans, fmt.Sprintf("%s (account %q)", rec.FilePath, rec.AccountID))
		}
		if rec.ToAccountID != nil && !known[*rec.ToAccountID] {
			orphans = append(orphans, fmt.Sprintf("%s (destination %q)", rec.FilePath, *rec.ToAccountID))
		}
	}
	if len(orphans) > 0 {
		sort.Strings(orphans)
		return apperr.NotFound("index workspace", "%d orphaned reference(s): %s", len(orphans), strings.Join(orphans, ", "))
	}
	return nil
}

// knownLinks drops links to tags missing from the tags document.
func (ix *Indexer) knownLinks(links []model.RecordTag, tags workspace.TagsConfig) []model.RecordTag {
	known := make(map[string]bool, len(tags))
	for _, t := range tags {
		known[t.ID] = true
	}
	kept := links[:0]
	for _, l := range links {
		if !known[l.TagID] {
			ix.log.Warn().Str("record", l.RecordID).Str("tag", l.TagID).Msg("unknown tag ignored")
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

func rebuild(ctx context.Context, tx *gorm.DB, categories workspace.CategoriesConfig, accounts workspace.AccountsConfig, tags workspace.TagsConfig, batch Batch) error {
	accountRepo := repository.NewAccountRepository(tx)
	categoryRepo := repository.NewCategoryRepository(tx)
	tagRepo := repository.NewTagRepository(tx)
	recordRepo := repository.NewRecordRepository(tx)

	// Children first: record_tags, records, then their parents.
	if err := tagRepo.ClearAll(ctx); err != nil {
		return err
	}
	if err := recordRepo.ClearAll(ctx); err != nil {
		return err
	}
	if err := accountRepo.ClearAll(ctx); err != nil {
		return err
	}
	if err := categoryRepo.ClearAll(ctx); err != nil {
		return err
	}

	for _, item := range categories.Categories {
		c := item.Model()
		if err := categoryRepo.Upsert(ctx, &c); err != nil {
			return err
		}
	}
	for _, item := range accounts.Accounts {
		a := item.Model()
		if err := accountRepo.Upsert(ctx, &a); err != nil {
			return err
		}
	}
	for _, item := range tags {
		t := item.Model()
		if err := tagRepo.Upsert(ctx, &t); err != nil {
			return err
		}
	}
	for i := range batch.Records {
		if err := recordRepo.Upsert(ctx, &batch.Records[i]); err != nil {
			return err
		}
	}
	for _, l := range batch.Links {
		if err := tagRepo.Link(ctx, l.RecordID, l.TagID); err != nil {
			return err
		}
	}
	return nil
}
